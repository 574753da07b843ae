package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sourcedive/sourcedive/pkg/config"
	"github.com/sourcedive/sourcedive/pkg/research"
	"github.com/sourcedive/sourcedive/pkg/research/tools"
)

var (
	topic      string
	jsonOutput bool
	maxDepth   int
	maxURLs    int
	timeLimit  int
	noVerify   bool
)

func main() {
	handler := slog.NewTextHandler(os.Stderr, nil)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "sourcedive",
		Short: "A terminal research pipeline",
		Long:  `sourcedive expands a topic into search queries, gathers and explores web sources, scores their credibility and compiles a synthesized report.`,
		Run: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("topic") {
				reader := bufio.NewReader(os.Stdin)
				fmt.Fprint(os.Stderr, "Enter research topic: ")
				input, _ := reader.ReadString('\n')
				topic = strings.TrimSpace(input)
			}
			if topic == "" {
				slog.Error("Topic cannot be empty")
				os.Exit(1)
			}

			opts := cfg.ResearchOptions()
			if cmd.Flags().Changed("max-depth") {
				opts.MaxDepth = maxDepth
			}
			if cmd.Flags().Changed("max-urls") {
				opts.MaxURLs = maxURLs
			}
			if cmd.Flags().Changed("time-limit") {
				opts.TimeLimit = time.Duration(timeLimit) * time.Second
			}
			if noVerify {
				opts.EnableSourceVerification = false
			}

			slog.Info("Starting research", "topic", topic, "maxDepth", opts.MaxDepth, "maxUrls", opts.MaxURLs)

			ctx := context.Background()
			engineCfg, err := tools.BuildCollaborators(ctx, tools.CollaboratorOptions{
				APIKey:      cfg.GoogleAPIKey,
				Model:       cfg.FastModel,
				EnableArxiv: cfg.EnableArxiv,
				Logger:      logger,
			})
			if err != nil {
				slog.Error("Error initializing engine", "error", err)
				os.Exit(1)
			}

			engine := research.NewEngine(engineCfg)
			report := engine.ConductResearch(ctx, topic, opts)

			if jsonOutput {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					slog.Error("Failed to encode report", "error", err)
					os.Exit(1)
				}
				fmt.Println(string(data))
			} else {
				fmt.Println(report.Markdown())
			}

			if !report.Success {
				os.Exit(1)
			}
		},
	}

	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "The research topic")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON instead of markdown")
	rootCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Number of search queries to expand the topic into")
	rootCmd.Flags().IntVar(&maxURLs, "max-urls", 0, "Maximum number of sources to gather")
	rootCmd.Flags().IntVar(&timeLimit, "time-limit", 0, "Overall time budget in seconds")
	rootCmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip the credibility verification stage")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
