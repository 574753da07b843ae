package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sourcedive/sourcedive/pkg/research"
)

const arxivBaseURL = "https://export.arxiv.org/api/query"

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Links     []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// ArxivSearcher queries the arXiv Atom API for academic papers.
type ArxivSearcher struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

func NewArxivSearcher(client *http.Client, logger *slog.Logger) *ArxivSearcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ArxivSearcher{client: client, baseURL: arxivBaseURL, logger: logger}
}

func (a *ArxivSearcher) Search(ctx context.Context, query string, limit int) ([]research.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(limit))
	params.Add("start", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("arxiv returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read arxiv response: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arxiv feed: %w", err)
	}

	results := make([]research.SearchResult, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		res := research.SearchResult{
			Title:   strings.TrimSpace(entry.Title),
			Snippet: strings.TrimSpace(entry.Summary),
			Metadata: map[string]interface{}{
				"publishedDate": entry.Published,
				"source":        "arxiv",
			},
		}
		for _, link := range entry.Links {
			if link.Type == "application/pdf" {
				res.Metadata["pdfUrl"] = link.Href
				continue
			}
			if res.URL == "" {
				res.URL = link.Href
			}
		}
		if res.URL == "" {
			continue
		}
		results = append(results, res)
	}

	a.logger.Debug("arxiv search completed", "query", query, "results", len(results))
	return results, nil
}
