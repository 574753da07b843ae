package tools

import (
	"context"
	"strings"
	"testing"
)

func TestLexicalSummarizer(t *testing.T) {
	text := "Battery storage costs fell sharply over the decade. " +
		"Battery storage deployment is accelerating worldwide. " +
		"Cats are fine. " +
		"Grid operators increasingly rely on battery storage systems. " +
		"Storage economics improved because battery prices dropped."

	summary, err := LexicalSummarizer{MaxPoints: 3}.Summarize(context.Background(), text)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if len(summary.KeyPoints) != 3 {
		t.Fatalf("got %d key points, want 3", len(summary.KeyPoints))
	}
	for _, p := range summary.KeyPoints {
		if strings.Contains(p, "Cats") {
			t.Errorf("off-topic sentence selected: %q", p)
		}
	}

	// Points come back in document order.
	joined := strings.Join(summary.KeyPoints, " | ")
	first := strings.Index(text, summary.KeyPoints[0])
	second := strings.Index(text, summary.KeyPoints[1])
	if first > second {
		t.Errorf("key points out of document order: %s", joined)
	}
}

func TestLexicalSummarizerEmpty(t *testing.T) {
	summary, err := LexicalSummarizer{}.Summarize(context.Background(), "")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if len(summary.KeyPoints) != 0 {
		t.Errorf("got %d key points from empty text, want 0", len(summary.KeyPoints))
	}
}

func TestTemplateExpander(t *testing.T) {
	variants, err := TemplateExpander{}.Variants(context.Background(), "carbon capture")
	if err != nil {
		t.Fatalf("Variants failed: %v", err)
	}
	if len(variants) == 0 {
		t.Fatal("expected at least one variant")
	}
	for _, v := range variants {
		if !strings.Contains(v, "carbon capture") {
			t.Errorf("variant %q does not mention the topic", v)
		}
	}

	if _, err := (TemplateExpander{}).Variants(context.Background(), "  "); err == nil {
		t.Error("expected an error for an empty topic")
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First point. Second point! Third? trailing fragment")
	if len(got) != 4 {
		t.Fatalf("got %d sentences, want 4: %v", len(got), got)
	}
	if got[0] != "First point." || got[3] != "trailing fragment" {
		t.Errorf("unexpected split: %v", got)
	}
}
