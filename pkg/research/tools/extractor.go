package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/sourcedive/sourcedive/pkg/research"
)

const extractorMaxBodySize = 4 << 20

// PageExtractor fetches a URL and extracts its readable text, dropping
// scripts, styles and navigation chrome. Metadata comes from meta tags and
// the title element.
type PageExtractor struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

func NewPageExtractor(client *http.Client, logger *slog.Logger) *PageExtractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PageExtractor{client: client, userAgent: ddgUserAgent, logger: logger}
}

func (p *PageExtractor) Extract(ctx context.Context, pageURL string, opts research.ExtractOptions) (*research.Extraction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text") {
		return nil, fmt.Errorf("unsupported content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, extractorMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	extraction := &research.Extraction{Content: extractReadableText(doc)}
	if opts.IncludeMetadata {
		extraction.Metadata = extractMetadata(doc)
	}
	if opts.IncludeStructuredData {
		extraction.StructuredData = extractStructuredData(doc)
	}

	p.logger.Debug("page extracted", "url", pageURL, "chars", len(extraction.Content))
	return extraction, nil
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"nav": true, "header": true, "footer": true, "aside": true,
	"form": true, "svg": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "blockquote": true, "pre": true, "br": true, "tr": true,
}

// extractReadableText collects text nodes outside of chrome elements,
// inserting paragraph breaks at block boundaries.
func extractReadableText(doc *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteString("\n\n")
		}
	}
	walk(doc)
	return collapseWhitespace(sb.String())
}

func extractMetadata(doc *html.Node) map[string]interface{} {
	meta := make(map[string]interface{})
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if t := textContent(n); t != "" {
					meta["title"] = t
				}
			case "meta":
				name := attrValue(n, "name")
				if name == "" {
					name = attrValue(n, "property")
				}
				content := attrValue(n, "content")
				if content == "" {
					break
				}
				switch name {
				case "description", "og:description":
					meta["description"] = content
				case "author":
					meta["author"] = content
				case "article:published_time", "date", "og:published_time":
					meta["publishedDate"] = content
				case "keywords":
					meta["keywords"] = content
				case "og:site_name":
					meta["siteName"] = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return meta
}

// extractStructuredData surfaces structural counts useful for credibility
// heuristics downstream.
func extractStructuredData(doc *html.Node) map[string]interface{} {
	counts := map[string]int{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3":
				counts["headings"]++
			case "a":
				counts["links"]++
			case "table":
				counts["tables"]++
			case "blockquote":
				counts["quotes"]++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	data := make(map[string]interface{}, len(counts))
	for k, v := range counts {
		data[k] = v
	}
	return data
}

func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
