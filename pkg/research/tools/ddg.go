package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/sourcedive/sourcedive/pkg/research"
)

const (
	ddgBaseURL     = "https://html.duckduckgo.com/html/"
	ddgMaxBodySize = 1 << 20
	ddgUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// DuckDuckGoSearcher queries the DuckDuckGo HTML interface, which needs no
// API key.
type DuckDuckGoSearcher struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

func NewDuckDuckGoSearcher(client *http.Client, logger *slog.Logger) *DuckDuckGoSearcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DuckDuckGoSearcher{client: client, baseURL: ddgBaseURL, logger: logger}
}

func (d *DuckDuckGoSearcher) Search(ctx context.Context, query string, limit int) ([]research.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	searchURL := d.baseURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", ddgUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, ddgMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	results, err := parseDuckDuckGoResults(string(body), limit)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("search completed", "query", query, "results", len(results))
	return results, nil
}

// parseDuckDuckGoResults walks the result divs of the DuckDuckGo HTML page.
func parseDuckDuckGoResults(htmlContent string, limit int) ([]research.SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}

	var results []research.SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			class := attrValue(n, "class")
			if strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				if res := extractSearchResult(n); res.URL != "" && res.Title != "" {
					results = append(results, res)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractSearchResult(n *html.Node) research.SearchResult {
	var res research.SearchResult

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attrValue(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				res.URL = attrValue(n, "href")
				res.Title = textContent(n)
			case strings.Contains(class, "result__snippet"):
				res.Snippet = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	res.URL = unwrapRedirect(res.URL)
	return res
}

// unwrapRedirect decodes DuckDuckGo's /l/?uddg= redirect wrapper.
func unwrapRedirect(raw string) string {
	const prefix = "//duckduckgo.com/l/?uddg="
	if !strings.HasPrefix(raw, prefix) {
		return raw
	}
	decoded, err := url.QueryUnescape(strings.TrimPrefix(raw, prefix))
	if err != nil {
		return raw
	}
	if idx := strings.Index(decoded, "&"); idx > 0 {
		decoded = decoded[:idx]
	}
	return decoded
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
