package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/edurag/internal/models"
	"golang.org/x/time/rate"
)

type WebConfig struct {
	BaseURL           string
	MaxDepth          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
}

// WebSource crawls a documentation site and exposes its pages as documents.
type WebSource struct {
	config   WebConfig
	client   *http.Client
	limiter  *rate.Limiter
	baseHost string
	logger   *slog.Logger
}

func NewWebSource(config WebConfig, logger *slog.Logger) (*WebSource, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}
	if logger == nil {
		logger = slog.Default()
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q has no host", config.BaseURL)
	}

	return &WebSource{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
		logger:   logger,
	}, nil
}

// ListRecentDocuments crawls breadth-first from the base URL and returns at
// most limit pages.
func (w *WebSource) ListRecentDocuments(ctx context.Context, limit int) ([]models.Document, error) {
	type target struct {
		url   string
		depth int
	}

	visited := make(map[string]bool)
	queue := []target{{url: w.config.BaseURL}}
	var docs []models.Document

	for len(queue) > 0 && len(docs) < limit {
		t := queue[0]
		queue = queue[1:]

		if t.depth > w.config.MaxDepth || visited[t.url] || !w.shouldProcessURL(t.url) {
			continue
		}
		visited[t.url] = true

		doc, links, err := w.fetch(ctx, t.url)
		if err != nil {
			if ctx.Err() != nil {
				return docs, ctx.Err()
			}
			w.logger.Warn("failed to fetch page", "url", t.url, "error", err)
			continue
		}
		if w.config.OnProgress != nil {
			w.config.OnProgress(t.url)
		}

		if normalized, ok := NormalizeDocument(doc); ok {
			docs = append(docs, normalized)
		}
		for _, link := range links {
			if !visited[link] {
				queue = append(queue, target{url: link, depth: t.depth + 1})
			}
		}
	}

	return docs, nil
}

func (w *WebSource) fetch(ctx context.Context, pageURL string) (models.Document, []string, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return models.Document{}, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return models.Document{}, nil, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return models.Document{}, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Document{}, nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, pageURL)
	}

	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return models.Document{}, nil, err
	}

	createdAt := time.Now()
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			createdAt = t
		}
	}

	summary, _ := page.Find(`meta[name="description"]`).Attr("content")
	doc := models.Document{
		ID:            pageID(pageURL),
		FileName:      strings.TrimSpace(page.Find("title").First().Text()),
		ExtractedText: extractMainContent(page),
		Summary:       summary,
		CreatedAt:     createdAt,
	}

	return doc, w.collectLinks(page, pageURL), nil
}

func (w *WebSource) collectLinks(page *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []string
	page.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		links = append(links, abs.String())
	})
	return links
}

func (w *WebSource) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Host != w.baseHost {
		return false
	}

	path := strings.ToLower(parsedURL.Path)
	validExt := false
	for _, allowedExt := range w.config.AllowedExtensions {
		if strings.HasSuffix(path, allowedExt) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range w.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

var noisePatterns = []string{
	"Cookie Policy",
	"Accept Cookies",
	"Privacy Policy",
	"Terms of Service",
}

func extractMainContent(page *goquery.Document) string {
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := page.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}
	if content == "" {
		content = page.Find("body").Text()
	}

	content = cleanText(content)
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}
	return strings.TrimSpace(content)
}

// pageID derives a stable document id from the page URL.
func pageID(pageURL string) string {
	sum := sha1.Sum([]byte(pageURL))
	return hex.EncodeToString(sum[:])[:16]
}
