// Package titles fills in missing tab titles from the pages themselves.
package titles

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/lotas/tabtree/internal/applog"
	"github.com/lotas/tabtree/internal/types"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher downloads pages and extracts their titles.
type Fetcher struct {
	Client *http.Client
	// Limiter paces requests; nil means unpaced.
	Limiter *rate.Limiter
}

// NewFetcher returns a Fetcher with a 15 second timeout making at most
// perSecond requests per second.
func NewFetcher(perSecond float64) *Fetcher {
	f := &Fetcher{Client: &http.Client{Timeout: 15 * time.Second}}
	if perSecond > 0 {
		f.Limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return f
}

// Title fetches url and returns the article title readability finds.
// Only http and https URLs are fetched.
func (f *Fetcher) Title(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("skipping non-HTTP URL: %s", url)
	}
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, req.URL)
	if err != nil {
		return "", fmt.Errorf("extract title from %s: %w", url, err)
	}
	return strings.TrimSpace(article.Title), nil
}

// Backfill sets the title of every untitled node with a fetchable URL.
// Failures leave the title empty. It returns the number of titles set.
func (f *Fetcher) Backfill(ctx context.Context, forest []*types.TabNode) int {
	filled := 0
	var walk func([]*types.TabNode)
	walk = func(nodes []*types.TabNode) {
		for _, n := range nodes {
			if ctx.Err() != nil {
				return
			}
			if strings.TrimSpace(n.Title) == "" && n.URL != "" {
				title, err := f.Title(ctx, n.URL)
				switch {
				case err != nil:
					applog.Warn("titles.fetch.failed", "url", n.URL, "error", err)
				case title != "":
					n.Title = title
					filled++
				}
			}
			walk(n.Children)
		}
	}
	walk(forest)
	applog.Info("titles.backfill", "filled", filled)
	return filled
}
