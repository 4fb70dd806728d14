package datasource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/phoslab/phosdash/internal/infra"
	"github.com/phoslab/phosdash/pkg/models"
)

// Feed identifies one upstream publication feed.
type Feed struct {
	Source string
	URL    string
}

// DefaultFeeds lists the newsroom RSS feeds of the two upstream
// publishers.
var DefaultFeeds = []Feed{
	{
		Source: "World Bank",
		URL:    "https://www.worldbank.org/en/news/all?format=rss",
	},
	{
		Source: "USGS",
		URL:    "https://www.usgs.gov/news/news-releases/feed",
	},
}

// DefaultKeywords filters feed items down to commodity-relevant ones.
// Matching is case-insensitive over title plus summary.
var DefaultKeywords = []string{
	"phosphate",
	"fertilizer",
	"commodity markets",
	"mineral",
}

// DefaultBulletinLimit caps the bulletins panel.
const DefaultBulletinLimit = 10

// Bulletins fetches publication notices from the upstream newsrooms.
type Bulletins struct {
	feeds    []Feed
	keywords []string
	parser   *gofeed.Parser
	limiter  *infra.RateLimiter
}

// NewBulletins creates a bulletins fetcher over the default feeds.
func NewBulletins() *Bulletins {
	return NewBulletinsWithFeeds(DefaultFeeds)
}

// NewBulletinsWithFeeds creates a bulletins fetcher over custom feeds.
func NewBulletinsWithFeeds(feeds []Feed) *Bulletins {
	return &Bulletins{
		feeds:    feeds,
		keywords: DefaultKeywords,
		parser:   gofeed.NewParser(),
		limiter:  infra.NewRateLimiter(2, time.Second), // conservative: 2 req/s
	}
}

// Latest returns recent matching notices across all feeds, newest
// first, capped at limit (0 = DefaultBulletinLimit). A failing feed is
// skipped; Latest errors only when every feed failed.
func (b *Bulletins) Latest(ctx context.Context, limit int) ([]models.Bulletin, error) {
	if limit <= 0 {
		limit = DefaultBulletinLimit
	}

	var (
		mu   sync.Mutex
		all  []models.Bulletin
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range b.feeds {
		f := f // per-iteration copy; required under the go 1.21 language version
		g.Go(func() error {
			items, err := b.fetchFeed(gctx, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", f.Source, err))
				return nil
			}
			all = append(all, items...)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // per-feed errors collected in errs

	if len(b.feeds) > 0 && len(errs) == len(b.feeds) {
		return nil, errors.Join(errs...)
	}

	sortBulletinsByDate(all)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// fetchFeed parses one feed and returns its matching items.
func (b *Bulletins) fetchFeed(ctx context.Context, f Feed) ([]models.Bulletin, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := b.parser.ParseURLWithContext(f.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]models.Bulletin, 0, len(feed.Items))
	for _, item := range feed.Items {
		bl := models.Bulletin{
			Source:  f.Source,
			Title:   item.Title,
			URL:     item.Link,
			Summary: stripHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			bl.PublishedAt = *item.PublishedParsed
		}
		if len(b.keywords) > 0 && !matchesAny(bl.Title+" "+bl.Summary, b.keywords) {
			continue
		}
		items = append(items, bl)
	}
	return items, nil
}

// stripHTML strips HTML tags from a string using goquery.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// matchesAny checks if text contains any of the keywords (case-insensitive).
func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// sortBulletinsByDate sorts bulletins by published date (newest first).
// Simple insertion sort — fine for small slices.
func sortBulletinsByDate(items []models.Bulletin) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && items[j].PublishedAt.Before(key.PublishedAt) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
