// Package news fetches recent market headlines from RSS feeds.
package news

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	fetchTimeout = 5 * time.Second
	perFeedLimit = 5
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// DefaultFeeds are reasonably stable market-news sources.
var DefaultFeeds = []string{
	"https://www.investing.com/rss/news.rss",
	"https://www.dailyfx.com/feeds/market-news",
	"https://www.cnbc.com/id/10000664/device/rss/rss.html",
	"http://feeds.reuters.com/reuters/businessNews",
}

// fallbackHeadlines keep the advisory prompt coherent when every feed is down.
var fallbackHeadlines = []string{
	"Market is quiet.",
	"No significant news detected.",
}

// Headline is one fetched news item.
type Headline struct {
	Title     string
	Link      string
	Published time.Time
}

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

// Feeder polls RSS sources and returns recent headline titles.
type Feeder struct {
	feeds []string
	hc    *http.Client
	log   zerolog.Logger
}

// NewFeeder builds a feeder; nil feeds means the default source list.
func NewFeeder(feeds []string, log zerolog.Logger) *Feeder {
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	return &Feeder{
		feeds: feeds,
		hc:    &http.Client{Timeout: fetchTimeout},
		log:   log,
	}
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
}

func parsePubDate(raw string) (time.Time, bool) {
	for _, layout := range pubDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func (f *Feeder) fetchFeed(ctx context.Context, url string) []Headline {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.hc.Do(req)
	if err != nil {
		// Feeds drop out routinely; keep the log quiet.
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}
	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil
	}

	var items []Headline
	for _, item := range doc.Channel.Items {
		if len(items) >= perFeedLimit {
			break
		}
		if item.Title == "" {
			continue
		}
		h := Headline{Title: item.Title, Link: item.Link}
		if ts, ok := parsePubDate(item.PubDate); ok {
			h.Published = ts
		}
		items = append(items, h)
	}
	return items
}

// RecentHeadlines collects titles no older than maxAge across all feeds,
// capped at limit. Undated items are treated as fresh. When every source
// fails, fixed fallback lines are returned so downstream prompts stay sane.
func (f *Feeder) RecentHeadlines(ctx context.Context, limit int, maxAge time.Duration) []string {
	var all []Headline
	for _, url := range f.feeds {
		all = append(all, f.fetchFeed(ctx, url)...)
	}
	if len(all) == 0 {
		return fallbackHeadlines
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	titles := make([]string, 0, limit)
	for _, h := range all {
		if len(titles) >= limit {
			break
		}
		if !h.Published.IsZero() && h.Published.Before(cutoff) {
			continue
		}
		titles = append(titles, h.Title)
	}

	f.log.Info().Int("count", len(titles)).Msg("fetched headlines")
	return titles
}
