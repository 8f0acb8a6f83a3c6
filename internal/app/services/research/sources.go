package research

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/postlane/platform/internal/app/domain/research"
	"github.com/postlane/platform/internal/httputil"
)

// --- Reddit ---

// RedditSource searches Reddit's public listing API.
type RedditSource struct {
	client *httputil.Client
}

// NewRedditSource constructs a Reddit source. baseURL defaults to the public
// API host.
func NewRedditSource(baseURL string, timeout time.Duration) *RedditSource {
	if baseURL == "" {
		baseURL = "https://www.reddit.com"
	}
	return &RedditSource{
		client: httputil.NewClient(httputil.ClientConfig{BaseURL: baseURL, Timeout: timeout}),
	}
}

func (r *RedditSource) Name() string { return "reddit" }

func (r *RedditSource) Fetch(ctx context.Context, topic string, limit int) ([]research.Item, error) {
	path := fmt.Sprintf("/search.json?q=%s&sort=new&limit=%d", url.QueryEscape(topic), limit)
	resp, err := r.client.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reddit search: %w", err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllStrict(resp.Body, 4<<20)
	if err != nil {
		return nil, fmt.Errorf("read reddit response: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("reddit returned status %d", resp.StatusCode)
	}

	var items []research.Item
	gjson.GetBytes(body, "data.children").ForEach(func(_, child gjson.Result) bool {
		data := child.Get("data")
		if !data.Exists() {
			return true
		}
		items = append(items, research.Item{
			Source:      r.Name(),
			Title:       data.Get("title").String(),
			URL:         "https://www.reddit.com" + data.Get("permalink").String(),
			Summary:     truncate(data.Get("selftext").String(), 280),
			Score:       data.Get("score").Float(),
			PublishedAt: time.Unix(int64(data.Get("created_utc").Float()), 0).UTC(),
		})
		return len(items) < limit
	})
	return items, nil
}

// --- RSS ---

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// RSSSource reads a fixed RSS feed and filters entries by topic.
type RSSSource struct {
	name    string
	feedURL string
	client  *httputil.Client
}

// NewRSSSource constructs a source over one feed URL.
func NewRSSSource(name, feedURL string, timeout time.Duration) *RSSSource {
	return &RSSSource{
		name:    name,
		feedURL: feedURL,
		client:  httputil.NewClient(httputil.ClientConfig{BaseURL: feedURL, Timeout: timeout}),
	}
}

func (r *RSSSource) Name() string { return r.name }

func (r *RSSSource) Fetch(ctx context.Context, topic string, limit int) ([]research.Item, error) {
	resp, err := r.client.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", r.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("feed %s returned status %d", r.name, resp.StatusCode)
	}
	body, err := httputil.ReadAllStrict(resp.Body, 4<<20)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", r.name, err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", r.name, err)
	}

	needle := strings.ToLower(topic)
	var items []research.Item
	for _, entry := range feed.Channel.Items {
		if len(items) >= limit {
			break
		}
		haystack := strings.ToLower(entry.Title + " " + entry.Description)
		if needle != "" && !strings.Contains(haystack, needle) {
			continue
		}
		items = append(items, research.Item{
			Source:      r.name,
			Title:       entry.Title,
			URL:         entry.Link,
			Summary:     truncate(stripTags(entry.Description), 280),
			PublishedAt: parsePubDate(entry.PubDate),
		})
	}
	return items, nil
}

func parsePubDate(value string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// truncate cuts s to at most max runes, never splitting a multibyte rune.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// --- CoinGecko ---

// CoinGeckoSource searches CoinGecko for coins matching the topic.
type CoinGeckoSource struct {
	client *httputil.Client
}

// NewCoinGeckoSource constructs a CoinGecko source. baseURL defaults to the
// public API host.
func NewCoinGeckoSource(baseURL, apiKey string, timeout time.Duration) *CoinGeckoSource {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com"
	}
	return &CoinGeckoSource{
		client: httputil.NewClient(httputil.ClientConfig{BaseURL: baseURL, APIKey: apiKey, Timeout: timeout}),
	}
}

func (c *CoinGeckoSource) Name() string { return "coingecko" }

func (c *CoinGeckoSource) Fetch(ctx context.Context, topic string, limit int) ([]research.Item, error) {
	resp, err := c.client.Get(ctx, "/api/v3/search?query="+url.QueryEscape(topic))
	if err != nil {
		return nil, fmt.Errorf("coingecko search: %w", err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllStrict(resp.Body, 2<<20)
	if err != nil {
		return nil, fmt.Errorf("read coingecko response: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("coingecko returned status %d", resp.StatusCode)
	}

	now := time.Now().UTC()
	var items []research.Item
	gjson.GetBytes(body, "coins").ForEach(func(_, coin gjson.Result) bool {
		rank := coin.Get("market_cap_rank").Float()
		items = append(items, research.Item{
			Source:      c.Name(),
			Title:       fmt.Sprintf("%s (%s)", coin.Get("name").String(), strings.ToUpper(coin.Get("symbol").String())),
			URL:         "https://www.coingecko.com/en/coins/" + coin.Get("id").String(),
			Score:       rank,
			PublishedAt: now,
		})
		return len(items) < limit
	})
	return items, nil
}

// --- Groq summarizer ---

// GroqSummarizer condenses research items through a chat-completions API.
type GroqSummarizer struct {
	client *httputil.Client
	model  string
}

// NewGroqSummarizer constructs a summarizer. baseURL defaults to the Groq
// API host; model defaults to llama-3.1-8b-instant.
func NewGroqSummarizer(baseURL, apiKey, model string, timeout time.Duration) *GroqSummarizer {
	if baseURL == "" {
		baseURL = "https://api.groq.com"
	}
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	return &GroqSummarizer{
		client: httputil.NewClient(httputil.ClientConfig{BaseURL: baseURL, APIKey: apiKey, Timeout: timeout}),
		model:  model,
	}
}

func (g *GroqSummarizer) Summarize(ctx context.Context, topic string, items []research.Item) (string, error) {
	var lines []string
	for i, item := range items {
		if i >= 20 {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s (%s)", item.Title, item.Source))
	}

	payload := map[string]interface{}{
		"model": g.model,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": "You summarize social media research into a short content brief. Two sentences maximum.",
			},
			{
				"role":    "user",
				"content": fmt.Sprintf("Topic: %s\n\nHeadlines:\n%s", topic, strings.Join(lines, "\n")),
			},
		},
		"temperature": 0.3,
	}

	resp, err := g.client.Post(ctx, "/openai/v1/chat/completions", payload)
	if err != nil {
		return "", fmt.Errorf("summarize request: %w", err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllStrict(resp.Body, 1<<20)
	if err != nil {
		return "", fmt.Errorf("read summarize response: %w", err)
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("summarizer returned status %d", resp.StatusCode)
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("summarizer response missing content")
	}
	return content.String(), nil
}
