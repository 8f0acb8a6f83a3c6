package research

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestRedditSourceParsesListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "solana memecoins" {
			t.Errorf("unexpected query %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": {
				"children": [
					{"data": {"title": "First", "permalink": "/r/solana/1", "selftext": "body one", "score": 42, "created_utc": 1740816000}},
					{"data": {"title": "Second", "permalink": "/r/solana/2", "selftext": "", "score": 7, "created_utc": 1740819600}}
				]
			}
		}`))
	}))
	defer server.Close()

	src := NewRedditSource(server.URL, time.Second)
	items, err := src.Fetch(context.Background(), "solana memecoins", 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Title != "First" || items[0].Score != 42 {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[0].URL != "https://www.reddit.com/r/solana/1" {
		t.Fatalf("unexpected URL: %s", items[0].URL)
	}
	if items[0].PublishedAt.IsZero() {
		t.Fatal("expected published time from created_utc")
	}
}

func TestRedditSourceRespectsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":{"children":[
			{"data":{"title":"a","permalink":"/a","created_utc":1}},
			{"data":{"title":"b","permalink":"/b","created_utc":2}},
			{"data":{"title":"c","permalink":"/c","created_utc":3}}
		]}}`))
	}))
	defer server.Close()

	src := NewRedditSource(server.URL, time.Second)
	items, err := src.Fetch(context.Background(), "x", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(items))
	}
}

func TestRSSSourceFiltersByTopic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <item>
      <title>Solana hits new high</title>
      <link>https://news.example.com/1</link>
      <description>&lt;p&gt;Markets rally on &lt;b&gt;Solana&lt;/b&gt; news.&lt;/p&gt;</description>
      <pubDate>Mon, 02 Mar 2026 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Unrelated story</title>
      <link>https://news.example.com/2</link>
      <description>Nothing to see here.</description>
      <pubDate>Mon, 02 Mar 2026 09:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`))
	}))
	defer server.Close()

	src := NewRSSSource("cryptonews", server.URL, time.Second)
	items, err := src.Fetch(context.Background(), "solana", 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 matching item, got %d", len(items))
	}
	if items[0].Title != "Solana hits new high" {
		t.Fatalf("unexpected title %q", items[0].Title)
	}
	if items[0].Summary != "Markets rally on Solana news." {
		t.Fatalf("expected tags stripped, got %q", items[0].Summary)
	}
	if items[0].PublishedAt.IsZero() {
		t.Fatal("expected pubDate parsed")
	}
}

func TestCoinGeckoSourceParsesSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"coins":[
			{"id":"solana","name":"Solana","symbol":"sol","market_cap_rank":5},
			{"id":"solend","name":"Solend","symbol":"slnd","market_cap_rank":412}
		]}`))
	}))
	defer server.Close()

	src := NewCoinGeckoSource(server.URL, "", time.Second)
	items, err := src.Fetch(context.Background(), "solana", 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Title != "Solana (SOL)" {
		t.Fatalf("unexpected title %q", items[0].Title)
	}
	if items[0].Score != 5 {
		t.Fatalf("expected market cap rank as score, got %v", items[0].Score)
	}
}

func TestGroqSummarizerParsesCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"A tight two-sentence brief."}}]}`))
	}))
	defer server.Close()

	sum := NewGroqSummarizer(server.URL, "test-key", "", time.Second)
	got, err := sum.Summarize(context.Background(), "solana", nil)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if got != "A tight two-sentence brief." {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("é", 10)
	got := truncate(long, 4)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated string is not valid UTF-8: %q", got)
	}
	if got != "éééé" {
		t.Fatalf("expected 4 runes, got %q", got)
	}

	if got := truncate("  short  ", 280); got != "short" {
		t.Fatalf("expected trimmed passthrough, got %q", got)
	}
}
