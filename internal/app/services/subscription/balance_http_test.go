package subscription

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tidwall/gjson"
)

func TestHTTPBalanceFetcherSumsTokenAccounts(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"jsonrpc": "2.0",
			"result": {
				"value": [
					{"account": {"data": {"parsed": {"info": {"tokenAmount": {"amount": "1500000000", "decimals": 6}}}}}},
					{"account": {"data": {"parsed": {"info": {"tokenAmount": {"amount": "500000000", "decimals": 6}}}}}},
					{"account": {"data": {}}}
				]
			}
		}`))
	}))
	defer server.Close()

	fetcher, err := NewHTTPBalanceFetcher(HTTPBalanceFetcherConfig{
		Endpoint: server.URL,
		Mint:     "Mint111111111111111111111111111111111111111",
	}, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	balance, err := fetcher.Fetch(context.Background(), "Wallet111")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if balance.Raw != 2_000_000_000 {
		t.Fatalf("expected raw 2000000000, got %d", balance.Raw)
	}
	if balance.Decimals != 6 {
		t.Fatalf("expected 6 decimals, got %d", balance.Decimals)
	}
	if balance.UIAmount != 2000 {
		t.Fatalf("expected ui amount 2000, got %f", balance.UIAmount)
	}

	if method := gjson.GetBytes(gotBody, "method").String(); method != "getTokenAccountsByOwner" {
		t.Fatalf("unexpected rpc method %q", method)
	}
	if owner := gjson.GetBytes(gotBody, "params.0").String(); owner != "Wallet111" {
		t.Fatalf("unexpected owner param %q", owner)
	}
	if mint := gjson.GetBytes(gotBody, "params.1.mint").String(); mint == "" {
		t.Fatal("expected mint param in request")
	}
}

func TestHTTPBalanceFetcherPropagatesRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32602,"message":"invalid owner"}}`))
	}))
	defer server.Close()

	fetcher, err := NewHTTPBalanceFetcher(HTTPBalanceFetcherConfig{
		Endpoint: server.URL,
		Mint:     "Mint111111111111111111111111111111111111111",
	}, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	if _, err := fetcher.Fetch(context.Background(), "Wallet111"); err == nil {
		t.Fatal("expected rpc error to propagate")
	}
}

func TestHTTPBalanceFetcherRequiresConfig(t *testing.T) {
	if _, err := NewHTTPBalanceFetcher(HTTPBalanceFetcherConfig{Mint: "m"}, nil); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
	if _, err := NewHTTPBalanceFetcher(HTTPBalanceFetcherConfig{Endpoint: "http://node"}, nil); err == nil {
		t.Fatal("expected error for missing mint")
	}
}
