package subscription

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	domain "github.com/postlane/platform/internal/app/domain/subscription"
	"github.com/postlane/platform/internal/httputil"
	"github.com/postlane/platform/pkg/logger"
)

// HTTPBalanceFetcherConfig configures the RPC-backed balance fetcher.
type HTTPBalanceFetcherConfig struct {
	// Endpoint is the JSON-RPC URL of the chain node.
	Endpoint string
	// Mint is the token mint whose balance gates tiers.
	Mint string
	// Timeout bounds each RPC call.
	Timeout time.Duration
}

// HTTPBalanceFetcher resolves wallet token balances through a JSON-RPC node.
type HTTPBalanceFetcher struct {
	endpoint string
	mint     string
	client   *http.Client
	log      *logger.Logger
}

// NewHTTPBalanceFetcher constructs a fetcher for the given node endpoint.
func NewHTTPBalanceFetcher(cfg HTTPBalanceFetcherConfig, log *logger.Logger) (*HTTPBalanceFetcher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Mint == "" {
		return nil, fmt.Errorf("mint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("balance-fetcher")
	}
	return &HTTPBalanceFetcher{
		endpoint: cfg.Endpoint,
		mint:     cfg.Mint,
		client:   &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}, nil
}

// Fetch queries the node for token accounts owned by the wallet and sums the
// balances held for the configured mint.
func (f *HTTPBalanceFetcher) Fetch(ctx context.Context, wallet string) (domain.TokenBalance, error) {
	payload := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"getTokenAccountsByOwner","params":[%q,{"mint":%q},{"encoding":"jsonParsed"}]}`,
		wallet, f.mint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader([]byte(payload)))
	if err != nil {
		return domain.TokenBalance{}, fmt.Errorf("build balance request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.TokenBalance{}, fmt.Errorf("balance request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllStrict(resp.Body, 1<<20)
	if err != nil {
		return domain.TokenBalance{}, fmt.Errorf("read balance response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.TokenBalance{}, fmt.Errorf("balance request returned status %d", resp.StatusCode)
	}
	if rpcErr := gjson.GetBytes(body, "error.message"); rpcErr.Exists() {
		return domain.TokenBalance{}, fmt.Errorf("balance rpc error: %s", rpcErr.String())
	}

	balance := domain.TokenBalance{Wallet: wallet}
	accounts := gjson.GetBytes(body, "result.value")
	accounts.ForEach(func(_, account gjson.Result) bool {
		amount := account.Get("account.data.parsed.info.tokenAmount")
		if !amount.Exists() {
			return true
		}
		balance.Raw += amount.Get("amount").Int()
		if d := int(amount.Get("decimals").Int()); d > balance.Decimals {
			balance.Decimals = d
		}
		return true
	})

	if balance.Decimals > 0 {
		balance.UIAmount = float64(balance.Raw) / math.Pow10(balance.Decimals)
	} else {
		balance.UIAmount = float64(balance.Raw)
	}

	f.log.WithField("wallet", wallet).
		WithField("ui_amount", balance.UIAmount).
		Debug("balance fetched")
	return balance, nil
}
