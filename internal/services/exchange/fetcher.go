package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPFetcher pulls rate tables from an open.er-api.com compatible
// endpoint: GET {base_url}/{BASE} returns {"result": "success",
// "rates": {"USD": 1, ...}}.
type HTTPFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPFetcher(baseURL, apiKey string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type rateResponse struct {
	Result string                 `json:"result"`
	Error  string                 `json:"error-type"`
	Rates  map[string]json.Number `json:"rates"`
}

func (f *HTTPFetcher) FetchTable(ctx context.Context, base string) (*Table, error) {
	url := fmt.Sprintf("%s/%s", f.baseURL, strings.ToUpper(base))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build rate request: %w", err)
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rate source unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate source returned %d", resp.StatusCode)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rate response: %w", err)
	}
	if body.Result != "" && body.Result != "success" {
		return nil, fmt.Errorf("rate source error: %s", body.Error)
	}
	if len(body.Rates) == 0 {
		return nil, fmt.Errorf("rate source returned no rates for %s", base)
	}

	table := &Table{
		Base:      strings.ToUpper(base),
		Rates:     make(map[string]decimal.Decimal, len(body.Rates)),
		Source:    f.baseURL,
		FetchedAt: time.Now().UTC(),
	}
	for quote, raw := range body.Rates {
		rate, err := decimal.NewFromString(raw.String())
		if err != nil || rate.IsZero() {
			continue
		}
		table.Rates[strings.ToUpper(quote)] = rate
	}
	return table, nil
}
