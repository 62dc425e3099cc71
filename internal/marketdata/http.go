package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/foliostack/tradeledger/errs"
)

// Exchange suffixes appended to bare symbols for quote lookups. NSE is
// tried first; symbols the venue cannot resolve fall back to BSE.
const (
	suffixNSE = ".NS"
	suffixBSE = ".BO"
)

// HTTPClient is a rate-limited Oracle backed by a quote HTTP API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient builds an HTTP oracle. ratePerSec bounds outbound request
// volume; burst <= 0 defaults to 1.
func NewHTTPClient(baseURL string, timeout time.Duration, ratePerSec float64, burst int) *HTTPClient {
	if burst <= 0 {
		burst = 1
	}
	client := new(HTTPClient)
	client.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	client.http = &http.Client{Timeout: timeout}
	client.limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	return client
}

type quotePayload struct {
	Quotes map[string]struct {
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume int64   `json:"volume"`
	} `json:"quotes"`
}

type pricePayload struct {
	Prices map[string]float64 `json:"prices"`
}

// BatchQuote fetches OHLCV bars for the symbol, trying the NSE listing
// first and the BSE listing when NSE yields nothing.
func (c *HTTPClient) BatchQuote(ctx context.Context, symbol string, dates []time.Time) (map[string]Quote, error) {
	if len(dates) == 0 {
		return map[string]Quote{}, nil
	}
	dateParams := make([]string, 0, len(dates))
	for _, d := range dates {
		dateParams = append(dateParams, d.Format(DateLayout))
	}

	for _, suffix := range []string{suffixNSE, suffixBSE} {
		query := url.Values{}
		query.Set("symbol", symbol+suffix)
		query.Set("dates", strings.Join(dateParams, ","))

		var payload quotePayload
		found, err := c.get(ctx, "/v1/quotes", query, &payload)
		if err != nil {
			return nil, err
		}
		if !found || len(payload.Quotes) == 0 {
			continue
		}

		quotes := make(map[string]Quote, len(payload.Quotes))
		for dateKey, bar := range payload.Quotes {
			quotes[dateKey] = Quote{
				Open:   decimal.NewFromFloat(bar.Open),
				High:   decimal.NewFromFloat(bar.High),
				Low:    decimal.NewFromFloat(bar.Low),
				Close:  decimal.NewFromFloat(bar.Close),
				Volume: bar.Volume,
			}
		}
		return quotes, nil
	}
	return map[string]Quote{}, nil
}

// BatchCurrentPrice fetches latest prices for all symbols in one call per
// venue, falling back to BSE for symbols NSE could not price.
func (c *HTTPClient) BatchCurrentPrice(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	result := make(map[string]decimal.Decimal, len(symbols))
	pending := symbols
	for _, suffix := range []string{suffixNSE, suffixBSE} {
		if len(pending) == 0 {
			break
		}
		listed := make([]string, 0, len(pending))
		for _, symbol := range pending {
			listed = append(listed, symbol+suffix)
		}
		query := url.Values{}
		query.Set("symbols", strings.Join(listed, ","))

		var payload pricePayload
		found, err := c.get(ctx, "/v1/prices", query, &payload)
		if err != nil {
			return nil, err
		}

		var missing []string
		for _, symbol := range pending {
			price, ok := payload.Prices[symbol+suffix]
			if found && ok {
				result[symbol] = decimal.NewFromFloat(price)
				continue
			}
			missing = append(missing, symbol)
		}
		pending = missing
	}
	return result, nil
}

// get performs one rate-limited request. The bool result is false for 404
// responses, letting callers fall through to the next venue.
func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, errs.New("marketdata/http", errs.CodeTransientIO,
			errs.WithMessage("rate limiter wait"), errs.WithCause(err))
	}

	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, errs.New("marketdata/http", errs.CodeTransientIO,
			errs.WithMessage("build request"), errs.WithCause(err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, errs.New("marketdata/http", errs.CodeTransientIO,
			errs.WithMessage("oracle request"), errs.WithField("path", path), errs.WithCause(err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, errs.New("marketdata/http", errs.CodeTransientIO,
			errs.WithMessage("unexpected oracle status"),
			errs.WithField("path", path),
			errs.WithField("status", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, errs.New("marketdata/http", errs.CodeTransientIO,
			errs.WithMessage("read oracle response"), errs.WithCause(err))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, errs.New("marketdata/http", errs.CodeTransientIO,
			errs.WithMessage("decode oracle response"), errs.WithCause(err))
	}
	return true, nil
}

var _ Oracle = (*HTTPClient)(nil)
