// Package yahoo reads single-symbol quotes from the Yahoo Finance chart API.
// The chart endpoint carries the quote fields in its meta block and, unlike
// /v7/finance/quote, needs no cookie and crumb handshake.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

var ErrNoQuote = errors.New("no quote returned")

// Getter fetches a document. *rotating.Fetcher satisfies it.
type Getter interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Quote struct {
	Symbol           string
	FullExchangeName string
	LongName         string
	ShortName        string
	// RegularMarketPrice is nil when the response carries no price.
	RegularMarketPrice *float64
	Currency           string
}

type Client struct {
	getter  Getter
	baseURL string
}

func NewClient(getter Getter, baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{getter: getter, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) QuoteURL(symbol string) string {
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("range", "1d")
	return c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + q.Encode()
}

func (c *Client) Quote(ctx context.Context, symbol string) (Quote, error) {
	if strings.TrimSpace(symbol) == "" {
		return Quote{}, fmt.Errorf("symbol is required")
	}
	body, err := c.getter.Fetch(ctx, c.QuoteURL(symbol))
	if err != nil {
		return Quote{}, err
	}
	return parseQuote(symbol, body)
}

func parseQuote(symbol string, body []byte) (Quote, error) {
	if !gjson.ValidBytes(body) {
		return Quote{}, fmt.Errorf("quote %s: invalid json", symbol)
	}
	root := gjson.GetBytes(body, "chart")
	if desc := root.Get("error.description"); desc.Exists() && desc.String() != "" {
		return Quote{}, fmt.Errorf("quote %s: %w: %s", symbol, ErrNoQuote, desc.String())
	}
	res := root.Get("result.0.meta")
	if !res.Exists() {
		return Quote{}, fmt.Errorf("quote %s: %w", symbol, ErrNoQuote)
	}

	q := Quote{
		Symbol:           res.Get("symbol").String(),
		FullExchangeName: res.Get("fullExchangeName").String(),
		LongName:         res.Get("longName").String(),
		ShortName:        res.Get("shortName").String(),
		Currency:         res.Get("currency").String(),
	}
	if p := res.Get("regularMarketPrice"); p.Type == gjson.Number {
		v := p.Float()
		q.RegularMarketPrice = &v
	}
	return q, nil
}
