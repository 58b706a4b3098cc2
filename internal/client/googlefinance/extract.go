// Package googlefinance locates fundamentals on a Google Finance quote page.
package googlefinance

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

const DefaultBaseURL = "https://www.google.com/finance/quote/"

var (
	peRatioPattern = regexp.MustCompile(`P/E\s+ratio[\s\S]*?<div\s+class=["']P6K39c["'][^>]*>([^<]+)</div>`)
	epsPattern     = regexp.MustCompile(`Earnings\s+per\s+share[\s\S]*?<td\s+class=["']QXDnM["'][^>]*>([^<]+)</td>`)
)

// Financials holds the raw text found for each field, nil when absent.
type Financials struct {
	PERatio          *string
	EarningsPerShare *string
}

func (f Financials) Empty() bool {
	return f.PERatio == nil && f.EarningsPerShare == nil
}

// QuoteURL builds the page address for a symbol such as "HDFCBANK:NSE".
func QuoteURL(baseURL, symbol string) string {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + url.PathEscape(symbol)
}

// Extract takes the first value following each field's label.
func Extract(doc []byte) Financials {
	return Financials{
		PERatio:          firstMatch(peRatioPattern, doc),
		EarningsPerShare: firstMatch(epsPattern, doc),
	}
}

func firstMatch(re *regexp.Regexp, doc []byte) *string {
	m := re.FindSubmatch(doc)
	if m == nil {
		return nil
	}
	v := strings.TrimSpace(html.UnescapeString(string(m[1])))
	if v == "" {
		return nil
	}
	return &v
}
