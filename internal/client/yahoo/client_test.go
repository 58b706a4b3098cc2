package yahoo

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubGetter struct {
	body []byte
	err  error
	urls []string
}

func (s *stubGetter) Fetch(ctx context.Context, url string) ([]byte, error) {
	s.urls = append(s.urls, url)
	return s.body, s.err
}

func TestQuoteParsesChartMeta(t *testing.T) {
	g := &stubGetter{body: []byte(`{"chart":{"result":[{"meta":{
		"currency":"INR","symbol":"HDFCBANK.NS","exchangeName":"NSI","fullExchangeName":"NSE",
		"regularMarketPrice":1642.5,"longName":"HDFC Bank Limited","shortName":"HDFC BANK LTD"},
		"timestamp":[1714970700],"indicators":{"quote":[{}]}}],"error":null}}`)}
	c := NewClient(g, "http://yahoo.test/")

	q, err := c.Quote(context.Background(), "HDFCBANK.NS")
	if err != nil {
		t.Fatalf("Quote err=%v", err)
	}
	if q.Symbol != "HDFCBANK.NS" || q.FullExchangeName != "NSE" || q.LongName != "HDFC Bank Limited" || q.ShortName != "HDFC BANK LTD" || q.Currency != "INR" {
		t.Fatalf("quote=%+v", q)
	}
	if q.RegularMarketPrice == nil || *q.RegularMarketPrice != 1642.5 {
		t.Fatalf("price=%v want=1642.5", q.RegularMarketPrice)
	}
	if len(g.urls) != 1 || g.urls[0] != "http://yahoo.test/v8/finance/chart/HDFCBANK.NS?interval=1d&range=1d" {
		t.Fatalf("urls=%v", g.urls)
	}
}

func TestQuoteURLEscapesSymbol(t *testing.T) {
	c := NewClient(nil, "")
	if got := c.QuoteURL("M&M.NS"); got != DefaultBaseURL+"/v8/finance/chart/M&M.NS?interval=1d&range=1d" {
		t.Fatalf("url=%s", got)
	}
	if got := c.QuoteURL("A/B"); !strings.Contains(got, "/chart/A%2FB?") {
		t.Fatalf("url=%s", got)
	}
}

func TestQuoteMissingPrice(t *testing.T) {
	g := &stubGetter{body: []byte(`{"chart":{"result":[{"meta":{"symbol":"SAVFI.BO","regularMarketPrice":null}}]}}`)}
	q, err := NewClient(g, "").Quote(context.Background(), "SAVFI.BO")
	if err != nil {
		t.Fatalf("Quote err=%v", err)
	}
	if q.RegularMarketPrice != nil {
		t.Fatalf("price=%v want=nil", *q.RegularMarketPrice)
	}
}

func TestQuoteEmptyResult(t *testing.T) {
	g := &stubGetter{body: []byte(`{"chart":{"result":[],"error":null}}`)}
	_, err := NewClient(g, "").Quote(context.Background(), "NOPE.NS")
	if !errors.Is(err, ErrNoQuote) {
		t.Fatalf("err=%v want ErrNoQuote", err)
	}
}

func TestQuoteErrorDescription(t *testing.T) {
	g := &stubGetter{body: []byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)}
	_, err := NewClient(g, "").Quote(context.Background(), "X.NS")
	if !errors.Is(err, ErrNoQuote) || !strings.Contains(err.Error(), "delisted") {
		t.Fatalf("err=%v", err)
	}
}

func TestQuoteInvalidJSON(t *testing.T) {
	g := &stubGetter{body: []byte(`<html>`)}
	if _, err := NewClient(g, "").Quote(context.Background(), "X.NS"); err == nil {
		t.Fatalf("expected error for non-json body")
	}
}

func TestQuotePropagatesFetchError(t *testing.T) {
	boom := errors.New("boom")
	g := &stubGetter{err: boom}
	if _, err := NewClient(g, "").Quote(context.Background(), "X.NS"); !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
}
