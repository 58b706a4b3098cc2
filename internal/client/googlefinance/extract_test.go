package googlefinance

import "testing"

const page = `<html><body>
<div class="mfs7Fc">Market cap</div><div class="P6K39c">12.3T INR</div>
<div class="mfs7Fc">P/E ratio</div><div class="P6K39c">19.84</div>
<table><tr><td class="J9Jhg">Revenue</td><td class="QXDnM">1.2T</td></tr>
<tr><td class="J9Jhg">Earnings per share</td><td class="QXDnM">24.17</td></tr></table>
</body></html>`

func TestExtractBothFields(t *testing.T) {
	got := Extract([]byte(page))
	if got.PERatio == nil || *got.PERatio != "19.84" {
		t.Fatalf("pe=%v want=19.84", got.PERatio)
	}
	if got.EarningsPerShare == nil || *got.EarningsPerShare != "24.17" {
		t.Fatalf("eps=%v want=24.17", got.EarningsPerShare)
	}
}

func TestExtractFirstOccurrenceAfterLabel(t *testing.T) {
	doc := `P/E ratio <span>x</span><div class='P6K39c' data-x="1">-</div><div class="P6K39c">99</div>`
	got := Extract([]byte(doc))
	if got.PERatio == nil || *got.PERatio != "-" {
		t.Fatalf("pe=%v want=-", got.PERatio)
	}
	if got.EarningsPerShare != nil {
		t.Fatalf("eps=%v want=nil", *got.EarningsPerShare)
	}
}

func TestExtractNothing(t *testing.T) {
	got := Extract([]byte("<html>consent page</html>"))
	if !got.Empty() {
		t.Fatalf("got=%+v want empty", got)
	}
}

func TestExtractUnescapes(t *testing.T) {
	doc := `Earnings per share</td><td class="QXDnM">1,234&#46;5</td>`
	got := Extract([]byte(doc))
	if got.EarningsPerShare == nil || *got.EarningsPerShare != "1,234.5" {
		t.Fatalf("eps=%v want=1,234.5", got.EarningsPerShare)
	}
}

func TestQuoteURL(t *testing.T) {
	cases := map[string]string{
		"":                         "https://www.google.com/finance/quote/HDFCBANK:NSE",
		"http://127.0.0.1:9000/q":  "http://127.0.0.1:9000/q/HDFCBANK:NSE",
		"http://127.0.0.1:9000/q/": "http://127.0.0.1:9000/q/HDFCBANK:NSE",
	}
	for base, want := range cases {
		if got := QuoteURL(base, "HDFCBANK:NSE"); got != want {
			t.Fatalf("QuoteURL(%q)=%q want=%q", base, got, want)
		}
	}
}
