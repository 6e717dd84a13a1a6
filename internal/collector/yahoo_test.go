package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	yQuoteOK = `{"quoteResponse": {"result": [{"symbol": "ACME", "longName": "Acme Corporation", "quoteType": "EQUITY",
		"regularMarketPrice": 99.5, "regularMarketChange": -0.5, "regularMarketChangePercent": -0.5,
		"marketCap": 99500, "trailingPE": 20, "sharesOutstanding": 900, "currency": "USD"}]}}`

	ySummaryOK = `{"quoteSummary": {"result": [{
		"cashflowStatementHistory": {"cashflowStatements": [
			{"endDate": {"raw": 1672444800, "fmt": "2022-12-31"}, "totalCashFromOperatingActivities": {"raw": 200}, "capitalExpenditures": {"raw": -50}},
			{"endDate": {"raw": 1703980800, "fmt": "2023-12-31"}, "freeCashflow": {"raw": 180}},
			{"endDate": {"raw": 1640908800}, "totalCashFromOperatingActivities": 120}
		]},
		"defaultKeyStatistics": {"sharesOutstanding": {"raw": 1000}, "beta": {"raw": 0.8}}
	}]}}`

	yGrowthTrend    = `{"quoteSummary": {"result": [{"earningsTrend": {"trend": [{"period": "0y", "growthRate": {"raw": 0.3}}, {"period": "+5y", "growthRate": {"raw": 0.123}}]}}]}}`
	yGrowthEstimate = `{"quoteSummary": {"result": [{"growthEstimate": {"growth": 14.5}}]}}`
)

// yahooHost serves canned bodies keyed by path prefix and module list.
func yahooHost(t *testing.T, hits *int32, routes map[string]string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		key := r.URL.Path
		if m := r.URL.Query().Get("modules"); m != "" {
			key = m
		}
		for prefix, body := range routes {
			if strings.HasPrefix(key, prefix) {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				_, _ = w.Write([]byte(body))
				return
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func htmlHost(t *testing.T, hits *int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>consent</html>"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestYahoo_FetchFallsThroughHosts(t *testing.T) {
	var bad, good int32
	h1 := htmlHost(t, &bad)
	h2 := yahooHost(t, &good, map[string]string{
		"/v7/finance/quote": yQuoteOK,
		"cashflowStatementHistory,defaultKeyStatistics": ySummaryOK,
		"earningsTrend,growthEstimate":                  yGrowthTrend,
	})

	rec, err := NewYahoo(WithBaseURL(h1.URL, h2.URL)).Fetch(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&bad))
	assert.Equal(t, int32(3), atomic.LoadInt32(&good))

	q := rec.Quote
	assert.Equal(t, "Acme Corporation", q.ShortName)
	assert.Equal(t, 99.5, q.Price())
	assert.Equal(t, 1000.0, q.Shares(), "summary shares override the quote")
	assert.Equal(t, 0.8, *rec.Beta)
	assert.Empty(t, rec.Sector)
	require.NotNil(t, rec.AnalystGrowth)
	assert.InDelta(t, 0.123, *rec.AnalystGrowth, 1e-9)

	require.Len(t, rec.FCFHistory, 3)
	assert.Equal(t, int64(1703980800000), rec.FCFHistory[0].Date)
	assert.Equal(t, 180.0, *rec.FCFHistory[0].FreeCashflow)
	assert.Equal(t, 150.0, *rec.FCFHistory[1].FreeCashflow)
	assert.Equal(t, 120.0, *rec.FCFHistory[2].FreeCashflow, "missing capex counts as zero")
}

func TestYahoo_NoQuote(t *testing.T) {
	var hits int32
	h := yahooHost(t, &hits, map[string]string{
		"/v7/finance/quote": `{"quoteResponse": {"result": [{"symbol": "ZZZZ", "quoteType": "NONE"}]}}`,
	})
	_, err := NewYahoo(WithBaseURL(h.URL)).Fetch(context.Background(), "ZZZZ")

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, SymbolNotFound, fe.Kind)
	assert.Contains(t, fe.Detail, "ALPHA_VANTAGE_API_KEY")
}

func TestYahoo_SummaryOptional(t *testing.T) {
	var hits int32
	h := yahooHost(t, &hits, map[string]string{"/v7/finance/quote": yQuoteOK})
	rec, err := NewYahoo(WithBaseURL(h.URL)).Fetch(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, 900.0, rec.Quote.Shares())
	assert.Empty(t, rec.FCFHistory)
	assert.Nil(t, rec.Beta)
	assert.Nil(t, rec.AnalystGrowth)
}

func TestYahoo_FetchAnalystGrowth(t *testing.T) {
	var hits int32
	h := yahooHost(t, &hits, map[string]string{"earningsTrend": yGrowthEstimate})
	g, ok := NewYahoo(WithBaseURL(h.URL)).FetchAnalystGrowth(context.Background(), "ACME")
	require.True(t, ok)
	assert.InDelta(t, 0.145, g, 1e-9, "percentages are converted to decimals")

	h2 := yahooHost(t, &hits, map[string]string{"earningsTrend": `{"quoteSummary": {"result": []}}`})
	_, ok = NewYahoo(WithBaseURL(h2.URL)).FetchAnalystGrowth(context.Background(), "ACME")
	assert.False(t, ok)
}
