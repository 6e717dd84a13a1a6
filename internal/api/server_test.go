package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"FairValue/internal/advisor"
	"FairValue/internal/collector"
	"FairValue/internal/model"
	"FairValue/internal/recorder"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResolver struct {
	data     *model.TickerData
	err      error
	lastOpts collector.ResolveOptions
	calls    int
}

func (f *fakeResolver) Resolve(_ context.Context, symbol string, opts collector.ResolveOptions) (*model.TickerData, error) {
	f.calls++
	f.lastOpts = opts
	if collector.NormalizeSymbol(symbol) == "" {
		return nil, collector.ErrInvalidSymbol
	}
	return f.data, f.err
}

func (f *fakeResolver) Refresh(ctx context.Context, symbol string) (*model.TickerData, error) {
	return f.Resolve(ctx, symbol, collector.ResolveOptions{Force: true})
}

type fakeGenerator struct{ reply string }

func (g fakeGenerator) Generate(context.Context, string, string) (string, error) { return g.reply, nil }

func sampleData() *model.TickerData {
	return &model.TickerData{
		Quote: model.Quote{Symbol: "ACME", RegularMarketPrice: model.Float(40), SharesOutstanding: model.Float(50)},
		FCFHistory: []model.FCFEntry{
			{Date: 1703980800000, FreeCashflow: model.Float(100)},
			{Date: 1672444800000, FreeCashflow: model.Float(90)},
		},
		SuggestedWacc:       model.Float(0.1),
		WaccSource:          "capm",
		SuggestedGrowthRate: model.Float(0.1),
		GrowthSource:        "conservative",
		ValuationMetrics: []model.ValuationMetricEntry{
			{Year: 2024, Month: 12, PS: model.Float(3), Price: model.Float(40)},
		},
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetTicker(t *testing.T) {
	res := &fakeResolver{data: sampleData()}
	h := NewServer(res, nil, nil, nil).Handler()

	w := do(t, h, http.MethodGet, "/api/ticker/acme?cacheOnly=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, res.lastOpts.CacheOnly)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	var got model.TickerData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 40.0, got.Quote.Price())
	assert.Len(t, got.FCFHistory, 2)
}

func TestGetTicker_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not cached", collector.ErrNotCached, http.StatusNotFound},
		{"not found", &collector.FetchError{Provider: "alphavantage", Kind: collector.SymbolNotFound, Detail: "no quote"}, http.StatusNotFound},
		{"rate limited", &collector.FetchError{Provider: "alphavantage", Kind: collector.RateLimited, Detail: "try again in about 1 minute"}, http.StatusTooManyRequests},
		{"payload", &collector.FetchError{Provider: "alphavantage", Kind: collector.InvalidPayload}, http.StatusBadGateway},
		{"save", fmt.Errorf("%w ACME: disk full", collector.ErrSaveFailed), http.StatusBadGateway},
		{"save without database", fmt.Errorf("%w ACME: %w", collector.ErrSaveFailed, recorder.ErrNotConfigured), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(&fakeResolver{err: tt.err}, nil, nil, nil).Handler()
			w := do(t, h, http.MethodGet, "/api/ticker/ACME", nil)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestGetTicker_RateLimitMessage(t *testing.T) {
	err := &collector.FetchError{Provider: "alphavantage", Kind: collector.RateLimited, Detail: "Alpha Vantage rate limit reached, please try again in about 1 minute"}
	h := NewServer(&fakeResolver{err: err}, nil, nil, nil).Handler()
	w := do(t, h, http.MethodGet, "/api/ticker/ACME", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, err.Detail, body["error"])
}

func TestRefreshTicker(t *testing.T) {
	res := &fakeResolver{data: sampleData()}
	h := NewServer(res, nil, nil, nil).Handler()
	w := do(t, h, http.MethodPost, "/api/ticker/ACME", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, res.lastOpts.Force)

	w = do(t, h, http.MethodPost, "/api/ticker/%20", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistory_NotConfigured(t *testing.T) {
	h := NewServer(&fakeResolver{}, nil, nil, nil).Handler()
	w := do(t, h, http.MethodGet, "/api/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSaveAndHistory(t *testing.T) {
	store, err := recorder.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	h := NewServer(&fakeResolver{}, store, nil, nil).Handler()

	body := map[string]any{
		"symbol":                 " acme ",
		"quote":                  map[string]any{"symbol": "ACME", "regularMarketPrice": 40},
		"fcfHistory":             []map[string]any{{"date": 1703980800000, "freeCashflow": 100}},
		"growthRate":             0.08,
		"discountRate":           0.1,
		"terminalGrowthRate":     0.025,
		"projectionYears":        7,
		"intrinsicValuePerShare": 55.5,
		"currentPrice":           40,
	}
	w := do(t, h, http.MethodPost, "/api/save", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []recorder.Analysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "ACME", rows[0].Symbol)
	require.NotNil(t, rows[0].Ticker.SavedDCFParams)
	assert.Equal(t, 7, rows[0].Ticker.SavedDCFParams.ProjectionYears)
	assert.Equal(t, 55.5, rows[0].Ticker.SavedDCFParams.IntrinsicValuePerShare)
}

func TestSave_ClampsProjectionYears(t *testing.T) {
	store, err := recorder.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	h := NewServer(&fakeResolver{}, store, nil, nil).Handler()

	w := do(t, h, http.MethodPost, "/api/save", map[string]any{
		"symbol": "ACME", "quote": map[string]any{"symbol": "ACME"}, "growthRate": 0.1, "discountRate": 0.1,
		"terminalGrowthRate": 0.02, "projectionYears": 1e300, "intrinsicValuePerShare": 1, "currentPrice": 1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	a, err := store.Get(context.Background(), "ACME")
	require.NoError(t, err)
	require.NotNil(t, a.Ticker.SavedDCFParams)
	assert.Equal(t, 15, a.Ticker.SavedDCFParams.ProjectionYears)
}

func TestSave_Validation(t *testing.T) {
	h := NewServer(&fakeResolver{}, nil, nil, nil).Handler()

	w := do(t, h, http.MethodPost, "/api/save", map[string]any{"symbol": "ACME"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Quote")

	w = do(t, h, http.MethodPost, "/api/save", map[string]any{
		"symbol": "ACME", "quote": map[string]any{}, "growthRate": 0.1, "discountRate": 0.1,
		"terminalGrowthRate": 0.02, "intrinsicValuePerShare": 1, "currentPrice": 1,
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDCF_FromSymbol(t *testing.T) {
	h := NewServer(&fakeResolver{data: sampleData()}, nil, nil, nil).Handler()
	w := do(t, h, http.MethodPost, "/api/dcf", map[string]any{"symbol": "ACME"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp dcfResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 100.0, resp.Params.BaseFCF)
	assert.Equal(t, 50.0, resp.Params.SharesOutstanding)
	assert.Equal(t, 5, resp.Params.ProjectionYears)
	assert.Equal(t, "conservative", resp.GrowthSource)
	assert.Equal(t, "capm", resp.WaccSource)
	assert.InDelta(t, 1866.667, resp.Result.EnterpriseValue, 0.01)
	require.NotNil(t, resp.MarginOfSafety)
	require.NotNil(t, resp.Multiples)
	require.NotNil(t, resp.Multiples.PS)
	assert.Equal(t, 3.0, resp.Multiples.PS.Current)
}

func TestDCF_ExplicitInputs(t *testing.T) {
	h := NewServer(&fakeResolver{}, nil, nil, nil).Handler()
	w := do(t, h, http.MethodPost, "/api/dcf", map[string]any{
		"baseFcf": 100, "sharesOutstanding": 50, "growthRate": 0.1, "discountRate": 0.1,
		"terminalGrowthRate": 0.025, "projectionYears": 5,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp dcfResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Result.Projections, 5)
	assert.InDelta(t, resp.Result.PVProjected+resp.Result.PVTerminal, resp.Result.EnterpriseValue, 1e-9)
	assert.Nil(t, resp.MarginOfSafety)

	w = do(t, h, http.MethodPost, "/api/dcf", map[string]any{"growthRate": 0.1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDCFAdvice(t *testing.T) {
	w := do(t, NewServer(&fakeResolver{}, nil, nil, nil).Handler(), http.MethodPost, "/api/dcf-advice", map[string]any{"symbol": "ACME"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	adv := advisor.New(fakeGenerator{reply: "```json\n{\"growthRate\": 0.07, \"reasoning\": \"mature\"}\n```"}, nil)
	h := NewServer(&fakeResolver{}, nil, adv, nil).Handler()

	w = do(t, h, http.MethodPost, "/api/dcf-advice", map[string]any{"symbol": "ACME"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/dcf-advice", map[string]any{
		"symbol": "acme",
		"quote":  map[string]any{"regularMarketPrice": 40},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var advice advisor.Advice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &advice))
	assert.Equal(t, 0.07, advice.GrowthRate)
	assert.Equal(t, 0.1, advice.DiscountRate)
	assert.Equal(t, "mature", advice.Reasoning)
}

func TestRecoveryAndAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	r := gin.New()
	r.Use(RequestID(), AccessLog(logger), Recovery(logger))
	r.GET("/boom", func(*gin.Context) { panic(errors.New("boom")) })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(requestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(requestIDHeader))
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
}
