package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"FairValue/internal/model"
)

// DefaultYahooHosts are the mirrored Yahoo Finance API hosts, tried in order.
var DefaultYahooHosts = []string{
	"https://query1.finance.yahoo.com",
	"https://query2.finance.yahoo.com",
}

const yahooUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var fiveYearPeriod = regexp.MustCompile(`(?i)5y|\+5y|5\s*year`)

// Yahoo is the secondary provider. It needs no credential.
type Yahoo struct {
	opts options
}

// NewYahoo creates the secondary provider.
func NewYahoo(opts ...Option) *Yahoo {
	return &Yahoo{opts: buildOptions(DefaultYahooHosts, NoPacer{}, opts)}
}

func (y *Yahoo) Name() string { return "yahoo" }

type yahooQuote struct {
	Symbol                     string    `json:"symbol"`
	ShortName                  string    `json:"shortName"`
	LongName                   string    `json:"longName"`
	QuoteType                  string    `json:"quoteType"`
	Currency                   string    `json:"currency"`
	RegularMarketPrice         flexFloat `json:"regularMarketPrice"`
	RegularMarketChange        flexFloat `json:"regularMarketChange"`
	RegularMarketChangePercent flexFloat `json:"regularMarketChangePercent"`
	MarketCap                  flexFloat `json:"marketCap"`
	TrailingPE                 flexFloat `json:"trailingPE"`
	ForwardPE                  flexFloat `json:"forwardPE"`
	SharesOutstanding          flexFloat `json:"sharesOutstanding"`
}

type yahooCashflowStatement struct {
	EndDate                          flexFloat `json:"endDate"` // unix seconds
	FreeCashflow                     flexFloat `json:"freeCashflow"`
	TotalCashFromOperatingActivities flexFloat `json:"totalCashFromOperatingActivities"`
	CapitalExpenditures              flexFloat `json:"capitalExpenditures"`
}

type yahooSummary struct {
	CashflowStatementHistory struct {
		CashflowStatements []yahooCashflowStatement `json:"cashflowStatements"`
	} `json:"cashflowStatementHistory"`
	DefaultKeyStatistics struct {
		SharesOutstanding flexFloat `json:"sharesOutstanding"`
		Beta              flexFloat `json:"beta"`
	} `json:"defaultKeyStatistics"`
}

type yahooGrowth struct {
	GrowthEstimate *struct {
		Growth flexFloat `json:"growth"`
	} `json:"growthEstimate"`
	EarningsTrend struct {
		Trend []struct {
			Period     string    `json:"period"`
			GrowthRate flexFloat `json:"growthRate"`
		} `json:"trend"`
	} `json:"earningsTrend"`
}

// Fetch requests quote and summary concurrently, then the analyst growth estimate.
// The summary and growth calls are optional; a missing quote is SymbolNotFound.
func (y *Yahoo) Fetch(ctx context.Context, symbol string) (*Record, error) {
	var (
		quote   *yahooQuote
		summary *yahooSummary
		g       errgroup.Group
	)
	g.Go(func() error {
		quote = y.fetchQuote(ctx, symbol)
		return nil
	})
	g.Go(func() error {
		summary = y.fetchSummary(ctx, symbol)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Provider: y.Name(), Kind: ProviderError, Detail: "Yahoo request aborted: " + err.Error(), Err: err}
	}
	if quote == nil {
		return nil, &FetchError{
			Provider: y.Name(),
			Kind:     SymbolNotFound,
			Detail:   fmt.Sprintf("no quote found for %s; set ALPHA_VANTAGE_API_KEY to use Alpha Vantage (free key: https://www.alphavantage.co/support/#api-key)", symbol),
		}
	}

	rec := &Record{Quote: quote.toModel(symbol)}
	if summary != nil {
		if s := summary.DefaultKeyStatistics.SharesOutstanding; s.Valid {
			rec.Quote.SharesOutstanding = model.Float(s.Value)
		}
		rec.Beta = summary.DefaultKeyStatistics.Beta.Ptr()
		stmts := summary.CashflowStatementHistory.CashflowStatements
		history := make([]model.FCFEntry, 0, len(stmts))
		for _, s := range stmts {
			history = append(history, yahooFCFEntry(s))
		}
		rec.FCFHistory = NormalizeFCFHistory(history)
	}
	if growth, ok := y.FetchAnalystGrowth(ctx, symbol); ok {
		rec.AnalystGrowth = model.Float(growth)
	}
	return rec, nil
}

// FetchAnalystGrowth returns the analysts' next-five-years growth estimate as a decimal.
func (y *Yahoo) FetchAnalystGrowth(ctx context.Context, symbol string) (float64, bool) {
	var (
		rate  float64
		found bool
	)
	y.getJSON(ctx, summaryPath(symbol, "earningsTrend,growthEstimate"), func(body []byte) bool {
		result, ok := firstSummaryResult(body)
		if !ok {
			return false
		}
		var gr yahooGrowth
		if err := json.Unmarshal(result, &gr); err != nil {
			return false
		}
		if gr.GrowthEstimate != nil && gr.GrowthEstimate.Growth.Valid {
			rate, found = asDecimal(gr.GrowthEstimate.Growth.Value), true
			return true
		}
		for _, t := range gr.EarningsTrend.Trend {
			if fiveYearPeriod.MatchString(t.Period) {
				if t.GrowthRate.Valid {
					rate, found = asDecimal(t.GrowthRate.Value), true
					return true
				}
				break
			}
		}
		return false
	})
	return rate, found
}

func (y *Yahoo) fetchQuote(ctx context.Context, symbol string) *yahooQuote {
	var out *yahooQuote
	y.getJSON(ctx, "/v7/finance/quote?"+url.Values{"symbols": {symbol}}.Encode(), func(body []byte) bool {
		var resp struct {
			QuoteResponse struct {
				Result []yahooQuote `json:"result"`
			} `json:"quoteResponse"`
		}
		if err := json.Unmarshal(body, &resp); err != nil || len(resp.QuoteResponse.Result) == 0 {
			return false
		}
		q := resp.QuoteResponse.Result[0]
		if q.QuoteType == "NONE" {
			return false
		}
		out = &q
		return true
	})
	return out
}

func (y *Yahoo) fetchSummary(ctx context.Context, symbol string) *yahooSummary {
	var out *yahooSummary
	y.getJSON(ctx, summaryPath(symbol, "cashflowStatementHistory,defaultKeyStatistics"), func(body []byte) bool {
		result, ok := firstSummaryResult(body)
		if !ok {
			return false
		}
		var s yahooSummary
		if err := json.Unmarshal(result, &s); err != nil {
			return false
		}
		out = &s
		return true
	})
	return out
}

// getJSON tries each host in order until accept takes a response body.
// A host answers only with 200, a JSON content type and a body that is a JSON object.
func (y *Yahoo) getJSON(ctx context.Context, path string, accept func([]byte) bool) bool {
	for _, host := range y.opts.baseURLs {
		if ctx.Err() != nil {
			return false
		}
		body, err := y.get(ctx, strings.TrimRight(host, "/")+path)
		if err != nil {
			y.opts.logger.Debug("yahoo host skipped", zap.String("host", host), zap.Error(err))
			continue
		}
		if accept(body) {
			return true
		}
		y.opts.logger.Debug("yahoo host returned no usable result", zap.String("host", host), zap.String("path", path))
	}
	return false
}

func (y *Yahoo) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := y.opts.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := y.opts.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return nil, fmt.Errorf("content type %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !isJSONObject(body) {
		return nil, fmt.Errorf("body is not a JSON object")
	}
	return body, nil
}

func summaryPath(symbol, modules string) string {
	return "/v10/finance/quoteSummary/" + url.PathEscape(symbol) + "?" + url.Values{"modules": {modules}}.Encode()
}

func firstSummaryResult(body []byte) (json.RawMessage, bool) {
	var resp struct {
		QuoteSummary struct {
			Result []json.RawMessage `json:"result"`
		} `json:"quoteSummary"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.QuoteSummary.Result) == 0 {
		return nil, false
	}
	first := resp.QuoteSummary.Result[0]
	if !isJSONObject(first) {
		return nil, false
	}
	return first, true
}

// asDecimal converts percentages such as 12.5 to 0.125. Values up to 1 are taken as decimals already.
func asDecimal(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}

func (q yahooQuote) toModel(symbol string) model.Quote {
	return model.Quote{
		Symbol:                     firstNonEmpty(q.Symbol, symbol),
		ShortName:                  firstNonEmpty(q.ShortName, q.LongName),
		RegularMarketPrice:         q.RegularMarketPrice.Ptr(),
		RegularMarketChange:        q.RegularMarketChange.Ptr(),
		RegularMarketChangePercent: q.RegularMarketChangePercent.Ptr(),
		MarketCap:                  q.MarketCap.Ptr(),
		TrailingPE:                 q.TrailingPE.Ptr(),
		ForwardPE:                  q.ForwardPE.Ptr(),
		SharesOutstanding:          q.SharesOutstanding.Ptr(),
		Currency:                   q.Currency,
	}
}

func yahooFCFEntry(s yahooCashflowStatement) model.FCFEntry {
	fcf := s.FreeCashflow
	if !fcf.Valid && s.TotalCashFromOperatingActivities.Valid {
		capex := s.CapitalExpenditures
		if !capex.Valid {
			capex = flexFloat{Valid: true}
		}
		fcf = deriveFCF(s.TotalCashFromOperatingActivities, capex)
	}
	e := model.FCFEntry{
		FreeCashflow:       fcf.Ptr(),
		OperatingCashflow:  s.TotalCashFromOperatingActivities.Ptr(),
		CapitalExpenditure: s.CapitalExpenditures.Ptr(),
	}
	if s.EndDate.Valid {
		e.Date = int64(s.EndDate.Value) * 1000
	}
	return e
}
