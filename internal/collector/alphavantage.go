package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"FairValue/internal/model"
)

// DefaultAlphaVantageURL is the Alpha Vantage query endpoint.
const DefaultAlphaVantageURL = "https://www.alphavantage.co/query"

const maxDetailRunes = 120

var rateLimitPattern = regexp.MustCompile(`(?i)spreading out|rate limit|requests per`)

// alphaMessageKeys carry quota, key and symbol problems in an otherwise 200 response.
var alphaMessageKeys = []string{"Information", "Note", "Error Message"}

// AlphaVantage is the primary provider. Every request waits on the shared pacer.
type AlphaVantage struct {
	apiKey string
	opts   options
}

// NewAlphaVantage creates the primary provider. An empty key makes every Fetch fail with NoCredential.
func NewAlphaVantage(apiKey string, opts ...Option) *AlphaVantage {
	return &AlphaVantage{
		apiKey: strings.TrimSpace(apiKey),
		opts:   buildOptions([]string{DefaultAlphaVantageURL}, NewIntervalPacer(DefaultAlphaVantageInterval), opts),
	}
}

func (a *AlphaVantage) Name() string { return "alphavantage" }

type avGlobalQuote struct {
	Symbol        string    `json:"01. symbol"`
	Price         flexFloat `json:"05. price"`
	Change        flexFloat `json:"09. change"`
	ChangePercent string    `json:"10. change percent"`
}

type avOverview struct {
	Name                 string    `json:"Name"`
	Sector               string    `json:"Sector"`
	MarketCapitalization flexFloat `json:"MarketCapitalization"`
	SharesOutstanding    flexFloat `json:"SharesOutstanding"`
	PERatio              flexFloat `json:"PERatio"`
	ForwardPE            flexFloat `json:"ForwardPE"`
	Beta                 flexFloat `json:"Beta"`
}

type avCashFlowReport struct {
	FiscalDateEnding         string    `json:"fiscalDateEnding"`
	FiscalDateEndingSnake    string    `json:"fiscal_date_ending"`
	OperatingCashflow        flexFloat `json:"operatingCashflow"`
	OperatingCashflowSnake   flexFloat `json:"operating_cashflow"`
	CapitalExpenditures      flexFloat `json:"capitalExpenditures"`
	CapitalExpendituresSnake flexFloat `json:"capital_expenditures"`
}

func (r avCashFlowReport) fiscalDate() string {
	if r.FiscalDateEnding != "" {
		return r.FiscalDateEnding
	}
	return r.FiscalDateEndingSnake
}

func (r avCashFlowReport) operating() flexFloat { return r.OperatingCashflow.or(r.OperatingCashflowSnake) }
func (r avCashFlowReport) capex() flexFloat     { return r.CapitalExpenditures.or(r.CapitalExpendituresSnake) }

type avIncomeReport struct {
	FiscalDateEnding      string    `json:"fiscalDateEnding"`
	FiscalDateEndingSnake string    `json:"fiscal_date_ending"`
	TotalRevenue          flexFloat `json:"totalRevenue"`
	TotalRevenueSnake     flexFloat `json:"total_revenue"`
}

type avAnnualEarning struct {
	FiscalDateEnding string    `json:"fiscalDateEnding"`
	ReportedEPS      flexFloat `json:"reportedEPS"`
	ReportedEPSSnake flexFloat `json:"reported_eps"`
}

type avMonthlyBar struct {
	AdjustedClose flexFloat `json:"5. adjusted close"`
	Close         flexFloat `json:"4. close"`
}

// Fetch runs GLOBAL_QUOTE, OVERVIEW and CASH_FLOW in sequence, then the valuation metric
// calls. Only the quote decides success; the rest degrade to empty.
func (a *AlphaVantage) Fetch(ctx context.Context, symbol string) (*Record, error) {
	if a.apiKey == "" {
		return nil, a.fail(NoCredential, "ALPHA_VANTAGE_API_KEY is not configured", nil)
	}

	body, err := a.get(ctx, "GLOBAL_QUOTE", symbol)
	if err != nil {
		return nil, a.fail(ProviderError, "Alpha Vantage request failed: "+err.Error(), err)
	}
	gq, ferr := a.parseQuote(body)
	if ferr != nil {
		return nil, ferr
	}

	body, err = a.get(ctx, "OVERVIEW", symbol)
	if err != nil {
		return nil, a.fail(ProviderError, "Alpha Vantage request failed: "+err.Error(), err)
	}
	var ov avOverview
	a.decodeBestEffort("overview", symbol, body, func(top map[string]json.RawMessage, raw []byte) error {
		return json.Unmarshal(raw, &ov)
	})

	body, err = a.get(ctx, "CASH_FLOW", symbol)
	if err != nil {
		return nil, a.fail(ProviderError, "Alpha Vantage request failed: "+err.Error(), err)
	}
	var cf struct {
		AnnualReports []avCashFlowReport `json:"annualReports"`
	}
	a.decodeBestEffort("cash flow", symbol, body, func(top map[string]json.RawMessage, raw []byte) error {
		return json.Unmarshal(raw, &cf)
	})

	price := gq.Price.Value
	quote := model.Quote{
		Symbol:                     firstNonEmpty(gq.Symbol, symbol),
		ShortName:                  firstNonEmpty(ov.Name, symbol),
		RegularMarketPrice:         model.Float(price),
		RegularMarketChange:        gq.Change.Ptr(),
		RegularMarketChangePercent: parsePercent(gq.ChangePercent),
		MarketCap:                  ov.MarketCapitalization.Ptr(),
		TrailingPE:                 ov.PERatio.Ptr(),
		ForwardPE:                  ov.ForwardPE.Ptr(),
		SharesOutstanding:          ov.SharesOutstanding.Ptr(),
		Currency:                   "USD",
	}
	if quote.MarketCap == nil && ov.SharesOutstanding.Valid {
		quote.MarketCap = model.Float(ov.SharesOutstanding.Value * price)
	}

	history := make([]model.FCFEntry, 0, len(cf.AnnualReports))
	for _, r := range cf.AnnualReports {
		history = append(history, alphaFCFEntry(r))
	}

	rec := &Record{
		Quote:      quote,
		FCFHistory: NormalizeFCFHistory(history),
		Beta:       ov.Beta.Ptr(),
		Sector:     strings.TrimSpace(ov.Sector),
	}
	rec.ValuationMetrics = Degrade(ctx, a.opts.logger, "valuation metrics", func(ctx context.Context) ([]model.ValuationMetricEntry, error) {
		return a.fetchValuationMetrics(ctx, symbol, quote.Shares(), cf.AnnualReports)
	})
	return rec, nil
}

// parseQuote classifies a GLOBAL_QUOTE body.
func (a *AlphaVantage) parseQuote(body []byte) (*avGlobalQuote, *FetchError) {
	top, ferr := a.payload(body)
	if ferr != nil {
		return nil, ferr
	}
	raw, ok := top["Global Quote"]
	if !ok || !isJSONObject(raw) {
		return nil, a.fail(InvalidPayload, "Alpha Vantage response has no Global Quote", nil)
	}
	var gq avGlobalQuote
	if err := json.Unmarshal(raw, &gq); err != nil {
		return nil, a.fail(InvalidPayload, "Alpha Vantage returned a malformed quote", err)
	}
	if !gq.Price.Valid || gq.Price.Value <= 0 {
		return nil, a.fail(SymbolNotFound, "Alpha Vantage has no valid price for this symbol", nil)
	}
	return &gq, nil
}

// payload decodes the top level of an Alpha Vantage body and maps in-band messages to failures.
func (a *AlphaVantage) payload(body []byte) (map[string]json.RawMessage, *FetchError) {
	if !isJSONObject(body) {
		return nil, a.fail(InvalidPayload, "Alpha Vantage returned an invalid response", nil)
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, a.fail(InvalidPayload, "Alpha Vantage returned an invalid response", err)
	}
	if msg, ok := alphaMessage(top); ok {
		if rateLimitPattern.MatchString(msg) {
			return nil, a.fail(RateLimited, "Alpha Vantage rate limit reached, please try again in about 1 minute", nil)
		}
		return nil, a.fail(ProviderError, truncate(msg, maxDetailRunes), nil)
	}
	return top, nil
}

func alphaMessage(top map[string]json.RawMessage) (string, bool) {
	for _, k := range alphaMessageKeys {
		raw, ok := top[k]
		if !ok || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		return s, true
	}
	return "", false
}

// decodeBestEffort leaves the target empty when the body is unusable.
func (a *AlphaVantage) decodeBestEffort(step, symbol string, body []byte, decode func(map[string]json.RawMessage, []byte) error) bool {
	top, ferr := a.payload(body)
	if ferr == nil {
		err := decode(top, body)
		if err == nil {
			return true
		}
		ferr = a.fail(InvalidPayload, err.Error(), err)
	}
	a.opts.logger.Warn("alphavantage payload ignored",
		zap.String("step", step),
		zap.String("symbol", symbol),
		zap.Stringer("kind", ferr.Kind),
		zap.String("detail", ferr.Detail),
	)
	return false
}

func (a *AlphaVantage) fetchValuationMetrics(ctx context.Context, symbol string, shares float64, cashflow []avCashFlowReport) ([]model.ValuationMetricEntry, error) {
	earningsBody, err := a.get(ctx, "EARNINGS", symbol)
	if err != nil {
		return nil, fmt.Errorf("earnings: %w", err)
	}
	incomeBody, err := a.get(ctx, "INCOME_STATEMENT", symbol)
	if err != nil {
		return nil, fmt.Errorf("income statement: %w", err)
	}
	seriesBody, err := a.get(ctx, "TIME_SERIES_MONTHLY_ADJUSTED", symbol)
	if err != nil {
		return nil, fmt.Errorf("monthly series: %w", err)
	}

	in := MetricInputs{
		Shares:        shares,
		RevenueByYear: map[int]float64{},
		EPSByYear:     map[int]float64{},
		FCFByYear:     map[int]float64{},
	}

	for _, r := range cashflow {
		_, year, ok := parseFiscalDate(r.fiscalDate())
		if !ok {
			continue
		}
		if fcf := deriveFCF(r.operating(), r.capex()); fcf.Valid {
			in.FCFByYear[year] = fcf.Value
		}
	}

	var earnings struct {
		AnnualEarnings []avAnnualEarning `json:"annualEarnings"`
	}
	a.decodeBestEffort("earnings", symbol, earningsBody, func(_ map[string]json.RawMessage, raw []byte) error {
		return json.Unmarshal(raw, &earnings)
	})
	for _, e := range earnings.AnnualEarnings {
		_, year, ok := parseFiscalDate(e.FiscalDateEnding)
		if !ok {
			continue
		}
		if eps := e.ReportedEPS.or(e.ReportedEPSSnake); eps.Valid {
			in.EPSByYear[year] = eps.Value
		}
	}

	var income struct {
		AnnualReports []avIncomeReport `json:"annualReports"`
	}
	a.decodeBestEffort("income statement", symbol, incomeBody, func(_ map[string]json.RawMessage, raw []byte) error {
		return json.Unmarshal(raw, &income)
	})
	for _, r := range income.AnnualReports {
		_, year, ok := parseFiscalDate(firstNonEmpty(r.FiscalDateEnding, r.FiscalDateEndingSnake))
		if !ok {
			continue
		}
		if rev := r.TotalRevenue.or(r.TotalRevenueSnake); rev.Valid {
			in.RevenueByYear[year] = rev.Value
		}
	}

	a.decodeBestEffort("monthly series", symbol, seriesBody, func(top map[string]json.RawMessage, _ []byte) error {
		raw, ok := top["Monthly Adjusted Time Series"]
		if !ok {
			raw, ok = top["Monthly adjusted time series"]
		}
		if !ok {
			return nil
		}
		var series map[string]avMonthlyBar
		if err := json.Unmarshal(raw, &series); err != nil {
			return err
		}
		for date, bar := range series {
			year, month, ok := parseYearMonth(date)
			if !ok {
				continue
			}
			if c := bar.AdjustedClose.or(bar.Close); c.Valid {
				in.Monthly = append(in.Monthly, MonthlyClose{Year: year, Month: month, Close: c.Value})
			}
		}
		return nil
	})

	return BuildValuationMetrics(in, a.opts.now()), nil
}

func (a *AlphaVantage) get(ctx context.Context, function, symbol string) ([]byte, error) {
	if err := a.opts.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for pacer: %w", err)
	}
	params := url.Values{}
	params.Set("function", function)
	params.Set("symbol", symbol)
	params.Set("apikey", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL()+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	a.opts.logger.Debug("alphavantage request", zap.String("function", function), zap.String("symbol", symbol))

	resp, err := a.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", function, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", function, err)
	}
	return body, nil
}

func (a *AlphaVantage) baseURL() string {
	if len(a.opts.baseURLs) == 0 {
		return DefaultAlphaVantageURL
	}
	return a.opts.baseURLs[0]
}

func (a *AlphaVantage) fail(kind FailureKind, detail string, err error) *FetchError {
	return &FetchError{Provider: a.Name(), Kind: kind, Detail: detail, Err: err}
}

func alphaFCFEntry(r avCashFlowReport) model.FCFEntry {
	op, capex := r.operating(), r.capex()
	e := model.FCFEntry{
		FreeCashflow:       deriveFCF(op, capex).Ptr(),
		OperatingCashflow:  op.Ptr(),
		CapitalExpenditure: capex.Ptr(),
	}
	if t, _, ok := parseFiscalDate(r.fiscalDate()); ok && !t.IsZero() {
		e.Date = t.UnixMilli()
	}
	return e
}

func parsePercent(s string) *float64 {
	v, ok := parseNumber(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if !ok {
		return nil
	}
	return &v
}

// parseYearMonth reads the year and month of a "YYYY-MM-DD" key.
func parseYearMonth(s string) (int, int, bool) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	return y, m, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
