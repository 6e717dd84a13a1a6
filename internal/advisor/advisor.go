package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"go.uber.org/zap"

	"FairValue/internal/calculator"
	"FairValue/internal/model"
)

// ErrNotConfigured is returned when no model backend is available.
var ErrNotConfigured = errors.New("GEMINI_API_KEY is not configured")

const defaultReasoning = "no reasoning provided"

var codeBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// Generator returns the raw model reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// CurrentParams are the DCF inputs the user is looking at.
type CurrentParams struct {
	GrowthRate         float64 `json:"growthRate"`
	DiscountRate       float64 `json:"discountRate"`
	TerminalGrowthRate float64 `json:"terminalGrowthRate"`
	ProjectionYears    int     `json:"projectionYears"`
}

// Request is the company context sent to the model.
type Request struct {
	Symbol              string           `json:"symbol" binding:"required"`
	Quote               model.Quote      `json:"quote"`
	FCFHistory          []model.FCFEntry `json:"fcfHistory"`
	AnalystGrowthRate5y *float64         `json:"analystGrowthRate5y"`
	SuggestedWacc       *float64         `json:"suggestedWacc"`
	WaccSource          string           `json:"waccSource"`
	CurrentParams       *CurrentParams   `json:"currentParams"`
}

// Advice is a clamped DCF parameter suggestion.
type Advice struct {
	GrowthRate         float64 `json:"growthRate"`
	DiscountRate       float64 `json:"discountRate"`
	TerminalGrowthRate float64 `json:"terminalGrowthRate"`
	ProjectionYears    int     `json:"projectionYears"`
	Reasoning          string  `json:"reasoning"`
}

// Advisor asks a language model for DCF parameters.
type Advisor struct {
	gen    Generator
	logger *zap.Logger
}

// New returns an advisor. A nil generator makes Advise fail with ErrNotConfigured.
func New(gen Generator, logger *zap.Logger) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{gen: gen, logger: logger}
}

// Enabled reports whether a model backend is configured.
func (a *Advisor) Enabled() bool { return a != nil && a.gen != nil }

// Advise builds the prompt, queries the model and parses its reply.
func (a *Advisor) Advise(ctx context.Context, req Request) (*Advice, error) {
	if !a.Enabled() {
		return nil, ErrNotConfigured
	}
	start := time.Now()
	raw, err := a.gen.Generate(ctx, systemPrompt, BuildPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("generate advice: %w", err)
	}
	advice, err := ParseAdvice(raw)
	if err != nil {
		a.logger.Warn("unparseable advice", zap.String("symbol", req.Symbol), zap.String("reply", truncate(raw, 200)))
		return nil, err
	}
	a.logger.Info("advice generated", zap.String("symbol", req.Symbol), zap.Duration("took", time.Since(start)))
	return advice, nil
}

const systemPrompt = `You are a professional equity analyst specialising in discounted cash flow (DCF) valuation.
Based on the company data provided, recommend DCF parameters.

Reply with JSON only, no other text, in exactly this shape:
{
  "growthRate": 0.12,
  "discountRate": 0.10,
  "terminalGrowthRate": 0.025,
  "projectionYears": 5,
  "reasoning": "short explanation covering analyst expectations, industry and macro factors"
}

All rates are decimals:
- growthRate: annual FCF growth, e.g. 0.12 for 12%
- discountRate: discount rate (WACC), usually 0.06 to 0.15
- terminalGrowthRate: perpetual growth, usually 0.01 to 0.03, never above long-run GDP growth
- projectionYears: explicit forecast horizon, usually 5 to 10`

// BuildPrompt renders the company context.
func BuildPrompt(req Request) string {
	var b strings.Builder
	q := req.Quote
	fmt.Fprintf(&b, "Symbol: %s\n", req.Symbol)
	fmt.Fprintf(&b, "Name: %s\n", orDash(q.ShortName))
	if q.RegularMarketPrice != nil {
		fmt.Fprintf(&b, "Price: $%.2f\n", *q.RegularMarketPrice)
	} else {
		b.WriteString("Price: -\n")
	}
	if q.MarketCap != nil {
		fmt.Fprintf(&b, "Market cap: $%.2fB\n", *q.MarketCap/1e9)
	} else {
		b.WriteString("Market cap: -\n")
	}

	type fcfYear struct {
		Year string `json:"year"`
		FCF  string `json:"fcf"`
	}
	years := make([]fcfYear, 0, len(req.FCFHistory))
	for _, e := range req.FCFHistory {
		if e.FreeCashflow == nil {
			continue
		}
		y := "-"
		if e.Date != 0 {
			y = fmt.Sprint(e.Time().Year())
		}
		years = append(years, fcfYear{Year: y, FCF: fmt.Sprintf("%.2fB USD", *e.FreeCashflow/1e9)})
	}
	hist, _ := json.MarshalIndent(years, "", "  ")
	fmt.Fprintf(&b, "\nAnnual free cash flow:\n%s\n", hist)

	if req.AnalystGrowthRate5y != nil {
		fmt.Fprintf(&b, "\nAnalyst 5-year growth estimate: %.1f%%\n", *req.AnalystGrowthRate5y*100)
	}
	if req.SuggestedWacc != nil {
		fmt.Fprintf(&b, "Suggested WACC: %.1f%%\n", *req.SuggestedWacc*100)
	}
	if req.WaccSource != "" {
		fmt.Fprintf(&b, "WACC source: %s\n", req.WaccSource)
	}
	if p := req.CurrentParams; p != nil {
		fmt.Fprintf(&b, "\nCurrent user parameters: growth %.1f%%, discount %.1f%%, terminal growth %.1f%%, %d years\n",
			p.GrowthRate*100, p.DiscountRate*100, p.TerminalGrowthRate*100, p.ProjectionYears)
	}
	return b.String()
}

type rawAdvice struct {
	GrowthRate         *float64 `json:"growthRate"`
	DiscountRate       *float64 `json:"discountRate"`
	TerminalGrowthRate *float64 `json:"terminalGrowthRate"`
	ProjectionYears    *float64 `json:"projectionYears"`
	Reasoning          any      `json:"reasoning"`
}

// ParseAdvice extracts the JSON object from a model reply, repairing it when needed,
// and clamps every parameter into its accepted range.
func ParseAdvice(reply string) (*Advice, error) {
	text := strings.TrimSpace(reply)
	if m := codeBlock.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if text == "" {
		return nil, errors.New("empty advice reply")
	}

	var raw rawAdvice
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		repaired, rerr := jsonrepair.RepairJSON(text)
		if rerr != nil || json.Unmarshal([]byte(repaired), &raw) != nil {
			raw = rawAdvice{}
			if herr := hjson.Unmarshal([]byte(text), &raw); herr != nil {
				return nil, fmt.Errorf("parse advice: %w", err)
			}
		}
	}

	p := calculator.ClampParams(calculator.Params{
		GrowthRate:         valueOr(raw.GrowthRate, calculator.DefaultGrowthRate),
		DiscountRate:       valueOr(raw.DiscountRate, calculator.DefaultDiscountRate),
		TerminalGrowthRate: valueOr(raw.TerminalGrowthRate, calculator.DefaultTerminalGrowthRate),
	})
	advice := &Advice{
		GrowthRate:         p.GrowthRate,
		DiscountRate:       p.DiscountRate,
		TerminalGrowthRate: p.TerminalGrowthRate,
		ProjectionYears:    calculator.ClampYears(valueOr(raw.ProjectionYears, calculator.DefaultProjectionYears)),
		Reasoning:          defaultReasoning,
	}
	if s, ok := raw.Reasoning.(string); ok && strings.TrimSpace(s) != "" {
		advice.Reasoning = s
	}
	return advice, nil
}

func valueOr(v *float64, def float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return def
	}
	return *v
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
