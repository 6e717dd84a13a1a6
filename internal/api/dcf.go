package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"FairValue/internal/advisor"
	"FairValue/internal/calculator"
	"FairValue/internal/collector"
)

type dcfRequest struct {
	Symbol             string   `json:"symbol"`
	BaseFCF            *float64 `json:"baseFcf"`
	SharesOutstanding  *float64 `json:"sharesOutstanding"`
	CurrentPrice       *float64 `json:"currentPrice"`
	GrowthRate         *float64 `json:"growthRate"`
	DiscountRate       *float64 `json:"discountRate"`
	TerminalGrowthRate *float64 `json:"terminalGrowthRate"`
	ProjectionYears    *float64 `json:"projectionYears"`
}

type dcfResponse struct {
	Params         calculator.Params `json:"params"`
	Result         calculator.Result `json:"result"`
	GrowthSource   string            `json:"growthSource,omitempty"`
	WaccSource     string            `json:"waccSource,omitempty"`
	CurrentPrice   *float64          `json:"currentPrice,omitempty"`
	MarginOfSafety *float64          `json:"marginOfSafety,omitempty"`

	Multiples *calculator.MultiplesSummary `json:"multiples,omitempty"`
}

// dcf values a company from explicit inputs. With a symbol, missing inputs are
// taken from the resolved ticker data and its heuristics.
func (s *Server) dcf(c *gin.Context) {
	var req dcfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindError(err)})
		return
	}

	resp := dcfResponse{CurrentPrice: req.CurrentPrice}
	p := calculator.Params{
		GrowthRate:         calculator.DefaultGrowthRate,
		DiscountRate:       calculator.DefaultDiscountRate,
		TerminalGrowthRate: calculator.DefaultTerminalGrowthRate,
		ProjectionYears:    calculator.DefaultProjectionYears,
	}
	haveBase := false

	if req.Symbol != "" {
		data, err := s.resolver.Resolve(c.Request.Context(), req.Symbol, collector.ResolveOptions{})
		if err != nil {
			s.fail(c, err)
			return
		}
		if len(data.FCFHistory) > 0 && data.FCFHistory[0].FreeCashflow != nil {
			p.BaseFCF = *data.FCFHistory[0].FreeCashflow
			haveBase = true
		}
		p.SharesOutstanding = data.Quote.Shares()
		if data.SuggestedGrowthRate != nil {
			p.GrowthRate = *data.SuggestedGrowthRate
			resp.GrowthSource = data.GrowthSource
		}
		if data.SuggestedWacc != nil {
			p.DiscountRate = *data.SuggestedWacc
			resp.WaccSource = data.WaccSource
		}
		if resp.CurrentPrice == nil {
			resp.CurrentPrice = data.Quote.RegularMarketPrice
		}
		if len(data.ValuationMetrics) > 0 {
			m := calculator.SummarizeMultiples(data.ValuationMetrics)
			resp.Multiples = &m
		}
	}

	if req.BaseFCF != nil {
		p.BaseFCF, haveBase = *req.BaseFCF, true
	}
	if !haveBase {
		c.JSON(http.StatusBadRequest, gin.H{"error": "baseFcf is required when no free cash flow history is available"})
		return
	}
	if req.SharesOutstanding != nil {
		p.SharesOutstanding = *req.SharesOutstanding
	}
	if req.GrowthRate != nil {
		p.GrowthRate, resp.GrowthSource = *req.GrowthRate, ""
	}
	if req.DiscountRate != nil {
		p.DiscountRate, resp.WaccSource = *req.DiscountRate, ""
	}
	if req.TerminalGrowthRate != nil {
		p.TerminalGrowthRate = *req.TerminalGrowthRate
	}
	p = calculator.ClampParams(p)
	if req.ProjectionYears != nil {
		p.ProjectionYears = calculator.ClampYears(*req.ProjectionYears)
	}

	resp.Params = p
	resp.Result = calculator.ComputeDCF(p)
	if resp.CurrentPrice != nil {
		if m, ok := calculator.MarginOfSafety(resp.Result.IntrinsicValuePerShare, *resp.CurrentPrice); ok {
			resp.MarginOfSafety = &m
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) dcfAdvice(c *gin.Context) {
	if !s.advisor.Enabled() {
		s.fail(c, advisor.ErrNotConfigured)
		return
	}
	var req advisor.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindError(err)})
		return
	}
	req.Symbol = collector.NormalizeSymbol(req.Symbol)
	if req.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": collector.ErrInvalidSymbol.Error()})
		return
	}
	if req.Quote.RegularMarketPrice == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing quote"})
		return
	}
	advice, err := s.advisor.Advise(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, advice)
}
