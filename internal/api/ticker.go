package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"FairValue/internal/calculator"
	"FairValue/internal/collector"
	"FairValue/internal/model"
)

func (s *Server) getTicker(c *gin.Context) {
	opts := collector.ResolveOptions{CacheOnly: c.Query("cacheOnly") == "1"}
	data, err := s.resolver.Resolve(c.Request.Context(), c.Param("symbol"), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) refreshTicker(c *gin.Context) {
	data, err := s.resolver.Refresh(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) history(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := s.store.List(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

type saveRequest struct {
	Symbol              string                       `json:"symbol" binding:"required"`
	Quote               *model.Quote                 `json:"quote" binding:"required"`
	FCFHistory          []model.FCFEntry             `json:"fcfHistory"`
	AnalystGrowthRate5y *float64                     `json:"analystGrowthRate5y"`
	SuggestedWacc       *float64                     `json:"suggestedWacc"`
	WaccSource          string                       `json:"waccSource"`
	ValuationMetrics    []model.ValuationMetricEntry `json:"valuationMetrics"`

	GrowthRate             *float64 `json:"growthRate" binding:"required"`
	DiscountRate           *float64 `json:"discountRate" binding:"required"`
	TerminalGrowthRate     *float64 `json:"terminalGrowthRate" binding:"required"`
	ProjectionYears        *float64 `json:"projectionYears" binding:"omitempty,gt=0"`
	IntrinsicValuePerShare *float64 `json:"intrinsicValuePerShare" binding:"required"`
	CurrentPrice           *float64 `json:"currentPrice" binding:"required"`
}

func (s *Server) save(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindError(err)})
		return
	}
	symbol := collector.NormalizeSymbol(req.Symbol)
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": collector.ErrInvalidSymbol.Error()})
		return
	}

	years := calculator.DefaultProjectionYears
	if req.ProjectionYears != nil {
		years = calculator.ClampYears(*req.ProjectionYears)
	}
	data := &model.TickerData{
		Quote:               *req.Quote,
		FCFHistory:          req.FCFHistory,
		AnalystGrowthRate5y: req.AnalystGrowthRate5y,
		SuggestedWacc:       req.SuggestedWacc,
		WaccSource:          req.WaccSource,
		ValuationMetrics:    req.ValuationMetrics,
	}
	params := model.SavedDCFParams{
		GrowthRate:             *req.GrowthRate,
		DiscountRate:           *req.DiscountRate,
		TerminalGrowthRate:     *req.TerminalGrowthRate,
		ProjectionYears:        years,
		IntrinsicValuePerShare: *req.IntrinsicValuePerShare,
		CurrentPrice:           *req.CurrentPrice,
	}
	if err := s.store.SaveAnalysis(c.Request.Context(), symbol, data, params); err != nil {
		s.logger.Error("save analysis", zap.String("symbol", symbol), zap.Error(err))
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// bindError turns validation failures into a short, field-level message.
func bindError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return "invalid request body: " + err.Error()
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}
