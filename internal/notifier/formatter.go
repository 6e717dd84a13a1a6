package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"FairValue/internal/calculator"
)

// Valuation is one symbol's line in a refresh report.
type Valuation struct {
	Symbol         string
	Name           string
	Price          *float64
	Intrinsic      float64
	MarginOfSafety *float64
	GrowthRate     float64
	GrowthSource   string
	DiscountRate   float64
	WaccSource     string
	Multiples      calculator.MultiplesSummary
	Err            error
}

// FormatRefreshReport formats the scheduled watchlist refresh into one Telegram message.
func FormatRefreshReport(vals []Valuation, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>FairValue watchlist</b> | %s\n", at.Format("2006-01-02"))

	failed := 0
	for _, v := range vals {
		b.WriteString("\n")
		if v.Err != nil {
			failed++
		}
		b.WriteString(FormatValuation(v))
	}
	if failed > 0 {
		fmt.Fprintf(&b, "\n⚠️ %d of %d symbols could not be refreshed\n", failed, len(vals))
	}
	return b.String()
}

// FormatValuation formats a single symbol.
func FormatValuation(v Valuation) string {
	var b strings.Builder
	title := html.EscapeString(v.Symbol)
	if v.Name != "" {
		title += " · " + html.EscapeString(v.Name)
	}
	fmt.Fprintf(&b, "<b>%s</b>\n", title)
	if v.Err != nil {
		fmt.Fprintf(&b, "  ❌ %s\n", html.EscapeString(v.Err.Error()))
		return b.String()
	}

	price := "-"
	if v.Price != nil {
		price = fmt.Sprintf("%.2f", *v.Price)
	}
	fmt.Fprintf(&b, "  price %s | intrinsic %.2f", price, v.Intrinsic)
	if v.MarginOfSafety != nil {
		icon := "🔴"
		if *v.MarginOfSafety > 0 {
			icon = "🟢"
		}
		fmt.Fprintf(&b, " | MoS %+.1f%% %s", *v.MarginOfSafety*100, icon)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  growth %.1f%% (%s) | WACC %.1f%%\n", v.GrowthRate*100, orDefault(v.GrowthSource), v.DiscountRate*100)
	writeMultiple(&b, "P/FCF", v.Multiples.PFCF)
	writeMultiple(&b, "P/E", v.Multiples.PEGaap)
	return b.String()
}

func writeMultiple(b *strings.Builder, name string, m *calculator.MultipleStats) {
	if m == nil {
		return
	}
	fmt.Fprintf(b, "  %s %.1f (5y %.1f–%.1f, avg %.1f, at %.0f%% of range)\n",
		name, m.Current, m.Low, m.High, m.Mean, m.Position*100)
}

func orDefault(s string) string {
	if s == "" {
		return "default"
	}
	return s
}
