package model

// Quote is a point-in-time market snapshot for one symbol.
type Quote struct {
	Symbol                     string   `json:"symbol"`
	ShortName                  string   `json:"shortName,omitempty"`
	RegularMarketPrice         *float64 `json:"regularMarketPrice,omitempty"`
	RegularMarketChange        *float64 `json:"regularMarketChange,omitempty"`
	RegularMarketChangePercent *float64 `json:"regularMarketChangePercent,omitempty"`
	MarketCap                  *float64 `json:"marketCap,omitempty"`
	TrailingPE                 *float64 `json:"trailingPE,omitempty"`
	ForwardPE                  *float64 `json:"forwardPE,omitempty"`
	SharesOutstanding          *float64 `json:"sharesOutstanding,omitempty"`
	Currency                   string   `json:"currency,omitempty"`
}

// Price returns the regular market price, or 0 when unknown.
func (q Quote) Price() float64 {
	if q.RegularMarketPrice == nil {
		return 0
	}
	return *q.RegularMarketPrice
}

// Shares returns shares outstanding, or 0 when unknown.
func (q Quote) Shares() float64 {
	if q.SharesOutstanding == nil {
		return 0
	}
	return *q.SharesOutstanding
}

// Float returns a pointer to v. Handy for optional numeric fields.
func Float(v float64) *float64 { return &v }
