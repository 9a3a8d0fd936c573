package analytics

// Dashboard is the analytics resource shown on the credits dashboard.
type Dashboard struct {
	TotalCreditsOwned float64            `json:"total_credits_owned"`
	CreditsTraded     CreditsTraded      `json:"credits_traded"`
	MarketPrice       MarketPrice        `json:"market_price"`
	EmissionsOffset   EmissionsOffset    `json:"emissions_offset"`
	MarketPriceTrend  []PricePoint       `json:"market_price_trend"`
	AdditionalMetrics *AdditionalMetrics `json:"additional_metrics,omitempty"`
}

// CreditsTraded is the trade volume of the account.
type CreditsTraded struct {
	Today    float64 `json:"today"`
	ThisWeek float64 `json:"this_week"`
}

// MarketPrice is the current credit price. Change24h is the percentage change
// rendered as text, exactly as the API reported it.
type MarketPrice struct {
	Current   float64 `json:"current"`
	Change24h string  `json:"change_24h"`
}

// EmissionsOffset tracks CO2 offset in kilograms against a monthly target.
type EmissionsOffset struct {
	Total           float64 `json:"total"`
	MonthlyProgress float64 `json:"monthly_progress"`
	Target          float64 `json:"target"`
}

// PricePoint is one day of the price history.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// AdditionalMetrics are optional account counters.
type AdditionalMetrics struct {
	BatchesProduced   int `json:"batches_produced"`
	TotalTransactions int `json:"total_transactions"`
	ActiveOrders      int `json:"active_orders"`
}

// MonthlyProgressPercent returns monthly offset progress as a percentage of
// the target, clamped to [0, 100]. A zero target yields 0.
func (d Dashboard) MonthlyProgressPercent() float64 {
	if d.EmissionsOffset.Target <= 0 {
		return 0
	}
	pct := d.EmissionsOffset.MonthlyProgress / d.EmissionsOffset.Target * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// Clone returns a copy that shares no slices or pointers with d.
func (d Dashboard) Clone() Dashboard {
	cp := d
	if d.MarketPriceTrend != nil {
		cp.MarketPriceTrend = append([]PricePoint(nil), d.MarketPriceTrend...)
	}
	if d.AdditionalMetrics != nil {
		m := *d.AdditionalMetrics
		cp.AdditionalMetrics = &m
	}
	return cp
}
