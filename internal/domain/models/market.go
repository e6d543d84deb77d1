package models

import "time"

// Trade is a single execution report for one symbol. Immutable once recorded.
type Trade struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// DollarValue returns price multiplied by size.
func (t Trade) DollarValue() float64 {
	return t.Price * t.Size
}

// Quote is a top-of-book bid/ask snapshot for one symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	BidPrice  float64   `json:"bid_price"`
	AskPrice  float64   `json:"ask_price"`
	BidSize   float64   `json:"bid_size"`
	AskSize   float64   `json:"ask_size"`
	Timestamp time.Time `json:"timestamp"`
}

// SpreadPercent returns the bid-ask spread as a percentage of the midpoint.
// A crossed or empty book yields 0.
func (q Quote) SpreadPercent() float64 {
	mid := (q.BidPrice + q.AskPrice) / 2
	if mid <= 0 || q.AskPrice < q.BidPrice {
		return 0
	}
	return (q.AskPrice - q.BidPrice) / mid * 100
}

// Bar is an aggregated OHLCV interval for one symbol.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// MarketEvent is a tagged union of the event types delivered by a market
// stream. Exactly one field is non-nil.
type MarketEvent struct {
	Trade *Trade
	Quote *Quote
	Bar   *Bar
}

// Symbol returns the symbol of whichever event is set.
func (e MarketEvent) Symbol() string {
	switch {
	case e.Trade != nil:
		return e.Trade.Symbol
	case e.Quote != nil:
		return e.Quote.Symbol
	case e.Bar != nil:
		return e.Bar.Symbol
	}
	return ""
}
