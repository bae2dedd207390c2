package domain

// TradeRecordTimeLayout timestamp layout of trade log records.
const TradeRecordTimeLayout = "2006-01-02 15:04:05"

// TradeRecord one entry of the per-day trade log.
type TradeRecord struct {
	Timestamp       string  `json:"timestamp"`
	Decision        string  `json:"decision"`
	Symbol          string  `json:"symbol"`
	Confidence      float64 `json:"confidence"`
	PositionSizeUSD float64 `json:"position_size_usd"`
	Leverage        int     `json:"leverage"`
	EntryPrice      float64 `json:"entry_price"`
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`
	Success         bool    `json:"success"`
}
