package domain

import "time"

// CartLine is a single wager line held in a betting session's cart.
type CartLine struct {
	ID              string    `json:"id"`
	BatchID         string    `json:"batch_id"`
	BetType         string    `json:"bet_type"`
	BetTypeLabel    string    `json:"bet_type_label"`
	Number          string    `json:"number"`
	Amount          float64   `json:"amount"`
	PayoutRate      float64   `json:"payout_rate"`
	PotentialWin    float64   `json:"potential_win"` // filled on read: Amount * PayoutRate
	IsSpecialNumber bool      `json:"is_special_number,omitempty"`
	SoldAmount      float64   `json:"sold_amount,omitempty"`
	RemainingAmount float64   `json:"remaining_amount,omitempty"`
	MaxSaleAmount   float64   `json:"max_sale_amount,omitempty"`
	ConditionNote   string    `json:"condition_note,omitempty"`
	RateFallback    bool      `json:"rate_fallback,omitempty"`
	AddedAt         time.Time `json:"added_at"`
}

// LineInput is a candidate line before it is accepted into a cart.
type LineInput struct {
	BetType      string
	BetTypeLabel string
	Number       string
	Amount       float64
	PayoutRate   float64
	Quote        *RateQuote // nil when the line was added without a rate lookup
}

// Totals are the derived sums over every line of a cart.
type Totals struct {
	Lines             int     `json:"lines"`
	TotalAmount       float64 `json:"total_amount"`
	TotalPotentialWin float64 `json:"total_potential_win"`
}

// CandidateNote is a condition message surfaced for one inserted number.
type CandidateNote struct {
	Number string `json:"number"`
	Note   string `json:"note"`
}

// AddSummary reports the outcome of one add operation. Skipped counts
// candidates dropped because they were already in the cart.
type AddSummary struct {
	BatchID   string          `json:"batch_id,omitempty"`
	Requested int             `json:"requested"`
	Added     int             `json:"added"`
	Skipped   int             `json:"skipped"`
	Fallbacks int             `json:"fallbacks"`
	Lines     []CartLine      `json:"lines"`
	Notes     []CandidateNote `json:"notes,omitempty"`
}
