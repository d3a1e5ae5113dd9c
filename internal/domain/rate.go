package domain

// RateResultAdmissible is the rate service result code for a number that is
// bettable at the returned rate without restriction.
const RateResultAdmissible = 1

// RateCheck is a per-number rate lookup request.
type RateCheck struct {
	HuayID     int64
	StockType  string
	HuayOption string // bet type code
	PoyNumber  string
	Multiply   float64 // base multiplier
	Value      float64
}

// RateQuote is the resolved rate for one number.
type RateQuote struct {
	Multiply        float64 `json:"multiply"`
	IsSpecialNumber bool    `json:"is_special_number"`
	SoldAmount      float64 `json:"sold_amount"`
	RemainingAmount float64 `json:"remaining_amount"`
	MaxSaleAmount   float64 `json:"max_sale_amount"`
	ConditionNote   string  `json:"condition_note,omitempty"`
	Result          int     `json:"result"`
	Admissible      bool    `json:"admissible"`
	Fallback        bool    `json:"fallback"` // base multiplier used because the lookup failed
}

// Restricted reports whether the quote carries a note the caller should see.
func (q RateQuote) Restricted() bool {
	return q.ConditionNote != "" && !q.Admissible
}

// LotteryRate is one active row of a period's rate table.
type LotteryRate struct {
	ID           string  `json:"id"`
	BetType      string  `json:"bet_type"`
	Multiply     float64 `json:"multiply"`
	MinBet       float64 `json:"min_bet"`
	MaxBet       float64 `json:"max_bet"`
	MaxPerNumber float64 `json:"max_per_number"`
	IsActive     bool    `json:"is_active"`
}
