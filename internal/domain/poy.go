package domain

import "time"

// SubmitState tracks the bulk submission lifecycle of a session.
type SubmitState string

const (
	SubmitIdle       SubmitState = "idle"
	SubmitSubmitting SubmitState = "submitting"
	SubmitSuccess    SubmitState = "success"
	SubmitFailed     SubmitState = "failed"
)

// BetLine is one wager inside a bulk bet request.
type BetLine struct {
	BetType string  `json:"betType"`
	Number  string  `json:"number"`
	Amount  float64 `json:"amount"`
}

// BulkBet is the payload sent to the bet placement service.
type BulkBet struct {
	StockID string
	Bets    []BetLine
	Note    string
}

// Receipt is the snapshot of a successfully submitted poy.
type Receipt struct {
	PoyID             string     `json:"poy_id"`
	SessionID         string     `json:"session_id"`
	Owner             string     `json:"owner"`
	PeriodID          string     `json:"period_id"`
	HuayName          string     `json:"huay_name,omitempty"`
	Note              string     `json:"note,omitempty"`
	Lines             []CartLine `json:"lines"`
	TotalAmount       float64    `json:"total_amount"`
	TotalPotentialWin float64    `json:"total_potential_win"`
	SubmittedAt       time.Time  `json:"submitted_at"`
	ArchivePath       string     `json:"archive_path,omitempty"`
}

// SubmitOutcome is what a submit call reports back. Ignored is set when the
// call arrived while another submission was in flight.
type SubmitOutcome struct {
	State   SubmitState `json:"state"`
	Receipt *Receipt    `json:"receipt,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Ignored bool        `json:"ignored,omitempty"`
}

// MyBet is one row of the member's upstream bet history.
type MyBet struct {
	ID          string     `json:"id"`
	LotteryCode string     `json:"lottery_code"`
	LotteryName string     `json:"lottery_name"`
	PeriodID    string     `json:"period_id"`
	PeriodName  string     `json:"period_name"`
	BetType     string     `json:"bet_type"`
	Number      string     `json:"number"`
	Amount      float64    `json:"amount"`
	PayoutRate  float64    `json:"payout_rate"`
	Status      string     `json:"status"`
	WinAmount   float64    `json:"win_amount,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// BetQuery filters the member's bet history.
type BetQuery struct {
	LotteryCode string
	PeriodID    string
	Status      string
	Limit       int
	Offset      int
}
