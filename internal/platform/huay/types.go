package huay

import (
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// --------------------------------------------------------------------------
// Lottery backend DTOs
// --------------------------------------------------------------------------

// checkMultiplyRequest is the rate check payload.
type checkMultiplyRequest struct {
	HuayID     int64   `json:"huayId"`
	StockType  string  `json:"stockType"`
	HuayOption string  `json:"huayOption"`
	PoyNumber  string  `json:"poyNumber"`
	Multiply   float64 `json:"multiply"`
	Value      float64 `json:"value"`
}

// checkMultiplyResponse is the rate check result. "codition" is the
// backend's spelling.
type checkMultiplyResponse struct {
	Multiply        *float64 `json:"multiply"`
	IsSpecialNumber bool     `json:"isSpecialNumber"`
	SoldAmount      float64  `json:"soldAmount"`
	RemainingAmount float64  `json:"remainingAmount"`
	MaxSaleAmount   float64  `json:"maxSaleAmount"`
	Codition        string   `json:"codition"`
	Result          int      `json:"result"`
}

func (r checkMultiplyResponse) toQuote() domain.RateQuote {
	q := domain.RateQuote{
		IsSpecialNumber: r.IsSpecialNumber,
		SoldAmount:      r.SoldAmount,
		RemainingAmount: r.RemainingAmount,
		MaxSaleAmount:   r.MaxSaleAmount,
		ConditionNote:   r.Codition,
		Result:          r.Result,
		Admissible:      r.Result == domain.RateResultAdmissible,
	}
	if r.Multiply != nil {
		q.Multiply = *r.Multiply
	}
	return q
}

// bulkBetRequest is the bulk placement payload. StockID is numeric when the
// period id is.
type bulkBetRequest struct {
	StockID any              `json:"stockId"`
	Bets    []domain.BetLine `json:"bets"`
	Note    string           `json:"note"`
}

type bulkBetResponse struct {
	PoyID any `json:"poyId"`
}

// openPeriod mirrors the backend's period listing row.
type openPeriod struct {
	ID         any    `json:"id"`
	LotteryID  int64  `json:"lotteryId"`
	HuayCode   string `json:"huayCode"`
	HuayName   string `json:"huayName"`
	PeriodName string `json:"periodName"`
	Status     string `json:"status"`
	OpenTime   string `json:"openTime"`
	CloseTime  string `json:"closeTime"`
}

func (p openPeriod) toDomain() domain.Period {
	return domain.Period{
		ID:         idString(p.ID),
		LotteryID:  p.LotteryID,
		HuayCode:   p.HuayCode,
		HuayName:   p.HuayName,
		PeriodName: p.PeriodName,
		Status:     p.Status,
		OpenTime:   parseTime(p.OpenTime),
		CloseTime:  parseTime(p.CloseTime),
	}
}

// huayConfig is one payout configuration row of a lottery.
type huayConfig struct {
	ID             any     `json:"id"`
	OptionType     string  `json:"optionType"`
	Multiply       float64 `json:"multiply"`
	MinPrice       float64 `json:"minPrice"`
	MaxPrice       float64 `json:"maxPrice"`
	MaxPricePerNum float64 `json:"maxPricePerNum"`
	Default        int     `json:"default"`
	Status         int     `json:"status"`
}

func (c huayConfig) toRate() domain.LotteryRate {
	return domain.LotteryRate{
		ID:           idString(c.ID),
		BetType:      c.OptionType,
		Multiply:     c.Multiply,
		MinBet:       c.MinPrice,
		MaxBet:       c.MaxPrice,
		MaxPerNumber: c.MaxPricePerNum,
		IsActive:     c.Status == 1,
	}
}

type myBet struct {
	ID          any     `json:"id"`
	LotteryCode string  `json:"lottery_code"`
	LotteryName string  `json:"lottery_name"`
	PeriodID    any     `json:"period_id"`
	PeriodName  string  `json:"period_name"`
	BetType     string  `json:"bet_type"`
	Number      string  `json:"number"`
	Amount      float64 `json:"amount"`
	PayoutRate  float64 `json:"payout_rate"`
	Status      string  `json:"status"`
	WinAmount   float64 `json:"win_amount"`
	CreatedAt   string  `json:"created_at"`
	CancelledAt string  `json:"cancelled_at"`
}

func (b myBet) toDomain() domain.MyBet {
	out := domain.MyBet{
		ID:          idString(b.ID),
		LotteryCode: b.LotteryCode,
		LotteryName: b.LotteryName,
		PeriodID:    idString(b.PeriodID),
		PeriodName:  b.PeriodName,
		BetType:     b.BetType,
		Number:      b.Number,
		Amount:      b.Amount,
		PayoutRate:  b.PayoutRate,
		Status:      b.Status,
		WinAmount:   b.WinAmount,
		CreatedAt:   parseTime(b.CreatedAt),
	}
	if ts := parseTime(b.CancelledAt); !ts.IsZero() {
		out.CancelledAt = &ts
	}
	return out
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTime accepts the timestamp layouts the backend is known to emit and
// returns the zero time for anything else.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// idString normalises ids the backend sends as either numbers or strings.
func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

// stockIDValue sends numeric period ids as numbers.
func stockIDValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
