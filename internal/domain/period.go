package domain

import (
	"strings"
	"time"
)

// Period is one lottery draw's open betting window (a "stock").
type Period struct {
	ID         string    `json:"id"`
	LotteryID  int64     `json:"lottery_id"`
	HuayCode   string    `json:"huay_code"`
	HuayName   string    `json:"huay_name"`
	PeriodName string    `json:"period_name"`
	Status     string    `json:"status"`
	OpenTime   time.Time `json:"open_time"`
	CloseTime  time.Time `json:"close_time"`
}

// StockType returns the rate service's stock type: "g" for codes starting
// with g, "s" otherwise.
func (p Period) StockType() string {
	if strings.HasPrefix(p.HuayCode, "g") {
		return "g"
	}
	return "s"
}

// ClosedAt reports whether betting on the period has closed at now. A zero
// close time never closes.
func (p Period) ClosedAt(now time.Time) bool {
	return !p.CloseTime.IsZero() && !now.Before(p.CloseTime)
}
