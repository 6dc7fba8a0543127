package domain

import (
	"strings"
	"time"
)

// SwapStatus is the settlement state of a swap.
type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "pending"
	SwapStatusCompleted SwapStatus = "completed"
	SwapStatusFailed    SwapStatus = "failed"
)

// SwapTransaction is a currency conversion, optionally attributed to a
// position.
type SwapTransaction struct {
	ID             string
	TransactionID  string
	FromSymbol     string
	ToSymbol       string
	FromAmount     float64
	ToAmount       float64
	Rate           float64
	FeePercentage  float64
	FeeAmount      float64
	RealizedProfit float64
	Timestamp      time.Time
	Status         SwapStatus
	UserID         string
	PositionID     *string
	ToStable       bool
}

var stablecoins = []string{"USDT", "USDC", "BUSD"}

// IsStable reports whether symbol names a stablecoin or a stablecoin pair.
func IsStable(symbol string) bool {
	s := strings.ToUpper(symbol)
	for _, c := range stablecoins {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}
