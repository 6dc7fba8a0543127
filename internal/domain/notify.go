package domain

import "context"

// StraddleSetup describes a freshly placed straddle.
type StraddleSetup struct {
	PositionID   string
	Symbol       string
	CurrentPrice float64
	BuyEntry     float64
	SellEntry    float64
	Quantity     float64
	Levels       *EntryLevels
}

// NotificationSink receives ledger side effects. Failures are reported to the
// caller for logging only and never undo the mutation that triggered them.
type NotificationSink interface {
	NotifyStraddleSetup(ctx context.Context, setup StraddleSetup) error
	NotifyBreakout(ctx context.Context, signal BreakoutSignal) error
	NotifyPositionClose(ctx context.Context, pos Position, trades []Trade) error
	NotifyError(ctx context.Context, message string) error
	// NotifyAlert carries operational alerts such as risk limit breaches and
	// daily summaries.
	NotifyAlert(ctx context.Context, title, message string) error
}
