package domain

// Direction is a breakout direction.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Side returns the straddle leg a breakout in this direction enters.
func (d Direction) Side() TradeSide {
	if d == DirectionDown {
		return TradeSideSell
	}
	return TradeSideBuy
}

// MarketConditions is the indicator snapshot behind a breakout decision.
type MarketConditions struct {
	BBSqueeze          bool
	SqueezeIntensity   float64
	VolumeSpike        bool
	VolumeRatio        float64
	RSIDivergence      bool
	DivergenceStrength float64
	MACDCrossover      bool
	CurrentRSI         float64
	CurrentPrice       float64
	UpperBand          float64
	MiddleBand         float64
	LowerBand          float64
}

// BreakoutSignal is produced fresh for each analysis and never mutated.
type BreakoutSignal struct {
	Symbol        string
	Direction     Direction
	Price         float64
	Confidence    float64
	VolumeSpike   bool
	BBSqueeze     bool
	RSIDivergence bool
	MACDCrossover bool
	Conditions    MarketConditions
}

// MarketCondition classifies volatility for entry sizing.
type MarketCondition string

const (
	MarketHighVol   MarketCondition = "high_vol"
	MarketMediumVol MarketCondition = "medium_vol"
	MarketLowVol    MarketCondition = "low_vol"
)

// EntryLevels are the straddle stop levels derived from volatility.
type EntryLevels struct {
	CurrentPrice      float64
	BuyEntry          float64
	SellEntry         float64
	BandPct           float64
	MarketCondition   MarketCondition
	AverageVolatility float64
	ShortVolatility   float64
	MediumVolatility  float64
	LongVolatility    float64
}
