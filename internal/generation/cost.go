package generation

import "math"

// Rates are USD prices per thousand tokens.
type Rates struct {
	InputPer1K  float64
	OutputPer1K float64
}

// EstimateCost prices one call, treating missing counts as zero, rounded to
// five decimal places.
func EstimateCost(tokensIn, tokensOut *int, r Rates) float64 {
	in, out := 0, 0
	if tokensIn != nil {
		in = *tokensIn
	}
	if tokensOut != nil {
		out = *tokensOut
	}
	cost := float64(in)/1000*r.InputPer1K + float64(out)/1000*r.OutputPer1K
	return RoundUSD(cost)
}

// RoundUSD rounds an amount to five decimal places.
func RoundUSD(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
