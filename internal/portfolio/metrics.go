package portfolio

import (
	"math"

	"github.com/shopspring/decimal"
)

// ratioPlaces is the precision of returns, volatility and drawdown
const ratioPlaces = 8

// percentPlaces is the precision of allocation and weight percentages
const percentPlaces = 2

var hundred = decimal.NewFromInt(100)

// totalReturn is (last - first) / first, zero when there is nothing to compare
func totalReturn(values []decimal.Decimal) decimal.Decimal {
	if len(values) < 2 || values[0].IsZero() {
		return decimal.Zero
	}
	first, last := values[0], values[len(values)-1]
	return last.Sub(first).DivRound(first, ratioPlaces)
}

// dailyChanges returns the day-over-day relative changes. A change from a
// zero value is skipped.
func dailyChanges(values []decimal.Decimal) []decimal.Decimal {
	if len(values) < 2 {
		return nil
	}
	out := make([]decimal.Decimal, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev.IsZero() {
			continue
		}
		out = append(out, values[i].Sub(prev).Div(prev))
	}
	return out
}

// volatility is the sample standard deviation of the daily changes
func volatility(values []decimal.Decimal) decimal.Decimal {
	changes := dailyChanges(values)
	n := len(changes)
	if n < 2 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, c := range changes {
		sum = sum.Add(c)
	}
	mean := sum.Div(decimal.NewFromInt(int64(n)))

	sq := decimal.Zero
	for _, c := range changes {
		d := c.Sub(mean)
		sq = sq.Add(d.Mul(d))
	}
	variance := sq.Div(decimal.NewFromInt(int64(n - 1)))
	return sqrt(variance).Round(ratioPlaces)
}

// maxDrawdown is the largest peak-to-trough fall as a fraction of the peak
func maxDrawdown(values []decimal.Decimal) decimal.Decimal {
	worst := decimal.Zero
	peak := decimal.Zero
	for _, v := range values {
		if v.GreaterThan(peak) {
			peak = v
			continue
		}
		if peak.IsZero() {
			continue
		}
		if dd := peak.Sub(v).Div(peak); dd.GreaterThan(worst) {
			worst = dd
		}
	}
	return worst.Round(ratioPlaces)
}

// percentOf returns part / whole * 100
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, percentPlaces)
}

// sqrt is Newton's method on decimals. The float64 estimate only seeds the
// iteration.
func sqrt(d decimal.Decimal) decimal.Decimal {
	if d.Sign() <= 0 {
		return decimal.Zero
	}

	x := decimal.NewFromFloat(math.Sqrt(d.InexactFloat64()))
	if x.Sign() <= 0 {
		x = decimal.NewFromInt(1)
	}

	two := decimal.NewFromInt(2)
	eps := decimal.New(1, -20)
	for i := 0; i < 64; i++ {
		next := x.Add(d.DivRound(x, 24)).DivRound(two, 24)
		if next.Sub(x).Abs().LessThan(eps) {
			return next
		}
		x = next
	}
	return x
}
