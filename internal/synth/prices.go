package synth

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

var (
	ErrInvertedRange = errors.New("synth: price range is inverted")
	ErrEmptyRange    = errors.New("synth: price range holds no cent value")
)

// Fallback range used by BasketPrice when no product prices are known.
var (
	FallbackMin = decimal.NewFromInt(20)
	FallbackMax = decimal.NewFromInt(150)
)

const maxBasket = 3

var hundred = decimal.NewFromInt(100)

// CentRange returns the cent bounds of [min, max], or ErrInvertedRange /
// ErrEmptyRange when RandomPrice could not draw from it.
func CentRange(min, max decimal.Decimal) (lo, hi int64, err error) {
	if min.GreaterThan(max) {
		return 0, 0, fmt.Errorf("%w: min %s > max %s", ErrInvertedRange, min, max)
	}
	lo = min.Mul(hundred).Ceil().IntPart()
	hi = max.Mul(hundred).Floor().IntPart()
	if lo > hi {
		return 0, 0, fmt.Errorf("%w: [%s, %s]", ErrEmptyRange, min, max)
	}
	return lo, hi, nil
}

// RandomPrice draws uniformly from the cent grid inside [min, max].
func RandomPrice(r *rand.Rand, min, max decimal.Decimal) (decimal.Decimal, error) {
	lo, hi, err := CentRange(min, max)
	if err != nil {
		return decimal.Decimal{}, err
	}
	cents := lo + r.Int64N(hi-lo+1)
	return decimal.New(cents, -2), nil
}

// BasketPrice totals a random basket of one to three picks from prices, each
// taken with replacement at quantity one or two. Non-positive prices are
// ignored; with nothing left it falls back to RandomPrice over the default
// range.
func BasketPrice(r *rand.Rand, prices []decimal.Decimal) decimal.Decimal {
	usable := make([]decimal.Decimal, 0, len(prices))
	for _, p := range prices {
		if p.IsPositive() {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		d, _ := RandomPrice(r, FallbackMin, FallbackMax)
		return d
	}

	k := 1 + r.IntN(min(maxBasket, len(usable)))
	total := decimal.Zero
	for i := 0; i < k; i++ {
		p := usable[r.IntN(len(usable))]
		qty := int64(1 + r.IntN(2))
		total = total.Add(p.Mul(decimal.NewFromInt(qty)))
	}
	return total.Round(2)
}
