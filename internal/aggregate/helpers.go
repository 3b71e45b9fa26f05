package aggregate

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const ratioScale = 18

// ratio returns num/denom rounded to ratioScale places, or zero when denom is
// not positive.
func ratio(num *big.Int, denom *big.Int) decimal.Decimal {
	if num == nil || denom == nil || denom.Sign() <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(denom, 0), ratioScale)
}
