package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals é a precisão da unidade base: 1.0 = 1_000_000_000 unidades.
const Decimals = 9

// Unit é uma unidade inteira de moeda em unidades base.
const Unit uint64 = 1_000_000_000

var ErrInvalidAmount = errors.New("invalid amount")

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)

// Format renderiza unidades base como string decimal (ex: 1300000000 -> "1.3").
func Format(units uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -Decimals).String()
}

// Parse converte uma string decimal ("1.3") para unidades base.
// Rejeita valores negativos, mais de 9 casas decimais e valores acima de uint64.
func Parse(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative", ErrInvalidAmount)
	}
	scaled := d.Shift(Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: more than %d decimals", ErrInvalidAmount, Decimals)
	}
	if scaled.GreaterThan(maxUint64) {
		return 0, fmt.Errorf("%w: too large", ErrInvalidAmount)
	}
	return scaled.BigInt().Uint64(), nil
}
