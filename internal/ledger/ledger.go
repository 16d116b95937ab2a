// Package ledger concentra a aritmética de valores: operações checadas em inteiros
// sem sinal de 64 bits que falham em vez de dar a volta, e o cálculo de taxa em
// basis points com divisão por piso.
package ledger

import (
	"github.com/holiman/uint256"

	"github.com/radieske/match-escrow/internal/escrow/domain"
)

// BpsDenominator é 100% em basis points.
const BpsDenominator = 10_000

// narrow converte o resultado de 256 bits de volta para uint64, falhando se não couber.
func narrow(z *uint256.Int) (uint64, error) {
	if !z.IsUint64() {
		return 0, domain.ErrArithmeticOverflow
	}
	return z.Uint64(), nil
}

// Add retorna a + b ou ErrArithmeticOverflow.
func Add(a, b uint64) (uint64, error) {
	z := new(uint256.Int).Add(uint256.NewInt(a), uint256.NewInt(b))
	return narrow(z)
}

// Sub retorna a - b ou ErrArithmeticOverflow se b > a.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, domain.ErrArithmeticOverflow
	}
	return a - b, nil
}

// Mul retorna a * b ou ErrArithmeticOverflow.
func Mul(a, b uint64) (uint64, error) {
	z := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	return narrow(z)
}

// Div retorna floor(a / b) ou ErrDivisionByZero.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, domain.ErrDivisionByZero
	}
	return a / b, nil
}

// MulDiv retorna floor(a * b / d) com intermediário de 256 bits,
// então a*b pode passar de 64 bits desde que o quociente caiba.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, domain.ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d))
	if overflow {
		return 0, domain.ErrArithmeticOverflow
	}
	return narrow(z)
}

// Sum soma todos os valores com checagem de overflow.
func Sum(values ...uint64) (uint64, error) {
	acc := new(uint256.Int)
	for _, v := range values {
		acc.Add(acc, uint256.NewInt(v))
	}
	return narrow(acc)
}

// Fee calcula floor(total * bps / 10000). O resto da divisão fica com o total líquido.
func Fee(total uint64, bps uint16) (uint64, error) {
	if bps > BpsDenominator {
		return 0, domain.ErrInvalidFee
	}
	return MulDiv(total, uint64(bps), BpsDenominator)
}

// FeeSplit devolve (fee, net) com fee + net == total exatamente.
func FeeSplit(total uint64, bps uint16) (fee, net uint64, err error) {
	fee, err = Fee(total, bps)
	if err != nil {
		return 0, 0, err
	}
	net, err = Sub(total, fee)
	if err != nil {
		return 0, 0, err
	}
	return fee, net, nil
}
