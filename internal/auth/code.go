package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeGenerator produces one-time verification codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// NumericCodeGenerator yields fixed-length decimal codes without a leading zero.
type NumericCodeGenerator struct {
	Length int
}

func (g NumericCodeGenerator) Generate() (string, error) {
	length := g.Length
	if length <= 0 {
		length = 6
	}
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	span := new(big.Int).Sub(new(big.Int).Mul(low, big.NewInt(10)), low)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return n.Add(n, low).String(), nil
}
