package model

import (
	"errors"
	"fmt"
	"strings"
)

// Liquidity describes how quickly an item class typically resells.
type Liquidity string

// Liquidity tiers.
const (
	LiquidityHigh   Liquidity = "HIGH"
	LiquidityMedium Liquidity = "MEDIUM"
	LiquidityLow    Liquidity = "LOW"
)

// ErrInvalidLiquidity indicates a liquidity value outside the known tiers.
var ErrInvalidLiquidity = errors.New("invalid liquidity")

// ParseLiquidity validates a liquidity string from the classification
// collaborator. Unknown values are rejected, not defaulted.
func ParseLiquidity(s string) (Liquidity, error) {
	switch Liquidity(strings.ToUpper(strings.TrimSpace(s))) {
	case LiquidityHigh:
		return LiquidityHigh, nil
	case LiquidityMedium:
		return LiquidityMedium, nil
	case LiquidityLow:
		return LiquidityLow, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLiquidity, s)
	}
}

// ClassificationFlags is the closed set of categorical signals supplied
// per listing by the classification collaborator. The core never infers
// these itself.
type ClassificationFlags struct {
	Liquidity     Liquidity
	Bundle        bool
	Obsolete      bool
	AccessoryOnly bool
}

// Validate checks that the flags form a complete, known shape.
func (f ClassificationFlags) Validate() error {
	_, err := ParseLiquidity(string(f.Liquidity))
	return err
}
