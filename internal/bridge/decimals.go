package bridge

import (
	"math/big"
	"strings"
)

// TokenDecimals returns the on-chain decimal count for a token symbol.
// Stablecoins use 6, WBTC uses 8, everything else is treated as an
// 18-decimal ERC-20.
func TokenDecimals(symbol string) int {
	switch strings.ToUpper(symbol) {
	case "USDC", "USDT":
		return 6
	case "WBTC":
		return 8
	default:
		return 18
	}
}

// AmountToSmallestUnit converts a float token amount into an integer string
// in the token's smallest unit (wei-style). big.Float keeps 18-decimal
// amounts from overflowing float64 integer precision.
func AmountToSmallestUnit(amount float64, symbol string) string {
	decimals := TokenDecimals(symbol)

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	f := new(big.Float).SetPrec(128).SetFloat64(amount)
	f.Mul(f, new(big.Float).SetPrec(128).SetInt(scale))

	result, _ := f.Int(nil)
	if result.Sign() < 0 {
		return "0"
	}
	return result.String()
}
