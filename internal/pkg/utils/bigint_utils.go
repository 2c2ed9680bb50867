package utils

import (
	"math/big"
	"strings"
)

// NativeDecimals is the number of decimals of the native coin on EVM-style chains.
const NativeDecimals = 18

// FormatBigInt converts a base-unit amount into a decimal string with trailing zeros trimmed.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	if decimals == 0 {
		return amount.String()
	}

	negative := amount.Sign() < 0
	digits := new(big.Int).Abs(amount).String()

	// Left-pad so there is always at least one digit before the decimal point.
	if len(digits) <= int(decimals) {
		digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
	}

	split := len(digits) - int(decimals)
	whole, frac := digits[:split], strings.TrimRight(digits[split:], "0")

	formatted := whole
	if frac != "" {
		formatted += "." + frac
	}
	if negative && formatted != "0" {
		formatted = "-" + formatted
	}
	return formatted
}
