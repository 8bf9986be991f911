package asset

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/fd1az/etfkit/internal/apperror"
)

// MaxDecimals is the largest decimal count accepted for a token.
const MaxDecimals = 30

var (
	ErrInvalidBaseUnits = errors.New("asset: invalid base unit amount")
	ErrDecimalsTooLarge = errors.New("asset: decimals exceed maximum")
)

var (
	bigTen   = big.NewInt(10)
	pow10Tab = func() []*big.Int {
		tab := make([]*big.Int, MaxDecimals+1)
		for i := range tab {
			tab[i] = new(big.Int).Exp(bigTen, big.NewInt(int64(i)), nil)
		}
		return tab
	}()
)

// Pow10 returns 10^decimals. The returned value must not be mutated.
func Pow10(decimals uint8) *big.Int {
	if int(decimals) < len(pow10Tab) {
		return pow10Tab[decimals]
	}
	return new(big.Int).Exp(bigTen, big.NewInt(int64(decimals)), nil)
}

// ToBaseUnits converts a sanitized decimal string ("12.5") into an integer
// string scaled by 10^decimals. Fractional digits beyond decimals are
// truncated. Empty or malformed input yields "0".
func ToBaseUnits(decimalString string, decimals uint8) string {
	return ToBaseUnitsBig(decimalString, decimals).String()
}

// ToBaseUnitsBig is ToBaseUnits returning a *big.Int.
func ToBaseUnitsBig(decimalString string, decimals uint8) *big.Int {
	s := strings.TrimSpace(decimalString)
	if s == "" {
		return new(big.Int)
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if !isDigits(intPart) || !isDigits(fracPart) {
		return new(big.Int)
	}

	d := int(decimals)
	if len(fracPart) > d {
		fracPart = fracPart[:d]
	}
	fracPart += strings.Repeat("0", d-len(fracPart))

	// integerPart * 10^decimals + fractionalPadded is the concatenation
	digits := strings.TrimLeft(intPart+fracPart, "0")
	if digits == "" {
		return new(big.Int)
	}

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

// FromBaseUnits renders an integer base-unit amount as a decimal string,
// trimming trailing fractional zeros. Nil and negative amounts render as "0".
func FromBaseUnits(amount *big.Int, decimals uint8) string {
	if amount == nil || amount.Sign() <= 0 {
		return "0"
	}
	if decimals == 0 {
		return amount.String()
	}

	q, r := new(big.Int).QuoRem(amount, Pow10(decimals), new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}

	frac := r.String()
	frac = strings.Repeat("0", int(decimals)-len(frac)) + frac
	frac = strings.TrimRight(frac, "0")

	return q.String() + "." + frac
}

// ParseBaseUnits parses a base-10, non-negative integer string.
func ParseBaseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || !isDigits(s) {
		return nil, ErrInvalidBaseUnits
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, ErrInvalidBaseUnits
	}
	return v, nil
}

// SanitizeInput normalizes raw user input into a decimal string accepted by
// ToBaseUnits: disallowed characters are stripped, commas become points,
// only the first decimal point is kept and the fractional part is capped at
// decimals digits. A leading point gains a "0" prefix.
func SanitizeInput(raw string, decimals uint8) string {
	var b strings.Builder
	b.Grow(len(raw))

	seenDot := false
	fracDigits := 0

	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			if seenDot {
				if fracDigits >= int(decimals) {
					continue
				}
				fracDigits++
			}
			b.WriteRune(r)
		case r == '.' || r == ',':
			if seenDot {
				continue
			}
			seenDot = true
			if decimals > 0 {
				b.WriteByte('.')
			}
		}
	}

	out := b.String()
	if strings.HasPrefix(out, ".") {
		out = "0" + out
	}
	return out
}

// ValidateDecimals rejects decimal counts above MaxDecimals.
func ValidateDecimals(decimals int) error {
	if decimals < 0 || decimals > MaxDecimals {
		return apperror.New(apperror.CodeInvalidDecimals,
			apperror.WithCause(ErrDecimalsTooLarge),
			apperror.WithContext(fmt.Sprintf("decimals=%d max=%d", decimals, MaxDecimals)))
	}
	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
