// Package banking validates bank account identifiers and talks to the
// external account verification service.
package banking

import (
	"math/big"
	"regexp"
)

var (
	ibanPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)
	bicPattern  = regexp.MustCompile(`^[A-Z]{4}[A-Z]{2}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
)

// Validator checks IBAN (ISO 13616) and BIC (ISO 9362) formats. Input is
// expected in normalised form: upper case, no spaces.
type Validator struct{}

func NewValidator() Validator {
	return Validator{}
}

// IsValidIBAN checks the layout and the mod-97 check digits.
func (Validator) IsValidIBAN(iban string) bool {
	if !ibanPattern.MatchString(iban) {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	digits := make([]byte, 0, len(rearranged)*2)
	for i := 0; i < len(rearranged); i++ {
		c := rearranged[i]
		if c >= 'A' && c <= 'Z' {
			n := int(c-'A') + 10
			digits = append(digits, byte('0'+n/10), byte('0'+n%10))
			continue
		}
		digits = append(digits, c)
	}
	n, ok := new(big.Int).SetString(string(digits), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

func (Validator) IsValidBIC(bic string) bool {
	return bicPattern.MatchString(bic)
}
