package support

import (
	"fmt"
	"strings"

	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

var dialCodes = map[string]string{
	"KE": "254",
	"UG": "256",
	"TZ": "255",
	"RW": "250",
	"ZM": "260",
	"MW": "265",
	"CD": "243",
	"CG": "242",
	"NE": "227",
	"TD": "235",
	"GA": "241",
	"MG": "261",
	"SC": "248",
	"GH": "233",
	"NG": "234",
	"ZA": "27",
	"CI": "225",
	"CM": "237",
	"SN": "221",
}

// DialCode returns the calling code for an ISO country code.
func DialCode(country string) (string, bool) {
	code, ok := dialCodes[strings.ToUpper(strings.TrimSpace(country))]
	return code, ok
}

// NormalizePhone returns the number as E.164 digits without the leading '+'.
// Local forms (0712..., 712...) get dialCode prepended.
func NormalizePhone(raw, dialCode string) (string, error) {
	raw = strings.TrimSpace(raw)
	international := strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "00")

	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", fmt.Errorf("%w: unexpected character %q", domain.ErrInvalidPhone, r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(raw, "00") {
		digits = digits[2:]
	}

	switch {
	case international, strings.HasPrefix(digits, dialCode):
	case strings.HasPrefix(digits, "0"):
		digits = dialCode + digits[1:]
	case len(digits) == 9:
		digits = dialCode + digits
	}

	if len(digits) < 10 || len(digits) > 15 {
		return "", fmt.Errorf("%w: %d digits", domain.ErrInvalidPhone, len(digits))
	}
	return digits, nil
}

// LocalNumber strips the calling code from a normalized number.
func LocalNumber(normalized, dialCode string) string {
	return strings.TrimPrefix(normalized, dialCode)
}
