package payments

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

// Order codes are a fixed "UPG" prefix plus 8 uppercase alphanumerics, e.g.
// "UPGAB12CD34". The payer echoes the code in their bank transfer note, so
// extraction scans free text rather than expecting an exact field.
const (
	orderCodePrefix    = "UPG"
	orderCodeSuffixLen = 8
	orderCodeCharset   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var orderCodePattern = regexp.MustCompile(orderCodePrefix + `[A-Z0-9]{` + fmt.Sprint(orderCodeSuffixLen) + `}`)

// ExtractOrderCode returns the first order-code candidate found in a bank
// transfer description, or "" when none is present. Matching is strict about
// case: banks pass transfer notes through unchanged, and the generated codes
// are always uppercase.
func ExtractOrderCode(description string) string {
	return orderCodePattern.FindString(description)
}

// GenerateOrderCode produces a new random order code.
func GenerateOrderCode() (string, error) {
	buf := make([]byte, orderCodeSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order code: %w", err)
	}
	for i, b := range buf {
		buf[i] = orderCodeCharset[int(b)%len(orderCodeCharset)]
	}
	return orderCodePrefix + string(buf), nil
}
