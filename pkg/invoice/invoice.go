// Package invoice generates the human-readable identifiers printed on
// receipts and product labels. Invoice numbers are date-prefixed with a
// random base36 suffix; uniqueness is enforced by the database, callers
// regenerate on collision.
package invoice

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"
	"unicode"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func randomSuffix(n int) string {
	var sb strings.Builder
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken;
			// fall back to a time-derived index rather than panicking mid-sale.
			idx = big.NewInt(time.Now().UnixNano() % int64(len(base36)))
		}
		sb.WriteByte(base36[idx.Int64()])
	}
	return sb.String()
}

// Generate returns an invoice number like INV250831A1B2C3.
func Generate() string {
	return GenerateAt(time.Now())
}

// GenerateAt is Generate with an explicit timestamp, for tests.
func GenerateAt(t time.Time) string {
	return "INV" + t.Format("060102") + randomSuffix(6)
}

// GenerateSKU derives a SKU suggestion from a product name, e.g.
// "Beras Premium" -> "BER-X9K2".
func GenerateSKU(name string) string {
	var prefix strings.Builder
	for _, r := range strings.ToUpper(name) {
		if unicode.IsLetter(r) {
			prefix.WriteRune(r)
		}
		if prefix.Len() >= 3 {
			break
		}
	}
	if prefix.Len() == 0 {
		prefix.WriteString("PRD")
	}
	return prefix.String() + "-" + randomSuffix(4)
}
