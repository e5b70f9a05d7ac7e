package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ContentHash fingerprints an item by its normalized headline and source.
// Case, Unicode form and whitespace differences do not change the hash.
func ContentHash(headline, source string) string {
	content := normalizeForHash(headline) + "|" + normalizeForHash(source)
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

func normalizeForHash(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
