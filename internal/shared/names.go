package shared

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeName folds a resource or action lookup key so that "Posts" and "posts" address
// the same record. Folding is Unicode aware; strings.ToLower is not enough for non-Latin
// vocabularies. A Caser carries state, so one is built per call.
func NormalizeName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
