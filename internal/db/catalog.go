package db

import (
	"sort"
	"strings"
)

// FilterTables keeps names starting with prefix and orders them byte-wise.
// Catalog ORDER BY follows the database collation, which is not guaranteed
// to be lexicographic.
func FilterTables(names []string, prefix string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
