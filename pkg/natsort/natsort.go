// Package natsort orders bed labels the way staff read them: digit runs
// compare by numeric value, so "2" sorts before "10" and "A-9" before "A-10".
package natsort

import (
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	mu       sync.Mutex
	collator = collate.New(language.Und, collate.Numeric)
)

// Compare returns -1, 0 or 1.
func Compare(a, b string) int {
	mu.Lock()
	defer mu.Unlock()
	return collator.CompareString(a, b)
}

// Less reports whether a sorts before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Strings sorts s in place.
func Strings(s []string) {
	sort.SliceStable(s, func(i, j int) bool { return Less(s[i], s[j]) })
}

// Slice sorts s in place by the label key returns for each element.
func Slice[T any](s []T, key func(T) string) {
	sort.SliceStable(s, func(i, j int) bool { return Less(key(s[i]), key(s[j])) })
}
