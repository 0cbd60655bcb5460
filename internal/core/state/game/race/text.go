package race

import "golang.org/x/text/unicode/norm"

// Normalize returns s in NFC so composed and decomposed input compare equal.
func Normalize(s string) string { return norm.NFC.String(s) }

// AcceptedLength returns how many leading runes of typed match target,
// after normalizing both.
func AcceptedLength(target, typed string) int {
	t := []rune(Normalize(target))
	n := 0
	for _, r := range Normalize(typed) {
		if n >= len(t) || t[n] != r {
			break
		}
		n++
	}
	return n
}
