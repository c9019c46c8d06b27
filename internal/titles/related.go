package titles

import "strings"

// AreRelatedButDistinct reports whether two titles look like different
// entries of the same franchise: a sequel, remake, or subtitled variant
// rather than the same title. When true, a similarity score alone must not
// drive an update decision; the engine requires external catalog
// confirmation first.
//
// Single-word titles never trigger this path. A one-token title offers no
// lexical evidence either way, and treating "Dusk" as related-but-distinct
// from "Dusk Chronicles" would block every legitimate short-titled match.
func AreRelatedButDistinct(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" || na == nb {
		return false
	}

	tokensA := strings.Fields(na)
	tokensB := strings.Fields(nb)
	if len(tokensA) < 2 || len(tokensB) < 2 {
		return false
	}
	if len(tokensA) == len(tokensB) {
		return false
	}

	shorter, longer := tokensA, tokensB
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	return isOrderedSubsequence(shorter, longer)
}

// isOrderedSubsequence requires every token of shorter to appear in longer
// in the same relative order. Set containment alone would accept
// anagram-like rearrangements that are not franchise expansions.
func isOrderedSubsequence(shorter, longer []string) bool {
	idx := 0
	for _, token := range shorter {
		found := false
		for idx < len(longer) {
			if longer[idx] == token {
				found = true
				idx++
				break
			}
			idx++
		}
		if !found {
			return false
		}
	}
	return true
}
