package titles

import "strings"

const (
	substringFloor     = 0.85
	substringScale     = 0.95
	partialTokenCredit = 0.7
	tokenBlendWeight   = 0.85
	lengthBlendWeight  = 0.15
)

// Similarity scores the likeness of two titles on a 0..1 scale. It is
// symmetric, returns 1.0 for identical normalized titles, and scores
// expansion-only differences (added edition text) near-identical via the
// substring fast path.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}
	// Canonical ordering keeps the token matching below order-independent.
	if na > nb {
		na, nb = nb, na
	}

	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		ratio := float64(len(shorter)) / float64(len(longer)) * substringScale
		if ratio < substringFloor {
			return substringFloor
		}
		return ratio
	}

	tokensA, tokensB := Tokens(na), Tokens(nb)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	matchWeight := matchTokens(tokensA, tokensB)
	union := tokenUnion(tokensA, tokensB)
	tokenScore := matchWeight / float64(union)

	countA, countB := float64(len(tokensA)), float64(len(tokensB))
	closeness := countA / countB
	if countB < countA {
		closeness = countB / countA
	}

	score := tokenBlendWeight*tokenScore + lengthBlendWeight*closeness
	if score > 1.0 {
		return 1.0
	}
	return score
}

// matchTokens pairs tokens greedily: exact matches first at full weight, then
// containment pairs at partial credit when the containing token has four or
// more characters. Each token participates in at most one pair.
func matchTokens(tokensA, tokensB []string) float64 {
	usedB := make([]bool, len(tokensB))
	weight := 0.0

	usedA := make([]bool, len(tokensA))
	for i, ta := range tokensA {
		for j, tb := range tokensB {
			if usedB[j] || ta != tb {
				continue
			}
			usedA[i] = true
			usedB[j] = true
			weight += 1.0
			break
		}
	}

	for i, ta := range tokensA {
		if usedA[i] {
			continue
		}
		for j, tb := range tokensB {
			if usedB[j] {
				continue
			}
			if partialTokenMatch(ta, tb) {
				usedB[j] = true
				weight += partialTokenCredit
				break
			}
		}
	}
	return weight
}

func partialTokenMatch(a, b string) bool {
	if len(a) >= 4 && strings.Contains(a, b) {
		return true
	}
	if len(b) >= 4 && strings.Contains(b, a) {
		return true
	}
	return false
}

func tokenUnion(tokensA, tokensB []string) int {
	set := make(map[string]struct{}, len(tokensA)+len(tokensB))
	for _, t := range tokensA {
		set[t] = struct{}{}
	}
	for _, t := range tokensB {
		set[t] = struct{}{}
	}
	return len(set)
}
