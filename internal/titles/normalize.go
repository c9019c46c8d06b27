package titles

import (
	"regexp"
	"strings"
)

// stripRule is one entry in the ordered noise-stripping cascade. Rules run
// top to bottom; each is independently testable and appendable.
type stripRule struct {
	name    string
	pattern *regexp.Regexp
}

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	punctPattern      = regexp.MustCompile(`[^a-z0-9 ]+`)

	// sceneGroupPattern matches trailing release-group tags such as
	// "-RUNE" or "-SKIDROW". It runs before lowercasing because scene tags
	// are conventionally upper case; a hyphenated final word in the real
	// title ("Spider-Man") survives.
	sceneGroupPattern = regexp.MustCompile(`[-_][A-Z0-9]{2,}$`)
)

var stripRules = []stripRule{
	{name: "bracketed aside", pattern: regexp.MustCompile(`\[[^\]]*\]`)},
	{name: "parenthetical aside", pattern: regexp.MustCompile(`\([^)]*\)`)},
	{name: "release noise", pattern: regexp.MustCompile(`(?i)\b(?:repack|proper|multi\d*|denuvoless|drm[- ]?free|cracked|crackfix|pre[- ]?installed|portable|unlocked|online)\b`)},
	{name: "edition phrase", pattern: regexp.MustCompile(`(?i)\b(?:goty|game of the year|deluxe|ultimate|definitive|complete|collectors?|anniversary|enhanced|remastered|digital|standard|gold|premium|special)\s+edition\b`)},
	{name: "edition qualifier", pattern: regexp.MustCompile(`(?i)\b(?:goty|game of the year|deluxe|definitive|remastered|enhanced|anniversary|collectors?)\b`)},
	{name: "edition word", pattern: regexp.MustCompile(`(?i)\bedition\b`)},
	{name: "dlc bundle", pattern: regexp.MustCompile(`(?i)\b(?:\+\s*)?(?:all\s+)?dlcs?(?:\s+included)?\b`)},
	{name: "version token", pattern: regexp.MustCompile(`(?i)\bv\.?\d+(?:\.\d+){0,3}[a-z]?\b`)},
	{name: "build token", pattern: regexp.MustCompile(`(?i)\bbuild[\s.#]*\d+\b`)},
	{name: "update token", pattern: regexp.MustCompile(`(?i)\b(?:update|patch|hotfix)[\s.#]*\d+(?:\.\d+)*\b`)},
}

// Normalize reduces a scraped release title to a canonical comparable form.
// It lowercases, strips scene and edition noise, removes embedded version
// tokens, and collapses punctuation and whitespace. It never fails: input
// that matches nothing is returned lowercased and trimmed.
func Normalize(title string) string {
	s := strings.TrimSpace(title)
	if s == "" {
		return ""
	}
	s = sceneGroupPattern.ReplaceAllString(s, " ")
	for _, rule := range stripRules {
		s = rule.pattern.ReplaceAllString(s, " ")
	}
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", " and ")
	s = punctPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Tokens splits a normalized string into comparison tokens longer than one
// rune, the unit the similarity scorer works with.
func Tokens(normalized string) []string {
	fields := strings.Fields(normalized)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
