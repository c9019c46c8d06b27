package titles

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// VersionKind identifies which cascade step produced a version token.
type VersionKind string

const (
	// KindSemver is a dotted numeric token, optionally v-prefixed.
	KindSemver VersionKind = "semver"
	// KindDate is a synthetic ordinal derived from a publish date.
	KindDate VersionKind = "date"
	// KindSource is a last-resort ordinal derived from a stable source id.
	KindSource VersionKind = "source"
)

// Version is a comparable version or build token extracted from a listing.
// Only tokens of the same Kind are ordered against each other.
type Version struct {
	Raw        string
	Kind       VersionKind
	Components []int
	Suffix     string
	Ordinal    int64
	Confidence float64
}

var (
	versionTokenPattern = regexp.MustCompile(`(?i)\bv\.?(\d+(?:\.\d+){0,3})(?:[-_. ]?((?:alpha|beta|rc|hotfix|patch)\d*|[a-z])\b)?`)
	bareVersionPattern  = regexp.MustCompile(`(?i)^v?\.?(\d+(?:\.\d+){0,3})(?:[-_. ]?((?:alpha|beta|rc|hotfix|patch)\d*|[a-z]))?$`)
	digitsPattern       = regexp.MustCompile(`\d+`)
)

// ExtractVersion runs the extraction cascade over a listing: a v-prefixed
// token in the title or excerpt, then the publish date as a synthetic
// ordinal, then the source id. First match wins. When nothing matches it
// returns nil; callers must treat nil as "unknown version" and rely on
// similarity and relatedness alone, never a fabricated timestamp.
func ExtractVersion(title, excerpt string, published time.Time, sourceID string) *Version {
	for _, text := range []string{title, excerpt} {
		if v := findVersionToken(text); v != nil {
			return v
		}
	}
	if !published.IsZero() {
		day := published.UTC().Truncate(24 * time.Hour)
		return &Version{
			Raw:        day.Format("2006-01-02"),
			Kind:       KindDate,
			Ordinal:    day.Unix(),
			Confidence: 0.5,
		}
	}
	if digits := digitsPattern.FindString(sourceID); digits != "" {
		if ordinal, err := strconv.ParseInt(digits, 10, 64); err == nil {
			return &Version{
				Raw:        strings.TrimSpace(sourceID),
				Kind:       KindSource,
				Ordinal:    ordinal,
				Confidence: 0.25,
			}
		}
	}
	return nil
}

// ParseVersion parses a stored version token (with or without the v prefix).
// It returns nil when the token is not a recognizable version.
func ParseVersion(token string) *Version {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	m := bareVersionPattern.FindStringSubmatch(token)
	if m == nil {
		return nil
	}
	v := buildSemver(token, m[1], m[2])
	if !strings.HasPrefix(strings.ToLower(token), "v") {
		v.Confidence = 0.9
	}
	return v
}

func findVersionToken(text string) *Version {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	m := versionTokenPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return buildSemver(m[0], m[1], m[2])
}

func buildSemver(raw, numeric, suffix string) *Version {
	parts := strings.Split(numeric, ".")
	components := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil
		}
		components = append(components, n)
	}
	return &Version{
		Raw:        strings.TrimSpace(raw),
		Kind:       KindSemver,
		Components: components,
		Suffix:     strings.ToLower(strings.TrimSpace(suffix)),
		Confidence: 1.0,
	}
}

// Compare orders two version tokens of the same kind. It returns a negative
// value when a < b, zero when equal, positive when a > b. Numeric components
// compare integer-wise; a longer token with equal leading components is
// greater (1.2.1 > 1.2), and a suffix outranks its absence (2.0.1.b > 2.0.1).
// Tokens of different kinds are not ordered and compare as equal.
func Compare(a, b Version) int {
	if a.Kind != b.Kind {
		return 0
	}
	if a.Kind != KindSemver {
		switch {
		case a.Ordinal < b.Ordinal:
			return -1
		case a.Ordinal > b.Ordinal:
			return 1
		default:
			return 0
		}
	}

	for i := 0; i < len(a.Components) && i < len(b.Components); i++ {
		if a.Components[i] != b.Components[i] {
			if a.Components[i] < b.Components[i] {
				return -1
			}
			return 1
		}
	}
	if len(a.Components) != len(b.Components) {
		if len(a.Components) < len(b.Components) {
			return -1
		}
		return 1
	}
	return compareSuffix(a.Suffix, b.Suffix)
}

// GreaterThan reports whether v is a strictly newer token than other.
// Tokens of different kinds never order, so this returns false for them.
func (v Version) GreaterThan(other Version) bool {
	if v.Kind != other.Kind {
		return false
	}
	return Compare(v, other) > 0
}

func (v Version) String() string {
	return v.Raw
}

var namedSuffixRank = map[string]int{
	"alpha":  1,
	"beta":   2,
	"rc":     3,
	"patch":  4,
	"hotfix": 5,
}

func compareSuffix(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	ra, rb := suffixRank(a), suffixRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func suffixRank(s string) int {
	base := strings.TrimRight(s, "0123456789")
	if rank, ok := namedSuffixRank[base]; ok {
		return rank
	}
	return 0
}
