package dashboard

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeLabel canonicalizes a column label or queue name: non-breaking spaces
// become ordinary spaces, whitespace runs collapse to one space and the result is
// trimmed. It never fails.
func NormalizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// NormalizeLabels applies NormalizeLabel to every label.
func NormalizeLabels(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = NormalizeLabel(l)
	}
	return out
}

// JoinKey is the key used to match queue names, category labels and doc types
// across sources: the normalized label, case folded.
func JoinKey(s string) string {
	// Casers are stateful; one per call.
	return cases.Fold().String(NormalizeLabel(s))
}

// LenientInt coerces a cell to a non-negative count. Blank, unparseable and
// negative values become 0.
func LenientInt(s string) int {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return max(n, 0)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	return int(f)
}

// ParseLockStatus maps the free-text lock column to a LockStatus. "Y" and
// "LOCKED" in any case are locked; everything else is unlocked.
func ParseLockStatus(s string) LockStatus {
	switch JoinKey(s) {
	case "y", "locked":
		return Locked
	default:
		return Unlocked
	}
}
