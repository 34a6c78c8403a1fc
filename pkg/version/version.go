package version

import (
	"strconv"
	"strings"
)

// Version is a normalized 2-4 component version tuple. Missing
// components compare as zero.
type Version []int

// Normalize parses a raw tag into a Version. It never fails: a leading
// v/V is stripped, non-integer segments are discarded, the result is
// padded to at least 2 components and truncated to at most 4. Empty or
// entirely unparsable input normalizes to 0.0.0.0.
func Normalize(raw string) Version {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "v"), "V")

	var out Version

	for _, seg := range strings.Split(raw, ".") {
		n, err := strconv.Atoi(strings.TrimSpace(seg))
		if err != nil || n < 0 {
			continue
		}

		out = append(out, n)
	}

	for len(out) < 2 {
		out = append(out, 0)
	}

	if len(out) > 4 {
		out = out[:4]
	}

	return out
}

func (v Version) component(i int) int {
	if i < len(v) {
		return v[i]
	}

	return 0
}

// Compare orders two versions component-wise, major first. Absent
// components are zero, so 1.0 equals 1.0.0.0.
func (v Version) Compare(o Version) int {
	for i := 0; i < 4; i++ {
		a, b := v.component(i), o.component(i)

		if a < b {
			return -1
		}

		if a > b {
			return 1
		}
	}

	return 0
}

func (v Version) String() string {
	segs := make([]string, len(v))
	for i, n := range v {
		segs[i] = strconv.Itoa(n)
	}

	return strings.Join(segs, ".")
}

// zeroBaselines are treated as "nothing installed yet": any remote tag
// is reported newer so a fresh install always picks up the feed.
var zeroBaselines = map[string]struct{}{
	"0":   {},
	"0.0": {},
}

func stripV(s string) string {
	return strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "v"), "V")
}

// IsNewer reports whether candidate is strictly newer than baseline.
// Both sides are normalized; when normalization yields nothing usable
// on either side it falls back to case-insensitive string inequality of
// the v-stripped inputs.
func IsNewer(candidate, baseline string) bool {
	if _, ok := zeroBaselines[stripV(baseline)]; ok {
		return true
	}

	c, b := Normalize(candidate), Normalize(baseline)

	if parsable(candidate) || parsable(baseline) {
		return c.Compare(b) > 0
	}

	return !strings.EqualFold(stripV(candidate), stripV(baseline))
}

// parsable reports whether at least one integer segment survived
// normalization, ie the tuple carries real information.
func parsable(raw string) bool {
	raw = stripV(raw)

	for _, seg := range strings.Split(raw, ".") {
		if _, err := strconv.Atoi(strings.TrimSpace(seg)); err == nil {
			return true
		}
	}

	return false
}
