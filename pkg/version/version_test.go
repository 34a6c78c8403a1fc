package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"1.2.3", "1.2.3"},
		{"v1.2.3", "1.2.3"},
		{"V2.0", "2.0"},
		{"3", "3.0"},
		{"1.2.3.4.5", "1.2.3.4"},
		{"1.x.3", "1.3"},
		{"", "0.0"},
		{"   ", "0.0"},
		{"garbage", "0.0"},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.raw).String(), "raw=%q", c.raw)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, raw := range []string{"v1.2.3", "1.0", "7", "", "a.b.c", "1.2.3.4.5"} {
		once := Normalize(raw)
		twice := Normalize(once.String())

		require.Equal(t, 0, once.Compare(twice), "raw=%q", raw)
		require.Equal(t, once.String(), twice.String(), "raw=%q", raw)
	}
}

func TestIsNewer(t *testing.T) {
	cases := []struct {
		candidate, baseline string
		want                bool
	}{
		{"2.0.0", "1.9.9", true},
		{"1.9.9", "2.0.0", false},
		{"1.0", "1.0.0.0", false},
		{"1.0.0.0", "1.0", false},
		{"v3", "v2", true},
		{"1.2.3", "1.2.3", false},
		{"1.2.4", "1.2.3", true},

		// zero baselines force an update regardless of the numbers
		{"5.1", "0.0", true},
		{"0.0.1", "0", true},
		{"anything", "v0.0", true},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, IsNewer(c.candidate, c.baseline),
			"candidate=%q baseline=%q", c.candidate, c.baseline)
	}
}

func TestIsNewerZeroBaselineDirection(t *testing.T) {
	// The forced-update rule fires on the installed side only. A zero
	// candidate never outranks a real installed version.
	assert.True(t, IsNewer("5.1", "0.0"))
	assert.False(t, IsNewer("0.0", "5.1"))
	assert.False(t, IsNewer("v0", "1.0"))
}

func TestIsNewerFallback(t *testing.T) {
	// Neither side parses: differ -> newer, equal (case folded,
	// v-stripped) -> not newer.
	assert.True(t, IsNewer("nightly-b", "nightly-a"))
	assert.False(t, IsNewer("vNightly", "NIGHTLY"))
}
