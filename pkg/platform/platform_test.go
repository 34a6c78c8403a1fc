package platform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentify(t *testing.T) {
	cases := []struct {
		goos, goarch string
		flatpak      bool
		want         string
	}{
		{"windows", "amd64", false, "Windows"},
		{"darwin", "arm64", false, "macOS"},
		{"linux", "arm64", false, "Linux-ARM64"},
		{"linux", "amd64", false, "Linux-X64"},
		{"linux", "amd64", true, "Linux-Flatpak-X64"},
	}

	for _, c := range cases {
		got, err := identify(c.goos, c.goarch, c.flatpak)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestIdentifyUnknown(t *testing.T) {
	_, err := identify("plan9", "386", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
}
