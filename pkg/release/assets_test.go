package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/gantryhq/gantry/pkg/data"
)

func TestSelectAsset(t *testing.T) {
	assets := []data.Asset{
		{Name: "gantry-Windows.zip", DownloadURL: "http://x/win.zip"},
		{Name: "gantry-Linux-X64.tar.gz", DownloadURL: "http://x/linux.tar.gz"},
		{Name: "gantry-linux-x64.sha256", DownloadURL: "http://x/sum"},
		{Name: "gantry-macOS.zip", DownloadURL: "http://x/mac.zip"},
	}

	got := SelectAsset(assets, "Linux-X64")
	require.NotNil(t, got)
	assert.Equal(t, "gantry-Linux-X64.tar.gz", got.Name)

	// case-insensitive match
	got = SelectAsset(assets, "windows")
	require.NotNil(t, got)
	assert.Equal(t, "gantry-Windows.zip", got.Name)
}

func TestSelectAssetSkipsNonArchives(t *testing.T) {
	assets := []data.Asset{
		{Name: "gantry-Windows.msi"},
		{Name: "gantry-Windows.sha256"},
	}

	assert.Nil(t, SelectAsset(assets, "Windows"))
}

func TestSelectAssetNoMatch(t *testing.T) {
	assets := []data.Asset{
		{Name: "gantry-Windows.zip"},
	}

	assert.Nil(t, SelectAsset(assets, "Linux-ARM64"))
}
