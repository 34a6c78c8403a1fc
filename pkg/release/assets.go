package release

import (
	"strings"

	"github.com/gantryhq/gantry/pkg/data"
)

// archiveSuffixes are the container formats the extractor understands.
var archiveSuffixes = []string{".zip", ".tar.gz"}

// SelectAsset picks the first asset whose name contains the platform
// identifier (case-insensitive) and carries a supported archive suffix.
// nil means the release has no build for this platform.
func SelectAsset(assets []data.Asset, platformID string) *data.Asset {
	needle := strings.ToLower(platformID)

	for i := range assets {
		name := strings.ToLower(assets[i].Name)

		if !strings.Contains(name, needle) {
			continue
		}

		for _, suffix := range archiveSuffixes {
			if strings.HasSuffix(name, suffix) {
				return &assets[i]
			}
		}
	}

	return nil
}
