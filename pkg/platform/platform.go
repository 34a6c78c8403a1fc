package platform

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// ErrUnsupported is returned when the running OS/architecture has no
// published build. Callers surface this to the user instead of crashing.
var ErrUnsupported = errors.New("unsupported platform")

// flatpakMarker is set inside a Flatpak sandbox and changes which Linux
// build we want.
const flatpakMarker = "FLATPAK_ID"

// Identify derives the identifier used to pick a release asset:
// Windows, macOS, Linux-ARM64, Linux-X64 or Linux-Flatpak-X64.
func Identify() (string, error) {
	return identify(runtime.GOOS, runtime.GOARCH, os.Getenv(flatpakMarker) != "")
}

func identify(goos, goarch string, flatpak bool) (string, error) {
	switch goos {
	case "windows":
		return "Windows", nil
	case "darwin":
		return "macOS", nil
	case "linux":
		if goarch == "arm64" {
			return "Linux-ARM64", nil
		}

		if flatpak {
			return "Linux-Flatpak-X64", nil
		}

		return "Linux-X64", nil
	}

	return "", errors.Wrapf(ErrUnsupported, "os %s/%s", goos, goarch)
}

// ExecutableName appends the platform executable suffix to base.
func ExecutableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}

	return base
}

// BundleSuffix is the macOS application bundle directory suffix used by
// the extractor's bundle normalization step. Empty when the platform
// has no bundle convention.
func BundleSuffix() string {
	if runtime.GOOS == "darwin" {
		return ".app"
	}

	return ""
}
