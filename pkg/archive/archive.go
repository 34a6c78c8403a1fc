package archive

import (
	"compress/gzip"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/hashicorp/go-getter"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Suffix pulls the container suffix off a download URL so the staged
// file dispatches to the right extractor. Query strings and fragments
// do not leak into the suffix; unknown shapes default to zip.
func Suffix(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ".zip"
	}

	p := u.Path

	if strings.HasSuffix(p, ".tar.gz") {
		return ".tar.gz"
	}

	if ext := path.Ext(p); ext != "" {
		return ext
	}

	return ".zip"
}

// ExtractionError carries the offending path along with the reason the
// extraction was abandoned.
type ExtractionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extracting %s: %s: %s", e.Path, e.Reason, e.Err)
	}

	return fmt.Sprintf("extracting %s: %s", e.Path, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor expands downloaded artifacts. Two container formats are
// supported, picked by suffix: a zip archive and a gzip-compressed
// sequential-block stream.
type Extractor struct {
	logger hclog.Logger

	// BundleSuffix enables the bundle normalization step after zip
	// extraction. Empty disables it.
	BundleSuffix string
}

func (e *Extractor) L() hclog.Logger {
	if e.logger != nil {
		return e.logger
	}

	e.logger = hclog.L()

	return e.logger
}

func (e *Extractor) SetLogger(logger hclog.Logger) {
	e.logger = logger
}

// Extract expands src into dest, overwriting existing files. Parent
// directories are created on demand.
func (e *Extractor) Extract(src, dest string) error {
	switch {
	case strings.HasSuffix(src, ".zip"):
		return e.extractZip(src, dest)
	case strings.HasSuffix(src, ".tar.gz"):
		return e.extractBlocks(src, dest, nil, nil)
	}

	return &ExtractionError{Path: src, Reason: "unsupported archive extension"}
}

// ExtractFiltered expands only the payload files whose extension is in
// exts (case-insensitive), returning their dest-relative paths. Entries
// that match no extension are skipped, directories are only created for
// files that survive the filter.
func (e *Extractor) ExtractFiltered(src, dest string, exts []string) ([]string, error) {
	filter := extensionFilter(exts)

	var out []string

	switch {
	case strings.HasSuffix(src, ".zip"):
		if err := e.extractZipFiltered(src, dest, filter, &out); err != nil {
			return nil, err
		}
	case strings.HasSuffix(src, ".tar.gz"):
		if err := e.extractBlocks(src, dest, filter, &out); err != nil {
			return nil, err
		}
	default:
		return nil, &ExtractionError{Path: src, Reason: "unsupported archive extension"}
	}

	return out, nil
}

func extensionFilter(exts []string) func(string) bool {
	if len(exts) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(exts))
	for _, x := range exts {
		set[strings.ToLower(x)] = struct{}{}
	}

	return func(name string) bool {
		lower := strings.ToLower(name)

		for x := range set {
			if strings.HasSuffix(lower, x) {
				return true
			}
		}

		return false
	}
}

// extractBlocks runs the sequential-block parser over a gzip stream.
func (e *Extractor) extractBlocks(src, dest string, filter func(string) bool, out *[]string) error {
	f, err := os.Open(src)
	if err != nil {
		return &ExtractionError{Path: src, Reason: "opening archive", Err: err}
	}

	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return &ExtractionError{Path: src, Reason: "reading gzip stream", Err: err}
	}

	defer gz.Close()

	return e.walkBlocks(gz, dest, filter, out)
}

// extractZip hands the common zip case to the decompressor table and
// then applies bundle normalization, so a macOS archive whose payload
// is wrapped one directory deep ends up with the bundle at dest root.
func (e *Extractor) extractZip(src, dest string) error {
	dec, ok := getter.Decompressors["zip"]
	if !ok {
		return &ExtractionError{Path: src, Reason: "zip decompressor unavailable"}
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return &ExtractionError{Path: dest, Reason: "creating destination", Err: err}
	}

	if err := dec.Decompress(dest, src, true); err != nil {
		return &ExtractionError{Path: src, Reason: "expanding zip", Err: errors.WithStack(err)}
	}

	return e.normalizeBundle(dest)
}
