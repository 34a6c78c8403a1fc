package archive

import (
	"archive/zip"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

// extractZipFiltered walks the zip directory and writes only entries
// the filter accepts, recording their dest-relative paths.
func (e *Extractor) extractZipFiltered(src, dest string, filter func(string) bool, out *[]string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return &ExtractionError{Path: src, Reason: "opening zip", Err: err}
	}

	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		if filter != nil && !filter(f.Name) {
			continue
		}

		tgt, ok := safeJoin(dest, f.Name)
		if !ok {
			return &ExtractionError{Path: f.Name, Reason: "entry escapes destination"}
		}

		if err := os.MkdirAll(filepath.Dir(tgt), 0755); err != nil {
			return &ExtractionError{Path: tgt, Reason: "creating parent directory", Err: err}
		}

		if err := copyZipEntry(f, tgt); err != nil {
			return err
		}

		if out != nil {
			*out = append(*out, filepath.FromSlash(f.Name))
		}
	}

	return nil
}

func copyZipEntry(f *zip.File, tgt string) error {
	r, err := f.Open()
	if err != nil {
		return &ExtractionError{Path: f.Name, Reason: "opening zip entry", Err: err}
	}

	defer r.Close()

	w, err := os.Create(tgt)
	if err != nil {
		return &ExtractionError{Path: tgt, Reason: "creating file", Err: err}
	}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return &ExtractionError{Path: tgt, Reason: "copying entry", Err: err}
	}

	return w.Close()
}

// normalizeBundle hoists a platform bundle directory to the dest root
// when the archive wrapped it one directory deep. A bundle already at
// the root is left alone.
func (e *Extractor) normalizeBundle(dest string) error {
	if e.BundleSuffix == "" {
		return nil
	}

	entries, err := ioutil.ReadDir(dest)
	if err != nil {
		return &ExtractionError{Path: dest, Reason: "scanning destination", Err: err}
	}

	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	top := entries[0]

	if strings.HasSuffix(top.Name(), e.BundleSuffix) {
		return nil
	}

	inner, err := ioutil.ReadDir(filepath.Join(dest, top.Name()))
	if err != nil {
		return &ExtractionError{Path: top.Name(), Reason: "scanning wrapper directory", Err: err}
	}

	for _, ent := range inner {
		if !ent.IsDir() || !strings.HasSuffix(ent.Name(), e.BundleSuffix) {
			continue
		}

		from := filepath.Join(dest, top.Name(), ent.Name())
		to := filepath.Join(dest, ent.Name())

		e.L().Debug("normalizing bundle", "from", from, "to", to)

		if err := os.Rename(from, to); err != nil {
			return &ExtractionError{Path: from, Reason: "moving bundle", Err: err}
		}

		// drop the wrapper when the bundle was all it held
		os.Remove(filepath.Join(dest, top.Name()))

		return nil
	}

	return nil
}
