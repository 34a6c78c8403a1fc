package fileutils

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// TreeCopy copies everything under Src into Dest, creating directories
// on demand and preserving file modes. Failures are collected per file
// rather than aborting at the first one, so callers can tell a
// complete copy from a partial one before doing anything destructive.
type TreeCopy struct {
	Ctx context.Context
	L   hclog.Logger

	Src  string
	Dest string

	// Skip, when set, excludes matching Src-relative paths.
	Skip func(rel string) bool
}

func (t *TreeCopy) logger() hclog.Logger {
	if t.L != nil {
		return t.L
	}

	t.L = hclog.L()

	return t.L
}

func (t *TreeCopy) cancelled() error {
	if t.Ctx == nil {
		return nil
	}

	select {
	case <-t.Ctx.Done():
		return t.Ctx.Err()
	default:
		return nil
	}
}

// Run performs the copy. The returned list holds the Src-relative
// paths of regular files successfully copied; err aggregates every
// per-file failure.
func (t *TreeCopy) Run() ([]string, error) {
	var (
		copied []string
		merr   *multierror.Error
	)

	walkErr := filepath.Walk(t.Src, func(path string, fi os.FileInfo, err error) error {
		if cerr := t.cancelled(); cerr != nil {
			return cerr
		}

		if err != nil {
			merr = multierror.Append(merr, err)
			return nil
		}

		rel, err := filepath.Rel(t.Src, path)
		if err != nil {
			merr = multierror.Append(merr, err)
			return nil
		}

		if rel == "." {
			return nil
		}

		if t.Skip != nil && t.Skip(rel) {
			if fi.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		tgt := filepath.Join(t.Dest, rel)

		if fi.IsDir() {
			if err := os.MkdirAll(tgt, fi.Mode().Perm()); err != nil {
				merr = multierror.Append(merr, err)
				return filepath.SkipDir
			}

			return nil
		}

		if !fi.Mode().IsRegular() {
			// symlinks and specials are not part of an install tree
			t.logger().Debug("skipping irregular file", "path", path)
			return nil
		}

		if err := copyFile(path, tgt, fi.Mode().Perm()); err != nil {
			merr = multierror.Append(merr, err)
			return nil
		}

		copied = append(copied, rel)

		return nil
	})

	if walkErr != nil {
		merr = multierror.Append(merr, walkErr)
	}

	return copied, merr.ErrorOrNil()
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}

	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
