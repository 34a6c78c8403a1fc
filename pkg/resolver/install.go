package resolver

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/gantryhq/gantry/pkg/archive"
	"github.com/gantryhq/gantry/pkg/data"
)

// ErrPackageNotFound is the user-facing "no such package" condition
// for a top-level install request.
var ErrPackageNotFound = errors.New("package not found in registry")

// Install downloads and installs owner/name at its latest version,
// resolves its dependency tree, and records everything in the ledger.
// Cancelling mid-transfer leaves the ledger and any previous install
// of the package untouched.
func (i *Installer) Install(ctx context.Context, owner, name string) (*data.InstallRecord, error) {
	pkg, err := i.Registry.Find(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	if pkg == nil || pkg.Latest() == nil {
		return nil, errors.Wrapf(ErrPackageNotFound, "%s/%s", owner, name)
	}

	ver := pkg.Latest()

	rec, err := i.fetchAndPlace(ctx, pkg, ver, true)
	if err != nil {
		return nil, err
	}

	resolved, err := i.Resolve(ctx, ver.Dependencies)
	if err != nil {
		return nil, err
	}

	if err := i.Ledger.Upsert(*rec, false); err != nil {
		return nil, err
	}

	i.L().Info("installed package",
		"package", pkg.Owner+"/"+pkg.Name,
		"version", ver.VersionNumber,
		"files", len(rec.Files),
		"dependencies", len(resolved))

	return rec, nil
}

// Uninstall removes the package's tracked files and its ledger record.
// Dependencies stay installed; nothing tracks reverse ownership.
func (i *Installer) Uninstall(ctx context.Context, owner, name string) error {
	unlock := i.locks.lock(identity(owner, name))
	defer unlock()

	return i.Ledger.Remove(owner, name)
}

// fetchAndPlace downloads one package version and extracts its payload
// into the install root, serialized per package identity. The returned
// record is not yet in the ledger; deleting any previous install
// happens after the download succeeds, so an aborted transfer changes
// nothing on disk.
func (i *Installer) fetchAndPlace(ctx context.Context, pkg *data.PackageListing, ver *data.PackageVersion, reinstall bool) (*data.InstallRecord, error) {
	unlock := i.locks.lock(identity(pkg.Owner, pkg.Name))
	defer unlock()

	if !reinstall {
		// another task may have finished this package while we waited
		if existing := i.Ledger.Lookup(pkg.Owner, pkg.Name); existing != nil {
			return existing, nil
		}
	}

	stage := filepath.Join(i.stagingDir(),
		pkg.Owner+"-"+pkg.Name+"-"+ver.VersionNumber+archive.Suffix(ver.DownloadURL))

	receipt, err := i.Transfer.Download(ctx, ver.DownloadURL, stage, i.Progress)
	if err != nil {
		os.Remove(stage)
		return nil, err
	}

	defer os.Remove(stage)

	if i.Ledger.Has(pkg.Owner, pkg.Name) {
		// replace: old files go before the new ones land
		if err := i.Ledger.Remove(pkg.Owner, pkg.Name); err != nil {
			return nil, err
		}
	}

	files, err := i.Extract.ExtractFiltered(stage, i.InstallRoot, i.exts())
	if err != nil {
		return nil, err
	}

	return &data.InstallRecord{
		Owner:        pkg.Owner,
		Name:         pkg.Name,
		Version:      ver.VersionNumber,
		InstalledAt:  time.Now().UTC(),
		Digest:       receipt.Digest,
		Files:        files,
		Dependencies: ver.Dependencies,
	}, nil
}

func (i *Installer) stagingDir() string {
	if i.StagingDir != "" {
		return i.StagingDir
	}

	return os.TempDir()
}
