package resolver

import (
	"context"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/gantryhq/gantry/pkg/archive"
	"github.com/gantryhq/gantry/pkg/data"
	"github.com/gantryhq/gantry/pkg/manifest"
	"github.com/gantryhq/gantry/pkg/registry"
	"github.com/gantryhq/gantry/pkg/transfer"
)

// DefaultPayloadExtensions is the file-type allowlist applied when
// extracting package payloads into the content folder.
var DefaultPayloadExtensions = []string{".dll", ".so", ".dylib", ".pak", ".cfg", ".json"}

// Installer resolves, downloads and installs packages and their
// transitive dependencies, keeping the ledger in step with the disk.
type Installer struct {
	logger hclog.Logger

	Registry *registry.Client
	Transfer *transfer.Manager
	Extract  *archive.Extractor
	Ledger   *manifest.Store

	// InstallRoot is the content folder payload files land in.
	InstallRoot string

	// StagingDir receives downloaded archives before extraction.
	StagingDir string

	// PayloadExtensions overrides DefaultPayloadExtensions.
	PayloadExtensions []string

	// Progress, when set, receives transfer progress.
	Progress transfer.ProgressFunc

	locks keyedLocks
}

func (i *Installer) L() hclog.Logger {
	if i.logger != nil {
		return i.logger
	}

	i.logger = hclog.L()

	return i.logger
}

func (i *Installer) SetLogger(logger hclog.Logger) {
	i.logger = logger
}

func (i *Installer) exts() []string {
	if len(i.PayloadExtensions) > 0 {
		return i.PayloadExtensions
	}

	return DefaultPayloadExtensions
}

func identity(owner, name string) string {
	return strings.ToLower(owner) + "/" + strings.ToLower(name)
}

// Resolve walks the declared dependency keys depth-first and returns
// the flat set considered resolved: installed by this pass, already in
// the ledger, or unresolvable and skipped best-effort. The inProgress
// set breaks dependency cycles between packages that are not yet in
// the ledger.
func (i *Installer) Resolve(ctx context.Context, keys []string) ([]string, error) {
	var resolved []string

	inProgress := make(map[string]struct{})

	if err := i.resolveAll(ctx, keys, inProgress, &resolved); err != nil {
		return nil, err
	}

	return resolved, nil
}

func (i *Installer) resolveAll(ctx context.Context, keys []string, inProgress map[string]struct{}, resolved *[]string) error {
	for _, key := range keys {
		if err := i.resolveKey(ctx, key, inProgress, resolved); err != nil {
			return err
		}
	}

	return nil
}

func (i *Installer) resolveKey(ctx context.Context, key string, inProgress map[string]struct{}, resolved *[]string) error {
	owner, name, ok := data.DependencyKey(key).Split()
	if !ok {
		// unusable key, keep it out of the retry loop
		i.L().Warn("unresolvable dependency key", "key", key)
		*resolved = append(*resolved, key)
		return nil
	}

	id := identity(owner, name)

	if i.Ledger.Has(owner, name) {
		*resolved = append(*resolved, key)
		return nil
	}

	if _, busy := inProgress[id]; busy {
		// cycle back to a package this pass is already installing; the
		// key still counts as resolved in the output
		i.L().Debug("dependency cycle short-circuited", "key", key)
		*resolved = append(*resolved, key)
		return nil
	}

	inProgress[id] = struct{}{}

	pkg, err := i.Registry.Find(ctx, owner, name)
	if err != nil {
		return err
	}

	if pkg == nil || pkg.Latest() == nil {
		// best effort: record the key as handled so every later run
		// does not re-warn about the same missing dependency
		i.L().Warn("dependency not in registry, skipping", "key", key)
		*resolved = append(*resolved, key)
		return nil
	}

	rec, err := i.fetchAndPlace(ctx, pkg, pkg.Latest(), false)
	if err != nil {
		return err
	}

	if err := i.resolveAll(ctx, pkg.Latest().Dependencies, inProgress, resolved); err != nil {
		return err
	}

	// record even a zero-payload dependency; some exist only to pull
	// in their own dependencies
	if err := i.Ledger.Upsert(*rec, false); err != nil {
		return err
	}

	*resolved = append(*resolved, key)

	return nil
}
