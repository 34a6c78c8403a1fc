package selfupdate

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/gantryhq/gantry/pkg/data"
	"github.com/gantryhq/gantry/pkg/release"
	"github.com/gantryhq/gantry/pkg/version"
)

// ErrCheckActive means another check or apply already holds the
// pipeline gate.
var ErrCheckActive = errors.New("update check already in progress")

// Updater drives the check half of the pipeline and owns the
// persisted check state.
type Updater struct {
	logger hclog.Logger

	Fetcher *release.Fetcher
	States  *StateStore

	// Repo is the release-feed repository, eg "gantryhq/gantry".
	Repo string

	// CurrentVersion of the running launcher.
	CurrentVersion string

	// PlatformID selects the release asset.
	PlatformID string

	guard Guard
	now   func() time.Time
}

func (u *Updater) L() hclog.Logger {
	if u.logger != nil {
		return u.logger
	}

	u.logger = hclog.L()

	return u.logger
}

func (u *Updater) SetLogger(logger hclog.Logger) {
	u.logger = logger
}

func (u *Updater) clock() time.Time {
	if u.now != nil {
		return u.now()
	}

	return time.Now()
}

// Outcome of a check.
type Outcome struct {
	// Skipped means the skip policy suppressed the network call.
	Skipped bool

	UpdateAvailable bool
	RemoteVersion   string

	// Asset is the downloadable artifact for this platform, set only
	// when an update is available.
	Asset *data.Asset
}

// Check queries the release feed unless the skip policy says the last
// answer is still fresh. Manual checks always hit the network. The
// persisted state is rewritten after every real check.
func (u *Updater) Check(ctx context.Context, manual bool) (*Outcome, error) {
	if !u.guard.TryStart() {
		return nil, ErrCheckActive
	}

	defer u.guard.Done()

	st := u.States.Load()

	if ShouldSkip(st, u.clock(), u.CurrentVersion, manual) {
		u.L().Debug("skipping update check", "last", st.LastCheckTime)

		return &Outcome{
			Skipped:         true,
			UpdateAvailable: st.UpdateAvailable,
			RemoteVersion:   st.LastKnownVersion,
		}, nil
	}

	res, err := u.Fetcher.Latest(ctx, u.Repo, st.ConditionalTag)
	if err != nil {
		return nil, err
	}

	if res.NotModified {
		st.LastCheckTime = u.clock()
		st.CurrentVersion = u.CurrentVersion

		if err := u.States.Save(st); err != nil {
			return nil, err
		}

		return &Outcome{
			UpdateAvailable: st.UpdateAvailable,
			RemoteVersion:   st.LastKnownVersion,
		}, nil
	}

	rel := res.Release
	available := version.IsNewer(rel.Tag, u.CurrentVersion)

	st.LastCheckTime = u.clock()
	st.LastKnownVersion = rel.Tag
	st.CurrentVersion = u.CurrentVersion
	st.ConditionalTag = res.ConditionalTag
	st.UpdateAvailable = available

	if err := u.States.Save(st); err != nil {
		return nil, err
	}

	out := &Outcome{
		UpdateAvailable: available,
		RemoteVersion:   rel.Tag,
	}

	if !available {
		return out, nil
	}

	out.Asset = release.SelectAsset(rel.Assets, u.PlatformID)
	if out.Asset == nil {
		return nil, errors.Wrapf(release.ErrNoMatchingAsset, "release %s, platform %s", rel.Tag, u.PlatformID)
	}

	return out, nil
}
