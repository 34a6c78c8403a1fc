package selfupdate

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/gantryhq/gantry/pkg/data"
	"github.com/gantryhq/gantry/pkg/version"
)

// CheckInterval is how long a successful check suppresses the next
// automatic one.
const CheckInterval = 5 * time.Minute

// StateStore persists the update-check record, one per installation.
type StateStore struct {
	logger hclog.Logger

	path string
}

func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

func (s *StateStore) L() hclog.Logger {
	if s.logger != nil {
		return s.logger
	}

	s.logger = hclog.L()

	return s.logger
}

func (s *StateStore) SetLogger(logger hclog.Logger) {
	s.logger = logger
}

// Load reads the persisted state. Absent or corrupt files yield the
// zero value; the next check then proceeds as a first run.
func (s *StateStore) Load() *data.UpdateState {
	var st data.UpdateState

	d, err := ioutil.ReadFile(s.path)
	if err != nil {
		return &st
	}

	if err := json.Unmarshal(d, &st); err != nil {
		s.L().Warn("corrupt update-check state, resetting", "path", s.path, "error", err)
		return &data.UpdateState{}
	}

	return &st
}

// Save rewrites the state file wholesale.
func (s *StateStore) Save(st *data.UpdateState) error {
	d, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrapf(err, "creating state directory")
	}

	return errors.Wrapf(ioutil.WriteFile(s.path, d, 0644), "writing update-check state")
}

// ShouldSkip applies the non-manual skip policy: a recent check for the
// same live version, with nothing newer already known, performs no
// network call. Manual checks never skip.
func ShouldSkip(st *data.UpdateState, now time.Time, liveVersion string, manual bool) bool {
	if manual {
		return false
	}

	if now.Sub(st.LastCheckTime) >= CheckInterval {
		return false
	}

	if st.CurrentVersion != liveVersion {
		return false
	}

	return !version.IsNewer(st.LastKnownVersion, liveVersion)
}
