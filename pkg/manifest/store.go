package manifest

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/gantryhq/gantry/pkg/data"
	"github.com/gantryhq/gantry/pkg/lockfile"
)

// Store is the durable ledger of installed packages. Every mutation is
// persisted immediately, so a crash mid-pipeline leaves the ledger
// matching whatever actually completed.
type Store struct {
	logger hclog.Logger

	path string
	root string

	mu      sync.Mutex
	records []data.InstallRecord
}

// NewStore returns a ledger backed by the JSON file at path, tracking
// files relative to the install root.
func NewStore(path, root string) *Store {
	return &Store{path: path, root: root}
}

func (s *Store) L() hclog.Logger {
	if s.logger != nil {
		return s.logger
	}

	s.logger = hclog.L()

	return s.logger
}

func (s *Store) SetLogger(logger hclog.Logger) {
	s.logger = logger
}

// Acquire takes the cross-process writer lock for the ledger file.
func (s *Store) Acquire(ctx context.Context) (func(), error) {
	return lockfile.Take(ctx, s.path+".lock", func() {
		s.L().Debug("waiting on ledger lock", "path", s.path, "holder", lockfile.Holder(s.path+".lock"))
	})
}

// Load reads the ledger. Missing or corrupt storage degrades to an
// empty set; losing the ledger must never brick the launcher.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil

	d, err := ioutil.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.L().Warn("unreadable install ledger, starting empty", "path", s.path, "error", err)
		}

		return nil
	}

	var recs []data.InstallRecord

	if err := json.Unmarshal(d, &recs); err != nil {
		s.L().Warn("corrupt install ledger, starting empty", "path", s.path, "error", err)
		return nil
	}

	s.records = recs

	return nil
}

// save rewrites the ledger file wholesale. Callers hold s.mu.
func (s *Store) save() error {
	d, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrapf(err, "creating ledger directory")
	}

	tmp := s.path + ".tmp"

	if err := ioutil.WriteFile(tmp, d, 0644); err != nil {
		return errors.Wrapf(err, "writing ledger")
	}

	return errors.Wrapf(os.Rename(tmp, s.path), "replacing ledger")
}

// Lookup finds the record for owner/name, case-insensitively.
func (s *Store) Lookup(owner, name string) *data.InstallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookupLocked(owner, name)
}

func (s *Store) lookupLocked(owner, name string) *data.InstallRecord {
	for i := range s.records {
		if s.records[i].Matches(owner, name) {
			rec := s.records[i]
			return &rec
		}
	}

	return nil
}

// Has reports ledger membership for owner/name.
func (s *Store) Has(owner, name string) bool {
	return s.Lookup(owner, name) != nil
}

// Records returns a copy of the full record set.
func (s *Store) Records() []data.InstallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]data.InstallRecord, len(s.records))
	copy(out, s.records)

	return out
}

// Upsert replaces any existing record for the same owner/name and
// persists. With cleanReplace the files tracked by the old record are
// deleted from disk first, so a reinstall does not leave orphans.
func (s *Store) Upsert(rec data.InstallRecord, cleanReplace bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = time.Now().UTC()
	}

	for i := range s.records {
		if !s.records[i].Matches(rec.Owner, rec.Name) {
			continue
		}

		if cleanReplace {
			s.deleteFiles(s.records[i].Files)
		}

		s.records[i] = rec

		return s.save()
	}

	s.records = append(s.records, rec)

	return s.save()
}

// Remove deletes the tracked files that still exist, drops the record,
// and persists. Removing an unknown package is a no-op.
func (s *Store) Remove(owner, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if !s.records[i].Matches(owner, name) {
			continue
		}

		s.deleteFiles(s.records[i].Files)

		s.records = append(s.records[:i], s.records[i+1:]...)

		return s.save()
	}

	return nil
}

func (s *Store) deleteFiles(files []string) {
	for _, rel := range files {
		path := filepath.Join(s.root, rel)

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.L().Warn("unable to remove tracked file", "path", path, "error", err)
		}
	}
}
