package manifest

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/gantryhq/gantry/pkg/data"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()

	root := t.TempDir()

	s := NewStore(filepath.Join(root, "state", "installed.json"), root)
	require.NoError(t, s.Load())

	return s, root
}

func TestStoreRoundTrip(t *testing.T) {
	s, root := testStore(t)

	recs := []data.InstallRecord{
		{
			Owner:        "Smokestack",
			Name:         "CoreLib",
			Version:      "2.1.0",
			InstalledAt:  time.Date(2021, 4, 2, 10, 0, 0, 0, time.UTC),
			Digest:       "abc123",
			Files:        []string{"plugins/corelib.dll"},
			Dependencies: []string{"Smokestack-Base-1.0.0"},
		},
		{
			Owner:       "night",
			Name:        "maplight",
			Version:     "0.3.1",
			InstalledAt: time.Date(2021, 5, 9, 18, 30, 0, 0, time.UTC),
			Files:       []string{"plugins/maplight.dll", "plugins/maplight.cfg"},
		},
	}

	for _, r := range recs {
		require.NoError(t, s.Upsert(r, false))
	}

	reloaded := NewStore(filepath.Join(root, "state", "installed.json"), root)
	require.NoError(t, reloaded.Load())

	assert.Equal(t, recs, reloaded.Records())
}

func TestStoreLookupCaseInsensitive(t *testing.T) {
	s, _ := testStore(t)

	require.NoError(t, s.Upsert(data.InstallRecord{Owner: "Smokestack", Name: "CoreLib", Version: "1.0.0"}, false))

	got := s.Lookup("smokestack", "corelib")
	require.NotNil(t, got)
	assert.Equal(t, "1.0.0", got.Version)

	assert.True(t, s.Has("SMOKESTACK", "CORELIB"))
	assert.False(t, s.Has("smokestack", "other"))
}

func TestStoreUpsertCleanReplace(t *testing.T) {
	s, root := testStore(t)

	old := filepath.Join(root, "plugins", "mod-old.dll")
	require.NoError(t, os.MkdirAll(filepath.Dir(old), 0755))
	require.NoError(t, ioutil.WriteFile(old, []byte("old"), 0644))

	require.NoError(t, s.Upsert(data.InstallRecord{
		Owner: "o", Name: "mod", Version: "1.0.0",
		Files: []string{filepath.Join("plugins", "mod-old.dll")},
	}, false))

	require.NoError(t, s.Upsert(data.InstallRecord{
		Owner: "o", Name: "mod", Version: "2.0.0",
		Files: []string{filepath.Join("plugins", "mod-new.dll")},
	}, true))

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err), "clean replace removes old files")

	require.Len(t, s.Records(), 1)
	assert.Equal(t, "2.0.0", s.Records()[0].Version)
}

func TestStoreRemove(t *testing.T) {
	s, root := testStore(t)

	f := filepath.Join(root, "plugins", "gone.dll")
	require.NoError(t, os.MkdirAll(filepath.Dir(f), 0755))
	require.NoError(t, ioutil.WriteFile(f, []byte("x"), 0644))

	require.NoError(t, s.Upsert(data.InstallRecord{
		Owner: "o", Name: "gone", Version: "1.0.0",
		Files: []string{filepath.Join("plugins", "gone.dll"), filepath.Join("plugins", "never-existed.dll")},
	}, false))

	require.NoError(t, s.Remove("O", "GONE"))

	_, err := os.Stat(f)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, s.Records())

	// removing again is a no-op
	require.NoError(t, s.Remove("o", "gone"))
}

func TestStoreCorruptFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "installed.json")

	require.NoError(t, ioutil.WriteFile(path, []byte("{not json"), 0644))

	s := NewStore(path, root)
	require.NoError(t, s.Load())
	assert.Empty(t, s.Records())
}

func TestStorePersistsEachMutation(t *testing.T) {
	s, root := testStore(t)

	require.NoError(t, s.Upsert(data.InstallRecord{Owner: "o", Name: "a", Version: "1.0.0"}, false))

	// a second store sees the write immediately
	other := NewStore(filepath.Join(root, "state", "installed.json"), root)
	require.NoError(t, other.Load())
	assert.Len(t, other.Records(), 1)
}
