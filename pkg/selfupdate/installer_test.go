package selfupdate

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/gantryhq/gantry/pkg/data"
	"github.com/gantryhq/gantry/pkg/platform"
)

func seed(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, body := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, ioutil.WriteFile(path, []byte(body), 0644))
	}
}

func notRunning(context.Context) (bool, error) { return false, nil }

func testApplyInstaller(t *testing.T) (*Installer, string, string) {
	t.Helper()

	installDir := filepath.Join(t.TempDir(), "gantry")
	stagedDir := t.TempDir()

	seed(t, installDir, map[string]string{
		platform.ExecutableName("gantry"): "old binary",
		"assets/theme.json":               "old theme",
	})

	in := &Installer{
		States:         NewStateStore(filepath.Join(t.TempDir(), "update-check.json")),
		InstallDir:     installDir,
		ExecutableBase: "gantry",
		WaitTimeout:    time.Second,
		running:        notRunning,
	}

	return in, installDir, stagedDir
}

func TestValidate(t *testing.T) {
	in, _, staged := testApplyInstaller(t)

	// empty staging: no executable at all
	err := in.Validate(staged)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	// suspiciously tiny executable
	seed(t, staged, map[string]string{platform.ExecutableName("gantry"): "tiny"})
	err = in.Validate(staged)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	// plausible executable passes
	seed(t, staged, map[string]string{
		platform.ExecutableName("gantry"): strings.Repeat("x", MinExecutableSize),
	})
	assert.NoError(t, in.Validate(staged))
}

func TestApplySuccess(t *testing.T) {
	in, installDir, staged := testApplyInstaller(t)

	require.NoError(t, in.States.Save(&data.UpdateState{
		CurrentVersion:   "1.3.2",
		LastKnownVersion: "1.4.0",
		ConditionalTag:   `"e1"`,
		UpdateAvailable:  true,
	}))

	seed(t, staged, map[string]string{
		platform.ExecutableName("gantry"): "new binary",
		"assets/theme.json":               "new theme",
	})

	err := in.Apply(context.Background(), ApplyOptions{
		StagedDir:     staged,
		NewVersion:    "1.4.0",
		OldExecutable: filepath.Join(installDir, platform.ExecutableName("gantry")),
	})
	require.NoError(t, err)

	got, _ := ioutil.ReadFile(filepath.Join(installDir, platform.ExecutableName("gantry")))
	assert.Equal(t, "new binary", string(got))

	st := in.States.Load()
	assert.Equal(t, "1.4.0", st.CurrentVersion)
	assert.False(t, st.UpdateAvailable)
	assert.Empty(t, st.ConditionalTag)

	// backup cleaned up after success
	siblings, err := filepath.Glob(installDir + ".backup-*")
	require.NoError(t, err)
	assert.Empty(t, siblings)
}

func TestApplyRollsBackOnCopyFailure(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission-based failure injection needs a non-root unix user")
	}

	in, installDir, staged := testApplyInstaller(t)

	require.NoError(t, in.States.Save(&data.UpdateState{CurrentVersion: "1.3.2"}))

	// an unreadable staged file makes the destructive copy fail
	seed(t, staged, map[string]string{
		platform.ExecutableName("gantry"): "new binary",
		"assets/broken.bin":               "unreadable",
	})
	require.NoError(t, os.Chmod(filepath.Join(staged, "assets", "broken.bin"), 0000))
	defer os.Chmod(filepath.Join(staged, "assets", "broken.bin"), 0644)

	err := in.Apply(context.Background(), ApplyOptions{
		StagedDir:     staged,
		NewVersion:    "1.4.0",
		OldExecutable: filepath.Join(installDir, platform.ExecutableName("gantry")),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInstallFailed))

	// backup restored the previous tree
	got, rerr := ioutil.ReadFile(filepath.Join(installDir, platform.ExecutableName("gantry")))
	require.NoError(t, rerr)
	assert.Equal(t, "old binary", string(got))

	// version record still names the old version
	assert.Equal(t, "1.3.2", in.States.Load().CurrentVersion)
}

func TestApplyWaitTimeout(t *testing.T) {
	in, installDir, staged := testApplyInstaller(t)

	in.WaitTimeout = 50 * time.Millisecond
	in.running = func(context.Context) (bool, error) { return true, nil }

	err := in.Apply(context.Background(), ApplyOptions{
		StagedDir:     staged,
		OldExecutable: filepath.Join(installDir, "gantry"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWaitTimeout))
}

func TestWriteScript(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteScript(dir, ScriptOptions{
		OldPID:              4242,
		InstallerExecutable: "/opt/gantry/staged/gantry",
		StagedDir:           "/tmp/gantry-staged",
		InstallDir:          "/opt/gantry",
		NewVersion:          "1.4.0",
		OldExecutable:       "/opt/gantry/gantry",
		Relaunch:            "/opt/gantry/gantry",
	})
	require.NoError(t, err)

	body, err := ioutil.ReadFile(path)
	require.NoError(t, err)

	script := string(body)

	// literal, pre-resolved arguments only
	assert.Contains(t, script, "4242")
	assert.Contains(t, script, "/tmp/gantry-staged")
	assert.Contains(t, script, "/opt/gantry")
	assert.Contains(t, script, "self-install")
	assert.Contains(t, script, "1.4.0")

	if runtime.GOOS == "windows" {
		assert.Contains(t, script, "del")
	} else {
		assert.Contains(t, script, `rm -f -- "$0"`)

		fi, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, fi.Mode()&0111, "script must be executable")
	}
}
