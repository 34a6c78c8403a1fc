package selfupdate

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/gantryhq/gantry/pkg/archive"
	"github.com/gantryhq/gantry/pkg/events"
	"github.com/gantryhq/gantry/pkg/fileutils"
	"github.com/gantryhq/gantry/pkg/platform"
	"github.com/gantryhq/gantry/pkg/transfer"
)

// Stage names for the update pipeline, published to the UI bus.
type Stage string

const (
	StageIdle            Stage = "Idle"
	StageChecking        Stage = "Checking"
	StageUpToDate        Stage = "UpToDate"
	StageUpdateAvailable Stage = "UpdateAvailable"
	StageDownloading     Stage = "Downloading"
	StageExtracting      Stage = "Extracting"
	StageValidating      Stage = "Validating"
	StageInstalling      Stage = "Installing"
	StageCompleted       Stage = "Completed"
	StageRolledBack      Stage = "RolledBack"
)

var (
	// ErrValidation means the staged tree failed the post-extraction
	// sanity check. Nothing destructive has happened yet.
	ErrValidation = errors.New("staged update failed validation")

	// ErrInstallFailed means the destructive copy step failed and the
	// previous installation was restored from backup.
	ErrInstallFailed = errors.New("update install failed, previous version restored")

	// ErrRollbackFailed is the unrecoverable case: the install failed
	// AND the backup could not be restored. Manual intervention.
	ErrRollbackFailed = errors.New("update install failed and rollback failed; manual repair required")

	// ErrWaitTimeout means the old process never exited.
	ErrWaitTimeout = errors.New("timed out waiting for launcher to exit")
)

// MinExecutableSize rejects suspiciously tiny staged binaries as
// corrupt downloads.
const MinExecutableSize = 64 * 1024

const defaultWaitTimeout = 2 * time.Minute

// Installer applies a staged update to the installation directory with
// backup and rollback.
type Installer struct {
	logger hclog.Logger

	Transfer *transfer.Manager
	Extract  *archive.Extractor
	States   *StateStore
	Bus      *events.Bus

	// InstallDir is the launcher's installation root.
	InstallDir string

	// ExecutableBase is the primary executable name without platform
	// suffix, eg "gantry".
	ExecutableBase string

	WaitTimeout time.Duration

	// running overrides the process probe in tests.
	running func(ctx context.Context) (bool, error)
}

func (in *Installer) L() hclog.Logger {
	if in.logger != nil {
		return in.logger
	}

	in.logger = hclog.L()

	return in.logger
}

func (in *Installer) SetLogger(logger hclog.Logger) {
	in.logger = logger
}

func (in *Installer) publish(stage Stage, percent int, text string) {
	if in.Bus == nil {
		return
	}

	in.Bus.Publish(events.Status{Stage: string(stage), Percent: percent, Text: text})
}

// Download stages the release asset into dir and returns the archive
// path.
func (in *Installer) Download(ctx context.Context, url, dir string) (string, error) {
	in.publish(StageDownloading, 0, "downloading update")

	dest := filepath.Join(dir, "update"+archive.Suffix(url))

	_, err := in.Transfer.Download(ctx, url, dest, func(pct int, counters string) {
		in.publish(StageDownloading, pct, counters)
	})
	if err != nil {
		return "", err
	}

	return dest, nil
}

// Stage extracts the downloaded archive into a staging directory.
func (in *Installer) Stage(archivePath, stagedDir string) error {
	in.publish(StageExtracting, 0, "extracting update")

	if err := os.MkdirAll(stagedDir, 0755); err != nil {
		return errors.Wrapf(err, "creating staging directory")
	}

	return in.Extract.Extract(archivePath, stagedDir)
}

// Validate checks that the staged tree holds a plausible primary
// executable before anything destructive runs.
func (in *Installer) Validate(stagedDir string) error {
	in.publish(StageValidating, 0, "validating update")

	exe := filepath.Join(stagedDir, platform.ExecutableName(in.ExecutableBase))

	fi, err := os.Stat(exe)
	if err != nil {
		return errors.Wrapf(ErrValidation, "missing executable %s", exe)
	}

	if fi.Size() < MinExecutableSize {
		return errors.Wrapf(ErrValidation, "executable %s is only %d bytes", exe, fi.Size())
	}

	return nil
}

// ApplyOptions parameterize the destructive install step. All paths
// are absolute and pre-resolved; the step runs in a fresh process
// after the old launcher exited.
type ApplyOptions struct {
	StagedDir  string
	NewVersion string

	// OldExecutable is the running launcher's executable path; its
	// process is waited on before files are touched.
	OldExecutable string

	// Relaunch, when set, is started detached after a successful
	// apply.
	Relaunch string
}

// Apply performs the install: wait for the old process, back up the
// current tree, overwrite it with the staged tree, roll back from the
// backup when the overwrite fails, persist the new version and
// relaunch on success.
func (in *Installer) Apply(ctx context.Context, opts ApplyOptions) error {
	in.publish(StageInstalling, 0, "waiting for launcher to exit")

	if err := in.waitForExit(ctx, opts.OldExecutable); err != nil {
		return err
	}

	backupDir := in.InstallDir + ".backup-" + time.Now().Format("20060102-150405")

	in.publish(StageInstalling, 25, "backing up current installation")

	backup := &fileutils.TreeCopy{
		Ctx:  ctx,
		L:    in.L(),
		Src:  in.InstallDir,
		Dest: backupDir,
	}

	if _, err := backup.Run(); err != nil {
		// incomplete backup: abort while nothing has been touched
		os.RemoveAll(backupDir)
		return errors.Wrapf(err, "backup incomplete, update aborted")
	}

	in.publish(StageInstalling, 50, "applying update")

	apply := &fileutils.TreeCopy{
		Ctx:  ctx,
		L:    in.L(),
		Src:  opts.StagedDir,
		Dest: in.InstallDir,
	}

	if _, err := apply.Run(); err != nil {
		in.L().Error("apply failed, restoring backup", "error", err)

		return in.rollback(ctx, backupDir, err)
	}

	st := in.States.Load()
	st.CurrentVersion = opts.NewVersion
	st.LastKnownVersion = opts.NewVersion
	st.UpdateAvailable = false
	st.ConditionalTag = ""

	if err := in.States.Save(st); err != nil {
		return err
	}

	os.RemoveAll(backupDir)

	in.publish(StageCompleted, 100, "update installed")

	if opts.Relaunch != "" {
		if err := in.relaunch(opts.Relaunch); err != nil {
			// the update itself landed; a failed relaunch is only
			// logged, the user can start the launcher by hand
			in.L().Error("unable to relaunch", "path", opts.Relaunch, "error", err)
		}
	}

	return nil
}

func (in *Installer) rollback(ctx context.Context, backupDir string, cause error) error {
	restore := &fileutils.TreeCopy{
		Ctx:  ctx,
		L:    in.L(),
		Src:  backupDir,
		Dest: in.InstallDir,
	}

	if _, rerr := restore.Run(); rerr != nil {
		in.L().Error("rollback failed", "backup", backupDir, "error", rerr)
		return errors.Wrapf(ErrRollbackFailed, "install: %s; rollback: %s", cause, rerr)
	}

	in.publish(StageRolledBack, 0, "previous version restored")

	// keep the backup around for manual inspection
	return errors.Wrapf(ErrInstallFailed, "%s (backup kept at %s)", cause, backupDir)
}

// waitForExit polls until no process with the old executable's name
// other than ourselves is running.
func (in *Installer) waitForExit(ctx context.Context, oldExecutable string) error {
	timeout := in.WaitTimeout
	if timeout == 0 {
		timeout = defaultWaitTimeout
	}

	deadline := time.Now().Add(timeout)

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		running, err := in.isRunning(ctx, oldExecutable)
		if err != nil {
			return err
		}

		if !running {
			return nil
		}

		if time.Now().After(deadline) {
			return errors.Wrapf(ErrWaitTimeout, "%s", oldExecutable)
		}

		select {
		case <-tick.C:
			// poll again
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (in *Installer) isRunning(ctx context.Context, oldExecutable string) (bool, error) {
	if in.running != nil {
		return in.running(ctx)
	}

	name := filepath.Base(oldExecutable)
	self := int32(os.Getpid())

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, errors.Wrapf(err, "listing processes")
	}

	for _, p := range procs {
		if p.Pid == self {
			continue
		}

		pn, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}

		if strings.EqualFold(pn, name) {
			return true, nil
		}
	}

	return false, nil
}

func (in *Installer) relaunch(path string) error {
	cmd := exec.Command(path)
	cmd.Dir = filepath.Dir(path)

	return errors.Wrapf(cmd.Start(), "starting %s", path)
}
