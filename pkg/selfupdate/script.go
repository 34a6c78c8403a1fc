package selfupdate

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
)

// ScriptOptions carry the literal, pre-resolved paths baked into the
// handoff script. The script owns nothing else: it waits for the old
// process, hands the heavy lifting to the staged binary's installer
// entrypoint, and deletes itself.
type ScriptOptions struct {
	// OldPID is the launcher process the script waits on.
	OldPID int

	// InstallerExecutable is the staged binary invoked with the
	// self-install command.
	InstallerExecutable string

	StagedDir  string
	InstallDir string
	NewVersion string

	// OldExecutable is the path of the running launcher binary.
	OldExecutable string

	// Relaunch is the executable started after a successful apply.
	Relaunch string
}

// WriteScript emits the platform-native handoff script into dir and
// returns its path. The current process must exit right after
// launching it so the installer is free to replace open files.
func WriteScript(dir string, opts ScriptOptions) (string, error) {
	var (
		name string
		body string
		mode os.FileMode
	)

	if runtime.GOOS == "windows" {
		name = "gantry-update.bat"
		body = batchScript(opts)
		mode = 0644
	} else {
		name = "gantry-update.sh"
		body = shellScript(opts)
		mode = 0755
	}

	path := filepath.Join(dir, name)

	if err := ioutil.WriteFile(path, []byte(body), mode); err != nil {
		return "", errors.Wrapf(err, "writing update script")
	}

	return path, nil
}

func shellScript(opts ScriptOptions) string {
	return fmt.Sprintf(`#!/bin/sh
# generated by gantry; self-deletes after running
while kill -0 %d 2>/dev/null; do sleep 1; done
%q self-install --staged %q --install-dir %q --new-version %q --old-exe %q --relaunch %q
rm -f -- "$0"
`,
		opts.OldPID,
		opts.InstallerExecutable,
		opts.StagedDir,
		opts.InstallDir,
		opts.NewVersion,
		opts.OldExecutable,
		opts.Relaunch,
	)
}

func batchScript(opts ScriptOptions) string {
	return fmt.Sprintf(`@echo off
rem generated by gantry; self-deletes after running
:wait
tasklist /FI "PID eq %d" 2>nul | find "%d" >nul
if not errorlevel 1 (
  timeout /t 1 /nobreak >nul
  goto wait
)
"%s" self-install --staged "%s" --install-dir "%s" --new-version "%s" --old-exe "%s" --relaunch "%s"
(goto) 2>nul & del "%%~f0"
`,
		opts.OldPID,
		opts.OldPID,
		opts.InstallerExecutable,
		opts.StagedDir,
		opts.InstallDir,
		opts.NewVersion,
		opts.OldExecutable,
		opts.Relaunch,
	)
}

// Launch starts the handoff script detached from the current process.
func Launch(script string) error {
	var cmd *exec.Cmd

	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd", "/c", script)
	} else {
		cmd = exec.Command("/bin/sh", script)
	}

	cmd.Dir = filepath.Dir(script)

	return errors.Wrapf(cmd.Start(), "launching update script")
}
