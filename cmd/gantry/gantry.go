package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/pkg/errors"
	"github.com/gantryhq/gantry/pkg/archive"
	"github.com/gantryhq/gantry/pkg/cleanhttp"
	"github.com/gantryhq/gantry/pkg/cmd"
	"github.com/gantryhq/gantry/pkg/config"
	"github.com/gantryhq/gantry/pkg/events"
	"github.com/gantryhq/gantry/pkg/humanize"
	"github.com/gantryhq/gantry/pkg/manifest"
	"github.com/gantryhq/gantry/pkg/platform"
	"github.com/gantryhq/gantry/pkg/progress"
	"github.com/gantryhq/gantry/pkg/registry"
	"github.com/gantryhq/gantry/pkg/release"
	"github.com/gantryhq/gantry/pkg/resolver"
	"github.com/gantryhq/gantry/pkg/selfupdate"
	"github.com/gantryhq/gantry/pkg/transfer"
)

// Version is stamped by the release build.
var Version = "0.1.0"

func main() {
	c := cli.NewCLI("gantry", Version)
	c.Args = os.Args[1:]
	c.HiddenCommands = []string{"self-install"}
	c.Commands = map[string]cli.CommandFactory{
		"status": func() (cli.Command, error) {
			return cmd.New(
				"status",
				"show configuration and installed packages summary",
				statusF,
			), nil
		},
		"check-update": func() (cli.Command, error) {
			return cmd.New(
				"check-update",
				"check the release feed for a newer launcher",
				checkUpdateF,
			), nil
		},
		"update": func() (cli.Command, error) {
			return cmd.New(
				"update",
				"download and install the latest launcher release",
				updateF,
			), nil
		},
		"install": func() (cli.Command, error) {
			return cmd.New(
				"install",
				"install a package and its dependencies",
				installF,
			), nil
		},
		"uninstall": func() (cli.Command, error) {
			return cmd.New(
				"uninstall",
				"remove an installed package",
				uninstallF,
			), nil
		},
		"list": func() (cli.Command, error) {
			return cmd.New(
				"list",
				"list installed packages",
				listF,
			), nil
		},
		"self-install": func() (cli.Command, error) {
			return cmd.New(
				"self-install",
				"apply a staged update (invoked by the update script)",
				selfInstallF,
			), nil
		},
		"debug": func() (cli.Command, error) {
			return cmd.New(
				"debug",
				"dump resolved configuration and ledger state",
				debugF,
			), nil
		},
	}

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}

	os.Exit(exitStatus)
}

func logger(trace bool) hclog.Logger {
	level := hclog.Info

	if trace {
		level = hclog.Trace
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:  "gantry",
		Level: level,
	})
}

func newInstaller(cfg *config.Config, L hclog.Logger) (*resolver.Installer, error) {
	ledger := manifest.NewStore(cfg.ManifestPath(), cfg.ModsDir())
	ledger.SetLogger(L)

	if err := ledger.Load(); err != nil {
		return nil, err
	}

	reg := &registry.Client{
		BaseURL:   cfg.RegistryURL,
		Community: cfg.Community,
	}
	reg.SetLogger(L)

	tm := &transfer.Manager{}
	tm.SetLogger(L)

	ext := &archive.Extractor{BundleSuffix: platform.BundleSuffix()}
	ext.SetLogger(L)

	inst := &resolver.Installer{
		Registry:          reg,
		Transfer:          tm,
		Extract:           ext,
		Ledger:            ledger,
		InstallRoot:       cfg.ModsDir(),
		StagingDir:        cfg.StagingDir(),
		PayloadExtensions: cfg.PayloadExtensions,
	}
	inst.SetLogger(L)

	return inst, nil
}

func splitSpec(spec string) (string, string, error) {
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf("package must be given as owner/name, got %q", spec)
	}

	return parts[0], parts[1], nil
}

func statusF(ctx context.Context, opts struct{}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return errors.Wrapf(err, "unable to create or load configuration")
	}

	fmt.Printf("Install Dir: %s\n", cfg.InstallDir)
	fmt.Printf("Content Dir: %s\n", cfg.ModsDir())
	fmt.Printf("Release Feed: %s\n", cfg.FeedRepo)
	fmt.Printf("Registry: %s (community %s)\n", cfg.RegistryURL, cfg.Community)

	ledger := manifest.NewStore(cfg.ManifestPath(), cfg.ModsDir())
	if err := ledger.Load(); err != nil {
		return err
	}

	fmt.Printf("Installed Packages: %d\n", len(ledger.Records()))

	var used int64

	filepath.Walk(cfg.ModsDir(), func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			used += info.Size()
		}

		return nil
	})

	fmt.Printf("Content Disk Usage: %s\n", humanize.Bytes(used))

	return nil
}

func checkUpdateF(ctx context.Context, opts struct {
	Cached bool `long:"cached" description:"honor the recent-check window instead of forcing a feed request"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	L := logger(false)

	platID, err := platform.Identify()
	if err != nil {
		return err
	}

	fetcher := &release.Fetcher{
		BaseURL: "https://api.github.com",
		Token:   cfg.AuthToken,
	}
	fetcher.SetLogger(L)

	up := &selfupdate.Updater{
		Fetcher:        fetcher,
		States:         selfupdate.NewStateStore(cfg.UpdateStatePath()),
		Repo:           cfg.FeedRepo,
		CurrentVersion: Version,
		PlatformID:     platID,
	}
	up.SetLogger(L)

	out, err := up.Check(ctx, !opts.Cached)
	if err != nil {
		return err
	}

	if out.Skipped {
		fmt.Println("Using cached result from the last check.")
	}

	if out.UpdateAvailable {
		fmt.Printf("Update available: %s (current %s)\n", out.RemoteVersion, Version)
	} else {
		fmt.Printf("Launcher is up to date (%s).\n", Version)
	}

	return nil
}

func updateF(ctx context.Context, opts struct {
	Yes bool `short:"y" long:"yes" description:"install without asking for confirmation"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	L := logger(false)

	platID, err := platform.Identify()
	if err != nil {
		return err
	}

	fetcher := &release.Fetcher{
		BaseURL: "https://api.github.com",
		Token:   cfg.AuthToken,
	}
	fetcher.SetLogger(L)

	states := selfupdate.NewStateStore(cfg.UpdateStatePath())
	states.SetLogger(L)

	up := &selfupdate.Updater{
		Fetcher:        fetcher,
		States:         states,
		Repo:           cfg.FeedRepo,
		CurrentVersion: Version,
		PlatformID:     platID,
	}
	up.SetLogger(L)

	out, err := up.Check(ctx, true)
	if err != nil {
		return err
	}

	if !out.UpdateAvailable {
		fmt.Printf("Launcher is up to date (%s).\n", Version)
		return nil
	}

	bus := events.NewBus()
	go answerPrompts(bus, opts.Yes)
	go printStatus(bus)

	ok, err := bus.Confirm(ctx, "Update available",
		fmt.Sprintf("Install launcher %s (current %s)?", out.RemoteVersion, Version))
	if err != nil {
		return err
	}

	if !ok {
		fmt.Println("Update declined.")
		return nil
	}

	tm := &transfer.Manager{Client: cleanhttp.DownloadClient}
	tm.SetLogger(L)

	inst := &selfupdate.Installer{
		Transfer:       tm,
		Extract:        &archive.Extractor{BundleSuffix: platform.BundleSuffix()},
		States:         states,
		Bus:            bus,
		InstallDir:     cfg.InstallDir,
		ExecutableBase: "gantry",
	}
	inst.SetLogger(L)

	archivePath, err := inst.Download(ctx, out.Asset.DownloadURL, cfg.StagingDir())
	if err != nil {
		return err
	}

	defer os.Remove(archivePath)

	stagedDir := filepath.Join(cfg.StagingDir(), "update-"+out.RemoteVersion)

	if err := inst.Stage(archivePath, stagedDir); err != nil {
		return err
	}

	if err := inst.Validate(stagedDir); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return err
	}

	stagedExe := filepath.Join(stagedDir, platform.ExecutableName("gantry"))

	script, err := selfupdate.WriteScript(cfg.StagingDir(), selfupdate.ScriptOptions{
		OldPID:              os.Getpid(),
		InstallerExecutable: stagedExe,
		StagedDir:           stagedDir,
		InstallDir:          cfg.InstallDir,
		NewVersion:          out.RemoteVersion,
		OldExecutable:       exe,
		Relaunch:            exe,
	})
	if err != nil {
		return err
	}

	if err := selfupdate.Launch(script); err != nil {
		return err
	}

	fmt.Println("Update staged; the launcher will restart to finish installing.")

	// the script waits for this process to exit before touching files
	return nil
}

// selfInstallF runs inside the staged binary after the old launcher
// exited. The handoff script passes every path on the command line.
func selfInstallF(ctx context.Context, opts struct {
	Staged     string `long:"staged" description:"staged update directory" required:"true"`
	InstallDir string `long:"install-dir" description:"installation directory to replace" required:"true"`
	NewVersion string `long:"new-version" description:"version being installed" required:"true"`
	OldExe     string `long:"old-exe" description:"path of the replaced executable" required:"true"`
	Relaunch   string `long:"relaunch" description:"executable to start after a successful install"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	L := logger(false)

	inst := &selfupdate.Installer{
		Extract:        &archive.Extractor{BundleSuffix: platform.BundleSuffix()},
		States:         selfupdate.NewStateStore(cfg.UpdateStatePath()),
		InstallDir:     opts.InstallDir,
		ExecutableBase: "gantry",
	}
	inst.SetLogger(L)

	err = inst.Apply(ctx, selfupdate.ApplyOptions{
		StagedDir:     opts.Staged,
		NewVersion:    opts.NewVersion,
		OldExecutable: opts.OldExe,
		Relaunch:      opts.Relaunch,
	})
	if err != nil {
		return err
	}

	os.RemoveAll(opts.Staged)

	return nil
}

func installF(ctx context.Context, opts struct {
	Trace bool `long:"trace" description:"log in trace mode"`
}, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: gantry install <owner/name>")
	}

	owner, name, err := splitSpec(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	L := logger(opts.Trace)

	inst, err := newInstaller(cfg, L)
	if err != nil {
		return err
	}

	cleanup, err := inst.Ledger.Acquire(ctx)
	if err != nil {
		return err
	}

	defer cleanup()

	bar := progress.Count(ctx, 100, owner+"/"+name)
	defer bar.Close()

	inst.Progress = func(pct int, counters string) {
		bar.Set(int64(pct))
		bar.On(counters)
	}

	rec, err := inst.Install(ctx, owner, name)
	if err != nil {
		return err
	}

	fmt.Printf("Installed %s/%s %s (%d files, %d dependencies)\n",
		rec.Owner, rec.Name, rec.Version, len(rec.Files), len(rec.Dependencies))

	return nil
}

func uninstallF(ctx context.Context, opts struct{}, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: gantry uninstall <owner/name>")
	}

	owner, name, err := splitSpec(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	inst, err := newInstaller(cfg, logger(false))
	if err != nil {
		return err
	}

	cleanup, err := inst.Ledger.Acquire(ctx)
	if err != nil {
		return err
	}

	defer cleanup()

	if !inst.Ledger.Has(owner, name) {
		return errors.Errorf("%s/%s is not installed", owner, name)
	}

	if err := inst.Uninstall(ctx, owner, name); err != nil {
		return err
	}

	fmt.Printf("Removed %s/%s\n", owner, name)

	return nil
}

func listF(ctx context.Context, opts struct{}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	ledger := manifest.NewStore(cfg.ManifestPath(), cfg.ModsDir())
	if err := ledger.Load(); err != nil {
		return err
	}

	recs := ledger.Records()
	if len(recs) == 0 {
		fmt.Println("No packages installed.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 4, 2, 1, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "PACKAGE\tVERSION\tFILES\tINSTALLED\n")

	for _, rec := range recs {
		fmt.Fprintf(tw, "%s/%s\t%s\t%d\t%s\n",
			rec.Owner, rec.Name, rec.Version, len(rec.Files),
			rec.InstalledAt.Local().Format("2006-01-02 15:04"))
	}

	return nil
}

func debugF(ctx context.Context, opts struct{}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	spew.Dump(cfg)

	ledger := manifest.NewStore(cfg.ManifestPath(), cfg.ModsDir())
	if err := ledger.Load(); err != nil {
		return err
	}

	var total int

	for _, rec := range ledger.Records() {
		spew.Dump(rec)
		total += len(rec.Files)
	}

	fmt.Printf("%d records, %d tracked files\n", len(ledger.Records()), total)

	return nil
}

// answerPrompts services confirmation requests on the terminal.
func answerPrompts(bus *events.Bus, assumeYes bool) {
	rd := bufio.NewReader(os.Stdin)

	for req := range bus.Requests() {
		if assumeYes {
			req.Respond(true)
			continue
		}

		fmt.Printf("%s\n%s [y/N]: ", req.Title, req.Message)

		line, err := rd.ReadString('\n')
		if err != nil {
			req.Respond(false)
			continue
		}

		answer := strings.ToLower(strings.TrimSpace(line))
		req.Respond(answer == "y" || answer == "yes")
	}
}

// printStatus mirrors pipeline progress onto the terminal.
func printStatus(bus *events.Bus) {
	for st := range bus.StatusEvents() {
		if st.Text == "" {
			fmt.Printf("[%3d%%] %s\n", st.Percent, st.Stage)
			continue
		}

		fmt.Printf("[%3d%%] %s: %s\n", st.Percent, st.Stage, st.Text)
	}
}
