package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nsforge/nslaunch/config"
	"github.com/nsforge/nslaunch/pkg/forkexec"
)

type runFlags struct {
	profile      string
	namespaces   []string
	pivotRoot    string
	putOld       string
	unmountOld   bool
	chroot       string
	daemonize    bool
	deathSignal  string
	sigchld      bool
	workdir      string
	hostname     string
	env          []string
	binds        []string
	tmpfs        []string
	proc         bool
	defaultBinds bool
	skipMissing  bool
	verbose      bool
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [flags] -- program [args...]",
		Short: "run a program inside the configured environment",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(&f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.profile, "profile", "", "YAML launch profile, overridden by the other flags")
	fl.StringSliceVar(&f.namespaces, "unshare", nil, "namespaces to unshare (mount,uts,ipc,user,pid,net)")
	fl.StringVar(&f.pivotRoot, "pivot-root", "", "new root for pivot_root, must be absolute")
	fl.StringVar(&f.putOld, "put-old", "", "where the old root is moved, must be under the new root")
	fl.BoolVar(&f.unmountOld, "unmount-old", false, "detach the old root after pivot_root")
	fl.StringVar(&f.chroot, "chroot", "", "chroot dir, applied after pivot_root")
	fl.BoolVar(&f.daemonize, "daemonize", false, "allow the child to outlive this process")
	fl.StringVar(&f.deathSignal, "death-signal", "", "signal sent to the child when this process dies (default SIGKILL)")
	fl.BoolVar(&f.sigchld, "sigchld", false, "enable SIGCHLD delivery for the child")
	fl.StringVar(&f.workdir, "workdir", "", "working directory after the root transition")
	fl.StringVar(&f.hostname, "hostname", "", "hostname inside an unshared uts namespace")
	fl.StringArrayVar(&f.env, "env", nil, "environment entries VAR=value (default: inherit)")
	fl.StringArrayVar(&f.binds, "bind", nil, "bind mount source:target[:ro]")
	fl.StringArrayVar(&f.tmpfs, "tmpfs", nil, "tmpfs mount target[:data]")
	fl.BoolVar(&f.proc, "proc", false, "mount proc (with an unshared pid namespace)")
	fl.BoolVar(&f.defaultBinds, "default-mounts", false, "bind the minimal read-only rootfs into the new root")
	fl.BoolVar(&f.skipMissing, "skip-missing-binds", false, "skip bind mounts with missing sources")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func runLaunch(f *runFlags, args []string) error {
	logger, err := newLogger(f.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, err := buildProfile(f)
	if err != nil {
		logger.Error("invalid launch configuration", zap.Error(err))
		return err
	}

	env := p.Env
	if len(env) == 0 {
		env = os.Environ()
		p.Env = env
	}

	r, err := p.Runner(args, f.skipMissing)
	if err != nil {
		logger.Error("building launch plan failed", zap.Error(err))
		return err
	}

	sig, hasSig := r.Isolation.ParentDeathSignal()
	logger.Debug("starting child",
		zap.Strings("args", args),
		zap.Strings("namespaces", p.Namespaces),
		zap.Bool("pivot_root", p.PivotRoot != nil),
		zap.String("chroot", p.Chroot),
		zap.Bool("daemonize", !hasSig),
		zap.Int("death_signal", int(sig)),
		zap.Bool("sigchld", r.Isolation.ChildSignalEnabled()),
		zap.Int("mounts", len(r.Mounts)),
		zap.Int("rlimits", len(r.RLimits)),
	)

	pid, err := r.Start()
	if err != nil {
		logger.Error("launch failed", zap.Error(err))
		return err
	}
	logger.Debug("child started", zap.Int("pid", pid))

	ws, err := forkexec.Wait(pid)
	if err != nil {
		logger.Error("wait failed", zap.Int("pid", pid), zap.Error(err))
		return err
	}

	switch {
	case ws.Exited():
		logger.Debug("child exited", zap.Int("pid", pid), zap.Int("status", ws.ExitStatus()))
		logger.Sync()
		os.Exit(ws.ExitStatus())
	case ws.Signaled():
		logger.Info("child terminated by signal", zap.Int("pid", pid), zap.String("signal", ws.Signal().String()))
		logger.Sync()
		os.Exit(128 + int(ws.Signal()))
	}
	return nil
}

// buildProfile merges the optional profile file with the flags; flags win
func buildProfile(f *runFlags) (*config.Profile, error) {
	p := &config.Profile{}
	if f.profile != "" {
		loaded, err := config.Load(f.profile)
		if err != nil {
			return nil, err
		}
		p = loaded
	}

	if len(f.namespaces) > 0 {
		p.Namespaces = f.namespaces
	}
	if f.pivotRoot != "" || f.putOld != "" {
		p.PivotRoot = &config.PivotProfile{
			NewRoot:    f.pivotRoot,
			PutOld:     f.putOld,
			UnmountOld: f.unmountOld,
		}
	}
	if f.chroot != "" {
		p.Chroot = f.chroot
	}
	if f.daemonize {
		p.Daemonize = true
	}
	if f.deathSignal != "" {
		p.DeathSignal = f.deathSignal
	}
	if f.sigchld {
		p.EnableSigchld = true
	}
	if f.workdir != "" {
		p.WorkDir = f.workdir
	}
	if f.hostname != "" {
		p.HostName = f.hostname
	}
	if len(f.env) > 0 {
		p.Env = f.env
	}

	for _, b := range f.binds {
		m, err := parseBind(b)
		if err != nil {
			return nil, err
		}
		p.Mounts = append(p.Mounts, m)
	}
	for _, tm := range f.tmpfs {
		target, data := tm, ""
		if i := strings.IndexByte(tm, ':'); i >= 0 {
			target, data = tm[:i], tm[i+1:]
		}
		p.Mounts = append(p.Mounts, config.MountProfile{Type: "tmpfs", Target: target, Data: data})
	}
	if f.proc {
		p.Mounts = append(p.Mounts, config.MountProfile{Type: "proc"})
	}
	if f.defaultBinds {
		p.DefaultMounts = true
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// parseBind parses source:target[:ro]
func parseBind(s string) (config.MountProfile, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		return config.MountProfile{Type: "bind", Source: parts[0], Target: parts[1]}, nil
	case 3:
		if parts[2] != "ro" && parts[2] != "rw" {
			break
		}
		return config.MountProfile{Type: "bind", Source: parts[0], Target: parts[1], ReadOnly: parts[2] == "ro"}, nil
	}
	return config.MountProfile{}, fmt.Errorf("invalid bind mount %q, want source:target[:ro]", s)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableCaller = true
	return cfg.Build()
}
