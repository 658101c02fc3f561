// Package config loads declarative launch profiles from YAML and
// materializes them into the validated launch plan with its mount,
// rlimit and seccomp companions.
package config

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/nsforge/nslaunch/pkg/launch"
	"github.com/nsforge/nslaunch/pkg/mount"
	"github.com/nsforge/nslaunch/pkg/rlimit"
	"github.com/nsforge/nslaunch/pkg/seccomp"
)

// Profile is one declarative launch description. Profile input is
// runtime data, so every shape problem surfaces as an error from Load /
// Parse; the panicking launch surface is only reached after validation.
type Profile struct {
	Namespaces []string      `yaml:"namespaces"`
	PivotRoot  *PivotProfile `yaml:"pivot_root"`
	Chroot     string        `yaml:"chroot"`

	// Daemonize clears the parent death signal; otherwise DeathSignal
	// (default SIGKILL) is registered for the child
	Daemonize   bool   `yaml:"daemonize"`
	DeathSignal string `yaml:"death_signal"`

	// EnableSigchld turns on SIGCHLD delivery for the child, which is
	// disabled by default
	EnableSigchld bool `yaml:"enable_sigchld"`

	WorkDir    string   `yaml:"workdir"`
	Env        []string `yaml:"env"`
	HostName   string   `yaml:"hostname"`
	DomainName string   `yaml:"domainname"`

	// DefaultMounts prepends the minimal read-only rootfs binds to
	// Mounts, for pivoted roots that still need the host toolchain
	DefaultMounts bool            `yaml:"default_mounts"`
	Mounts        []MountProfile  `yaml:"mounts"`
	RLimits       *RLimitProfile  `yaml:"rlimits"`
	Seccomp       *SeccompProfile `yaml:"seccomp"`
}

// PivotProfile mirrors launch.Pivot
type PivotProfile struct {
	NewRoot    string `yaml:"new_root"`
	PutOld     string `yaml:"put_old"`
	UnmountOld bool   `yaml:"unmount_old"`
}

// MountProfile is one mount of the plan; Type is bind, tmpfs or proc
type MountProfile struct {
	Type     string `yaml:"type"`
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
	Data     string `yaml:"data"`
	ReadOnly bool   `yaml:"readonly"`
}

// RLimitProfile mirrors rlimit.RLimits
type RLimitProfile struct {
	CPU          uint64 `yaml:"cpu"`
	CPUHard      uint64 `yaml:"cpu_hard"`
	Data         uint64 `yaml:"data"`
	FileSize     uint64 `yaml:"file_size"`
	Stack        uint64 `yaml:"stack"`
	AddressSpace uint64 `yaml:"address_space"`
	OpenFile     uint64 `yaml:"open_file"`
	DisableCore  bool   `yaml:"disable_core"`
}

// SeccompProfile mirrors seccomp.Policy; Default is allow, errno or kill
type SeccompProfile struct {
	Default   string   `yaml:"default"`
	Allow     []string `yaml:"allow"`
	Errno     []string `yaml:"errno"`
	Kill      []string `yaml:"kill"`
	ErrnoCode int16    `yaml:"errno_code"`
}

// Load reads and validates a profile file
func Load(path string) (*Profile, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(buf)
}

// Parse decodes and validates a profile document
func Parse(buf []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(buf, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks everything the launch surface would otherwise panic
// on, plus the profile-only enumerations
func (p *Profile) Validate() error {
	for _, name := range p.Namespaces {
		if _, err := parseNamespace(name); err != nil {
			return err
		}
	}
	if p.PivotRoot != nil {
		if err := launch.CheckPivotRoot(p.PivotRoot.NewRoot, p.PivotRoot.PutOld); err != nil {
			return err
		}
	}
	if p.Chroot != "" {
		if err := launch.CheckChrootDir(p.Chroot); err != nil {
			return err
		}
	}
	if p.DeathSignal != "" {
		if _, err := parseSignal(p.DeathSignal); err != nil {
			return err
		}
	}
	for _, m := range p.Mounts {
		switch m.Type {
		case "bind":
			if m.Source == "" || m.Target == "" {
				return fmt.Errorf("config: bind mount needs source and target")
			}
		case "tmpfs":
			if m.Target == "" {
				return fmt.Errorf("config: tmpfs mount needs a target")
			}
		case "proc":
		default:
			return fmt.Errorf("config: unknown mount type %q", m.Type)
		}
	}
	if p.Seccomp != nil {
		switch p.Seccomp.Default {
		case "", "allow", "errno", "kill":
		default:
			return fmt.Errorf("config: unknown seccomp default %q", p.Seccomp.Default)
		}
	}
	return nil
}

// Launch materializes the core launch plan. The profile must have been
// validated (Load and Parse always do).
func (p *Profile) Launch() *launch.Config {
	c := launch.New()
	for _, name := range p.Namespaces {
		ns, _ := parseNamespace(name)
		c.Unshare(ns)
	}
	if p.PivotRoot != nil {
		c.PivotRoot(p.PivotRoot.NewRoot, p.PivotRoot.PutOld, p.PivotRoot.UnmountOld)
	}
	if p.Chroot != "" {
		c.ChrootDir(p.Chroot)
	}
	if p.Daemonize {
		c.AllowDaemonize()
	} else if p.DeathSignal != "" {
		sig, _ := parseSignal(p.DeathSignal)
		c.SetParentDeathSignal(sig)
	}
	if p.EnableSigchld {
		c.EnableChildSignal()
	}
	return c
}

// MountParams builds the mount plan of the profile
func (p *Profile) MountParams(skipNotExists bool) ([]mount.SyscallParams, error) {
	b := mount.NewBuilder()
	if p.DefaultMounts {
		b.WithMounts(mount.DefaultMounts)
	}
	for _, m := range p.Mounts {
		switch m.Type {
		case "bind":
			b.WithBind(m.Source, m.Target, m.ReadOnly)
		case "tmpfs":
			b.WithTmpfs(m.Target, m.Data)
		case "proc":
			b.WithProc()
		}
	}
	return b.Build(skipNotExists)
}

// PrepareRLimits expands the profile limits for the runner
func (p *Profile) PrepareRLimits() []rlimit.RLimit {
	if p.RLimits == nil {
		return nil
	}
	r := rlimit.RLimits{
		CPU:          p.RLimits.CPU,
		CPUHard:      p.RLimits.CPUHard,
		Data:         p.RLimits.Data,
		FileSize:     p.RLimits.FileSize,
		Stack:        p.RLimits.Stack,
		AddressSpace: p.RLimits.AddressSpace,
		OpenFile:     p.RLimits.OpenFile,
		DisableCore:  p.RLimits.DisableCore,
	}
	return r.PrepareRLimit()
}

// SeccompFilter compiles the profile seccomp policy, nil when the
// profile has none
func (p *Profile) SeccompFilter() (*syscall.SockFprog, error) {
	if p.Seccomp == nil {
		return nil, nil
	}
	pol := seccomp.Policy{
		Default:   seccomp.ActionAllow,
		Allow:     p.Seccomp.Allow,
		Errno:     p.Seccomp.Errno,
		Kill:      p.Seccomp.Kill,
		ErrnoCode: p.Seccomp.ErrnoCode,
	}
	switch p.Seccomp.Default {
	case "errno":
		pol.Default = seccomp.ActionErrno
	case "kill":
		pol.Default = seccomp.ActionKill
	}
	filter, err := pol.Build()
	if err != nil {
		return nil, err
	}
	return filter.SockFprog(), nil
}

func parseNamespace(name string) (launch.Namespace, error) {
	switch strings.ToLower(name) {
	case "mount":
		return launch.Mount, nil
	case "uts":
		return launch.Uts, nil
	case "ipc":
		return launch.Ipc, nil
	case "user":
		return launch.User, nil
	case "pid":
		return launch.Pid, nil
	case "net":
		return launch.Net, nil
	}
	return 0, fmt.Errorf("config: unknown namespace %q", name)
}

var signalNames = map[string]syscall.Signal{
	"SIGHUP":  syscall.SIGHUP,
	"SIGINT":  syscall.SIGINT,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGKILL": syscall.SIGKILL,
	"SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2,
	"SIGTERM": syscall.SIGTERM,
}

func parseSignal(name string) (syscall.Signal, error) {
	n := strings.ToUpper(name)
	if !strings.HasPrefix(n, "SIG") {
		n = "SIG" + n
	}
	if sig, ok := signalNames[n]; ok {
		return sig, nil
	}
	return 0, fmt.Errorf("config: unknown signal %q", name)
}
