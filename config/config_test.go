package config

import (
	"syscall"
	"testing"

	"golang.org/x/sys/unix"
)

const fullProfile = `
namespaces: [mount, pid, net]
pivot_root:
  new_root: /mnt/root
  put_old: /mnt/root/old
  unmount_old: true
chroot: /var/app
death_signal: SIGTERM
enable_sigchld: true
workdir: /
hostname: sandbox
env:
  - PATH=/usr/bin:/bin
mounts:
  - type: tmpfs
    target: tmp
    data: size=16m
  - type: proc
rlimits:
  cpu: 1
  stack: 8388608
  disable_core: true
seccomp:
  default: allow
  kill: [acct, reboot]
`

func TestParseFullProfile(t *testing.T) {
	p, err := Parse([]byte(fullProfile))
	if err != nil {
		t.Fatal(err)
	}

	c := p.Launch()
	want := uintptr(unix.CLONE_NEWNS | unix.CLONE_NEWPID | unix.CLONE_NEWNET)
	if c.CloneFlags() != want {
		t.Errorf("clone flags %#x, want %#x", c.CloneFlags(), want)
	}
	pv, ok := c.Pivot()
	if !ok || pv.NewRoot != "/mnt/root" || pv.PutOld != "/mnt/root/old" || !pv.UnmountOld {
		t.Errorf("pivot %+v ok=%v", pv, ok)
	}
	if dir, ok := c.Chroot(); !ok || dir != "/var/app" {
		t.Errorf("chroot %q ok=%v", dir, ok)
	}
	if sig, ok := c.ParentDeathSignal(); !ok || sig != syscall.SIGTERM {
		t.Errorf("death signal %v ok=%v", sig, ok)
	}
	if !c.ChildSignalEnabled() {
		t.Error("expected SIGCHLD enabled")
	}

	mounts, err := p.MountParams(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(mounts) != 2 {
		t.Errorf("expected 2 mounts, got %d", len(mounts))
	}

	if got := p.PrepareRLimits(); len(got) != 3 {
		t.Errorf("expected 3 rlimits, got %d", len(got))
	}

	filter, err := p.SeccompFilter()
	if err != nil {
		t.Fatal(err)
	}
	if filter == nil || filter.Len == 0 {
		t.Error("expected compiled seccomp filter")
	}
}

func TestParseDefaults(t *testing.T) {
	p, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	c := p.Launch()
	if c.CloneFlags() != 0 {
		t.Errorf("expected no namespaces, got %#x", c.CloneFlags())
	}
	if sig, ok := c.ParentDeathSignal(); !ok || sig != syscall.SIGKILL {
		t.Errorf("expected default SIGKILL, got %v ok=%v", sig, ok)
	}
	if c.ChildSignalEnabled() {
		t.Error("expected SIGCHLD disabled by default")
	}
	if filter, err := p.SeccompFilter(); err != nil || filter != nil {
		t.Errorf("expected nil filter, got %v err=%v", filter, err)
	}
}

func TestParseDaemonize(t *testing.T) {
	p, err := Parse([]byte("daemonize: true\ndeath_signal: SIGTERM\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Launch().ParentDeathSignal(); ok {
		t.Error("daemonize should clear the death signal")
	}
}

func TestParseDefaultMounts(t *testing.T) {
	p, err := Parse([]byte("default_mounts: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	mounts, err := p.MountParams(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(mounts) == 0 {
		t.Error("expected the default rootfs binds in the mount plan")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name, in string
	}{
		{"BadYAML", ":\n-"},
		{"UnknownNamespace", "namespaces: [cgroup]"},
		{"RelativeChroot", "chroot: var/app"},
		{"BadPivotPrefix", "pivot_root: {new_root: /a, put_old: /b/old}"},
		{"RelativePivot", "pivot_root: {new_root: mnt, put_old: mnt/old}"},
		{"UnknownSignal", "death_signal: SIGBOGUS"},
		{"UnknownMountType", "mounts: [{type: overlay, target: x}]"},
		{"BindWithoutSource", "mounts: [{type: bind, target: x}]"},
		{"TmpfsWithoutTarget", "mounts: [{type: tmpfs}]"},
		{"BadSeccompDefault", "seccomp: {default: trace}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.in)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestParseSignal(t *testing.T) {
	tests := []struct {
		in   string
		want syscall.Signal
	}{
		{"SIGKILL", syscall.SIGKILL},
		{"sigterm", syscall.SIGTERM},
		{"HUP", syscall.SIGHUP},
	}
	for _, tt := range tests {
		got, err := parseSignal(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseSignal(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestRunner(t *testing.T) {
	p, err := Parse([]byte(fullProfile))
	if err != nil {
		t.Fatal(err)
	}
	r, err := p.Runner([]string{"/bin/sh"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if r.Isolation == nil || r.Seccomp == nil || !r.NoNewPrivs {
		t.Errorf("incomplete runner %+v", r)
	}
	if len(r.RLimits) != 3 || len(r.Mounts) != 2 {
		t.Errorf("plan sizes rlimits=%d mounts=%d", len(r.RLimits), len(r.Mounts))
	}
	if r.WorkDir != "/" || r.HostName != "sandbox" {
		t.Errorf("workdir %q hostname %q", r.WorkDir, r.HostName)
	}
}
