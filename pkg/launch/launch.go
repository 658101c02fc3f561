package launch

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
	"syscall"
)

// Pivot is the stored pivot_root step of the root transition plan.
// NewRoot becomes the new filesystem root and the old root is relocated
// to PutOld. If UnmountOld is set the runner detaches the old root after
// the transition.
type Pivot struct {
	NewRoot    string
	PutOld     string
	UnmountOld bool
}

// Config is the launch plan for one child process. The zero value is not
// usable; create instances with New. A Config is built incrementally by
// one goroutine through the chaining methods and read by the forkexec
// runner at launch time. It provides no internal locking.
type Config struct {
	cloneFlags uintptr
	pivot      *Pivot
	chroot     string
	deathSig   syscall.Signal // 0 means no parent death signal
	sigchld    bool
}

// New creates a launch plan with the default policies: no namespace
// unshared, no root transition, parent death signal SIGKILL and SIGCHLD
// delivery disabled.
func New() *Config {
	return &Config{
		deathSig: syscall.SIGKILL,
	}
}

// Unshare requests the given namespaces to be unshared when the child is
// cloned. Requests accumulate as a union; repeating a namespace has no
// additional effect and nothing removes a namespace once requested.
func (c *Config) Unshare(namespaces ...Namespace) *Config {
	for _, ns := range namespaces {
		c.cloneFlags |= ns.cloneFlag()
	}
	return c
}

// PivotRoot stores a pivot_root step: newRoot becomes the root of the
// filesystem and the old root is moved to putOld. If unmountOld is set
// the runner detaches the old root mount after the pivot. A later call
// replaces a previously stored pivot.
//
// If a chroot dir is also configured, the runner applies the pivot first
// and the chroot second; the chroot path must already be expressed for
// the post-pivot filesystem view.
//
// Without an unshared mount namespace the pivot moves the root for every
// process in the current mount namespace, including the caller.
//
// Panics if either path is not absolute or newRoot is not a
// component-wise prefix of putOld; callers holding untrusted paths
// should screen them with CheckPivotRoot first.
func (c *Config) PivotRoot(newRoot, putOld string, unmountOld bool) *Config {
	if err := CheckPivotRoot(newRoot, putOld); err != nil {
		panic("launch: " + err.Error())
	}
	c.pivot = &Pivot{
		NewRoot:    newRoot,
		PutOld:     putOld,
		UnmountOld: unmountOld,
	}
	return c
}

// ChrootDir stores the chroot directory of the root transition plan. A
// later call replaces a previously stored directory. When both a pivot
// and a chroot are configured the runner applies the chroot after the
// pivot, so dir is interpreted against the post-pivot root.
//
// Panics if dir is not absolute; callers holding untrusted paths should
// screen them with CheckChrootDir first.
func (c *Config) ChrootDir(dir string) *Config {
	if err := CheckChrootDir(dir); err != nil {
		panic("launch: " + err.Error())
	}
	c.chroot = dir
	return c
}

// CheckPivotRoot validates pivot_root paths without storing anything,
// for callers assembling plans from runtime data rather than literals.
func CheckPivotRoot(newRoot, putOld string) error {
	if !filepath.IsAbs(newRoot) {
		return errors.New("pivot_root new root must be an absolute path")
	}
	if !filepath.IsAbs(putOld) {
		return errors.New("pivot_root put_old must be an absolute path")
	}
	if !isComponentPrefix(newRoot, putOld) {
		return errors.New("pivot_root new root is not a prefix of put_old")
	}
	return nil
}

// CheckChrootDir validates a chroot dir without storing anything.
func CheckChrootDir(dir string) error {
	if !filepath.IsAbs(dir) {
		return errors.New("chroot dir must be an absolute path")
	}
	return nil
}

// SetParentDeathSignal selects the signal delivered to the child when
// its parent terminates. The default is SIGKILL and should be kept
// unless the child is meant to outlive the parent; use AllowDaemonize
// for that. The value is not validated here, the kernel rejects invalid
// signals when the runner registers it.
//
// The signal covers only the immediate child. Controlling further
// descendants requires a pid namespace (Unshare(Pid)) or subreaper
// setup, neither of which is handled by this package.
func (c *Config) SetParentDeathSignal(sig syscall.Signal) *Config {
	c.deathSig = sig
	return c
}

// AllowDaemonize clears the parent death signal so the child may outlive
// its parent. SetParentDeathSignal restores a concrete signal.
func (c *Config) AllowDaemonize() *Config {
	c.deathSig = 0
	return c
}

// EnableChildSignal enables SIGCHLD delivery for the child. Unlike most
// process launch APIs it is disabled by default, and there is no way to
// disable it again on the same Config. Note the default disposition of
// SIGCHLD is ignore, so observing it still requires sigaction or
// signalfd on the parent side, and reparented children may deliver
// SIGCHLD regardless of this setting.
func (c *Config) EnableChildSignal() *Config {
	c.sigchld = true
	return c
}

// CloneFlags returns the accumulated CLONE_NEW* flags for the clone
// syscall.
func (c *Config) CloneFlags() uintptr {
	return c.cloneFlags
}

// Pivot returns the stored pivot_root step, if any.
func (c *Config) Pivot() (Pivot, bool) {
	if c.pivot == nil {
		return Pivot{}, false
	}
	return *c.pivot, true
}

// Chroot returns the stored chroot directory, if any.
func (c *Config) Chroot() (string, bool) {
	return c.chroot, c.chroot != ""
}

// ParentDeathSignal returns the parent death signal and whether one is
// set at all.
func (c *Config) ParentDeathSignal() (syscall.Signal, bool) {
	return c.deathSig, c.deathSig != 0
}

// ChildSignalEnabled reports whether SIGCHLD delivery is enabled.
func (c *Config) ChildSignalEnabled() bool {
	return c.sigchld
}

// isComponentPrefix reports whether every path component of prefix
// matches the corresponding leading component of p. Both paths are
// cleaned before comparison so trailing slashes do not matter; the
// stored plan keeps the original spelling.
func isComponentPrefix(prefix, p string) bool {
	if path.Clean(prefix) == "/" {
		return true
	}
	pc := strings.Split(path.Clean(prefix), "/")
	oc := strings.Split(path.Clean(p), "/")
	if len(oc) < len(pc) {
		return false
	}
	for i, c := range pc {
		if oc[i] != c {
			return false
		}
	}
	return true
}
