// Package forkexec launches a child process into the isolated
// environment described by a launch.Config: it clones with the
// accumulated namespace flags, transitions the filesystem root
// (pivot_root, then chroot), registers the parent death signal and
// applies mounts, rlimits and the seccomp filter before execve.
//
// The clone termination signal is SIGCHLD only when the plan enables
// child signal delivery; otherwise the child reports no termination
// signal and waiting on it requires the __WALL flag (see Wait).
//
// unshare pid / user namespaces require kernel >= 3.8
package forkexec
