// Package launch accumulates the isolation intents for a child process
// into a single validated plan: which Linux namespaces to unshare, how
// the filesystem root is transitioned (pivot_root then chroot), which
// signal the child receives when its parent dies, and whether SIGCHLD
// delivery for the child is enabled.
//
// The package performs no syscalls itself. A finished Config is consumed
// once by the forkexec runner, which applies the plan inside the new
// process in a fixed order: namespaces, pivot_root, chroot, parent death
// signal, child signal disposition.
//
// Path validation happens eagerly at configuration time. Passing a
// relative path to PivotRoot or ChrootDir, or a put_old directory that is
// not underneath the new root, is a programming error and panics rather
// than producing a plan that can only fail later inside the child.
package launch
