package forkexec

import (
	"syscall"
	"testing"

	"github.com/nsforge/nslaunch/pkg/launch"
)

func TestStart_OK(t *testing.T) {
	t.Parallel()
	r := Runner{
		Args: []string{"/bin/true"},
		Env:  []string{"PATH=/bin:/usr/bin"},
	}
	pid, err := r.Start()
	if err != nil {
		t.Fatal(err)
	}
	ws, err := Wait(pid)
	if err != nil {
		t.Fatal(err)
	}
	if !ws.Exited() || ws.ExitStatus() != 0 {
		t.Fatalf("unexpected wait status %v", ws)
	}
}

func TestStart_NoSigchldWait(t *testing.T) {
	t.Parallel()
	// default plan: SIGCHLD delivery disabled, child cloned without an
	// exit signal, Wait must still collect it through __WALL
	r := Runner{
		Args:      []string{"/bin/true"},
		Env:       []string{"PATH=/bin:/usr/bin"},
		Isolation: launch.New().AllowDaemonize(),
	}
	pid, err := r.Start()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Wait(pid); err != nil {
		t.Fatal(err)
	}
}

func TestStart_ExecveError(t *testing.T) {
	t.Parallel()
	r := Runner{
		Args: []string{"/nonexistent-binary"},
		Env:  []string{},
	}
	_, err := r.Start()
	ce, ok := err.(ChildError)
	if !ok {
		t.Fatalf("expected ChildError, got %v", err)
	}
	if ce.Location != LocExecve || ce.Err != syscall.ENOENT {
		t.Fatalf("expected execve ENOENT, got %v", ce)
	}
}

func TestChildErrorString(t *testing.T) {
	tests := []struct {
		name string
		ce   ChildError
		want string
	}{
		{
			name: "Plain",
			ce:   ChildError{Err: syscall.ENOENT, Location: LocExecve},
			want: "execve: no such file or directory",
		},
		{
			name: "WithIndex",
			ce:   ChildError{Err: syscall.EPERM, Location: LocMount, Index: 2},
			want: "mount(2): operation not permitted",
		},
		{
			name: "Unknown",
			ce:   ChildError{Err: syscall.EINVAL, Location: ErrorLocation(99)},
			want: "unknown: invalid argument",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ce.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOldRootAfterPivot(t *testing.T) {
	tests := []struct {
		newRoot, putOld, want string
	}{
		{"/mnt/root", "/mnt/root/old", "/old"},
		{"/mnt/root/", "/mnt/root/old", "/old"},
		{"/", "/old", "/old"},
		{"/a/b", "/a/b/c/d", "/c/d"},
		{"/mnt/root", "/mnt/root", "/"},
	}
	for _, tt := range tests {
		if got := oldRootAfterPivot(tt.newRoot, tt.putOld); got != tt.want {
			t.Errorf("oldRootAfterPivot(%q, %q) = %q, want %q", tt.newRoot, tt.putOld, got, tt.want)
		}
	}
}
