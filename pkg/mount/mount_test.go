package mount

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestBuilderChain(t *testing.T) {
	b := NewBuilder().
		WithBind("/usr", "usr", true).
		WithTmpfs("tmp", "size=16m").
		WithProc()
	if len(b.Mounts) != 3 {
		t.Fatalf("expected 3 mounts, got %d", len(b.Mounts))
	}
	if !b.Mounts[0].IsBind() {
		t.Error("expected bind mount first")
	}
	if b.Mounts[1].FsType != "tmpfs" || b.Mounts[1].Data != "size=16m" {
		t.Errorf("unexpected tmpfs mount %+v", b.Mounts[1])
	}
	if b.Mounts[2].FsType != "proc" {
		t.Errorf("unexpected proc mount %+v", b.Mounts[2])
	}
}

func TestBuildSkipNotExists(t *testing.T) {
	b := NewBuilder().
		WithBind("/definitely-not-a-real-dir-xyz", "x", true).
		WithTmpfs("tmp", "")

	if _, err := b.Build(false); err == nil {
		t.Error("expected error for missing bind source")
	}

	sp, err := b.Build(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(sp) != 1 {
		t.Fatalf("expected missing bind skipped, got %d params", len(sp))
	}
}

func TestBuildStatError(t *testing.T) {
	// a regular file as a path component makes stat fail with ENOTDIR,
	// which is not a missing source and must fail even when skipping
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, nil, 0644); err != nil {
		t.Fatal(err)
	}
	b := NewBuilder().WithBind(filepath.Join(f, "sub"), "x", true)
	if _, err := b.Build(true); err == nil {
		t.Error("expected stat error to surface")
	}
}

func TestDefaultMounts(t *testing.T) {
	for _, m := range DefaultMounts {
		if !m.IsBind() || m.Flags&roBind != roBind {
			t.Errorf("expected read-only bind, got %v", m)
		}
		if filepath.IsAbs(m.Target) {
			t.Errorf("target %q must stay relative to the new root", m.Target)
		}
	}
	// /lib64 does not exist everywhere, so build skipping missing sources
	sp, err := NewBuilder().WithMounts(DefaultMounts).Build(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(sp) == 0 {
		t.Error("expected at least one default mount to build")
	}
}

func TestPathPrefixes(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"usr", []string{"usr"}},
		{"a/b/c", []string{"a", "a/b", "a/b/c"}},
		{"/proc", []string{"/proc"}},
	}
	for _, tt := range tests {
		if got := pathPrefixes(tt.path); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("pathPrefixes(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMountString(t *testing.T) {
	tests := []struct {
		name string
		m    Mount
		want string
	}{
		{"ReadOnlyBind", Mount{Source: "/usr", Target: "usr", Flags: roBind}, "bind[/usr:usr:ro]"},
		{"Bind", Mount{Source: "/tmp", Target: "tmp", Flags: bind}, "bind[/tmp:tmp:rw]"},
		{"Tmpfs", Mount{Source: "tmpfs", Target: "tmp", FsType: "tmpfs", Flags: mFlag}, "tmpfs[tmp]"},
		{"Proc", Mount{Source: "proc", Target: "proc", FsType: "proc"}, "proc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
