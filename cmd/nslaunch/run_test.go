package main

import (
	"testing"
)

func TestParseBind(t *testing.T) {
	tests := []struct {
		in       string
		source   string
		target   string
		readOnly bool
		fail     bool
	}{
		{in: "/usr:usr", source: "/usr", target: "usr"},
		{in: "/usr:usr:ro", source: "/usr", target: "usr", readOnly: true},
		{in: "/tmp:tmp:rw", source: "/tmp", target: "tmp"},
		{in: "/usr", fail: true},
		{in: "/usr:usr:nope", fail: true},
	}
	for _, tt := range tests {
		m, err := parseBind(tt.in)
		if tt.fail {
			if err == nil {
				t.Errorf("parseBind(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseBind(%q): %v", tt.in, err)
			continue
		}
		if m.Source != tt.source || m.Target != tt.target || m.ReadOnly != tt.readOnly {
			t.Errorf("parseBind(%q) = %+v", tt.in, m)
		}
	}
}

func TestBuildProfileFlagsWin(t *testing.T) {
	f := runFlags{
		namespaces:  []string{"pid", "mount"},
		pivotRoot:   "/mnt/root",
		putOld:      "/mnt/root/old",
		unmountOld:  true,
		deathSignal: "SIGTERM",
		proc:        true,
	}
	p, err := buildProfile(&f)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Namespaces) != 2 || p.PivotRoot == nil || !p.PivotRoot.UnmountOld {
		t.Errorf("unexpected profile %+v", p)
	}
	if len(p.Mounts) != 1 || p.Mounts[0].Type != "proc" {
		t.Errorf("unexpected mounts %+v", p.Mounts)
	}
}

func TestBuildProfileInvalid(t *testing.T) {
	f := runFlags{pivotRoot: "/a", putOld: "/b/old"}
	if _, err := buildProfile(&f); err == nil {
		t.Error("expected validation error")
	}
}
