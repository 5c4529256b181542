package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestVersionPopulated(t *testing.T) {
	if Version == "" {
		t.Error("Version should never be empty after init")
	}
	if Commit == "" {
		t.Error("Commit should never be empty after init")
	}
}

func TestFromBuildInfo(t *testing.T) {
	tests := []struct {
		name        string
		main        string
		settings    map[string]string
		wantVersion string
		wantCommit  string
	}{
		{
			name:        "tagged module",
			main:        "v1.2.3",
			settings:    map[string]string{"vcs.revision": "0123456789abcdef"},
			wantVersion: "v1.2.3",
			wantCommit:  "0123456",
		},
		{
			name: "devel build with vcs",
			main: "(devel)",
			settings: map[string]string{
				"vcs.revision": "abcdef0123",
				"vcs.modified": "true",
				"vcs.time":     "2026-03-14T09:30:00Z",
			},
			wantVersion: "dev-20260314",
			wantCommit:  "abcdef0-dirty",
		},
		{
			name:        "short revision",
			settings:    map[string]string{"vcs.revision": "abc"},
			wantVersion: "",
			wantCommit:  "abc",
		},
		{
			name:        "bad vcs time",
			settings:    map[string]string{"vcs.time": "yesterday"},
			wantVersion: "",
			wantCommit:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &debug.BuildInfo{}
			info.Main.Version = tt.main
			for k, v := range tt.settings {
				info.Settings = append(info.Settings, debug.BuildSetting{Key: k, Value: v})
			}

			v, c := fromBuildInfo(info)
			if v != tt.wantVersion || c != tt.wantCommit {
				t.Errorf("fromBuildInfo() = %q, %q, want %q, %q", v, c, tt.wantVersion, tt.wantCommit)
			}
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version || info.Commit != Commit {
		t.Errorf("Get() = %+v", info)
	}
	if !strings.HasPrefix(info.GoVersion, "go") || !strings.Contains(info.Platform, "/") {
		t.Errorf("Get() = %+v", info)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.Contains(full, Version) || !strings.Contains(full, "commit: "+Commit) {
		t.Errorf("Full() = %q", full)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "freesat/"+Version {
		t.Errorf("UserAgent() = %q", got)
	}
}
