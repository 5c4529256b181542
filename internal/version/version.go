package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/freesat/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/freesat/internal/version.Commit=abc123"
//
// Unset values are filled from the binary's build info, then from a dev stamp.
var (
	Version = ""
	Commit  = ""
)

// shortHash is the length commits are reported at
const shortHash = 7

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		v, c := fromBuildInfo(info)
		if Version == "" {
			Version = v
		}
		if Commit == "" {
			Commit = c
		}
	}

	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildInfo derives a version and commit from module and VCS metadata.
// A tagged module version (go install ...@v1.2.3) wins; otherwise the
// version is dev-<commit date>.
func fromBuildInfo(info *debug.BuildInfo) (version, commit string) {
	vcs := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		vcs[s.Key] = s.Value
	}

	if rev := vcs["vcs.revision"]; rev != "" {
		if len(rev) > shortHash {
			rev = rev[:shortHash]
		}
		commit = rev
		if vcs["vcs.modified"] == "true" {
			commit += "-dirty"
		}
	}

	switch {
	case info.Main.Version != "" && info.Main.Version != "(devel)":
		version = info.Main.Version
	case vcs["vcs.time"] != "":
		if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); err == nil {
			version = "dev-" + t.Format("20060102")
		}
	}
	return version, commit
}

// Info is the build description printed by 'freesat version'
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the running binary's build description
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Full returns "<version> (commit: <commit>)"
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent returns the User-Agent sent to boxes and the content service
func UserAgent() string {
	return "freesat/" + Version
}
