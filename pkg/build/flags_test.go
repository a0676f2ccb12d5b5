// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"runtime/debug"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origInfo    Info
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origInfo = *info

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	*info = origInfo

	os.Exit(exitCode)
}

func resetInfo() {
	*info = Info{
		Name:    defaultName,
		Time:    unknown,
		Commit:  unknown,
		Version: "dev",
	}
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErrMsg  string
	}{
		{"Missing BuildName", "", "2025-04-13", "abcdef123", "v1.0.0", "BuildName is required"},
		{"Missing BuildTime", "testapp", "", "abcdef123", "v1.0.0", "BuildTime is required"},
		{"Missing BuildCommit", "testapp", "2025-04-13", "", "v1.0.0", "BuildCommit is required"},
		{"Missing BuildVersion", "testapp", "2025-04-13", "abcdef123", "", "BuildVersion is required"},
		{"Success Case", "testapp", "2025-04-13", "abcdef123", "v1.0.0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetInfo()
			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer

			err := Initialize()

			if tt.wantErrMsg != "" {
				if err == nil || err.Error() != tt.wantErrMsg {
					t.Errorf("Initialize() error = %v, want %v", err, tt.wantErrMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}

			got := GetBuildFlags()
			if got.Name != tt.buildName || got.Time != tt.buildTime ||
				got.Commit != tt.buildCommit || got.Version != tt.buildVer {
				t.Errorf("GetBuildFlags() = %+v", got)
			}
		})
	}
}

func TestInitializeFromModule(t *testing.T) {
	resetInfo()
	buildName, buildTime, buildCommit, buildVersion = "", "", "", ""
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Version: "v0.2.0"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123abc"},
				{Key: "vcs.time", Value: "2025-05-01T10:00:00Z"},
			},
		}, true
	}
	t.Cleanup(func() { readBuildInfo = debug.ReadBuildInfo })

	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	got := GetBuildFlags()
	if got.Name != defaultName || got.Version != "v0.2.0" || got.Commit != "0123abc" || got.Time != "2025-05-01T10:00:00Z" {
		t.Errorf("GetBuildFlags() = %+v", got)
	}
}

func TestInitializeDevelBuild(t *testing.T) {
	resetInfo()
	buildName, buildTime, buildCommit, buildVersion = "", "", "", ""
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true
	}
	t.Cleanup(func() { readBuildInfo = debug.ReadBuildInfo })

	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	if got := GetBuildFlags(); got.Version != "dev" || got.Commit != unknown {
		t.Errorf("GetBuildFlags() = %+v", got)
	}
}
