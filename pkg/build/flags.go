// SPDX-License-Identifier: MIT
//
// Package build exposes build metadata injected with -ldflags, for example:
//
//	go build -ldflags "-X xspectrum/pkg/build.buildName=xspectrum \
//	  -X xspectrum/pkg/build.buildVersion=v0.3.0 ..."
//
// Binaries built without ldflags fall back to the module's embedded VCS
// information so `go run` keeps working.
package build

import (
	"errors"
	"runtime"
	"runtime/debug"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
	GoVersion   string
}

const (
	defaultName        = "xspectrum"
	defaultDescription = "Real-time audio spectrum analyser"
	unknown            = "unknown"
)

// Set by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var info = &Info{
	Name:        defaultName,
	Description: defaultDescription,
	Time:        unknown,
	Commit:      unknown,
	Version:     "dev",
	GoVersion:   runtime.Version(),
}

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Initialize resolves the build information. Either all ldflags are set or
// none are; a partial set means a broken release script and is an error.
func Initialize() error {
	set := 0
	for _, v := range []string{buildName, buildTime, buildCommit, buildVersion} {
		if v != "" {
			set++
		}
	}

	switch set {
	case 4:
		info.Name = buildName
		info.Time = buildTime
		info.Commit = buildCommit
		info.Version = buildVersion
		return nil
	case 0:
		fromModule(info)
		return nil
	}

	switch {
	case buildName == "":
		return errors.New("BuildName is required")
	case buildTime == "":
		return errors.New("BuildTime is required")
	case buildCommit == "":
		return errors.New("BuildCommit is required")
	default:
		return errors.New("BuildVersion is required")
	}
}

func fromModule(i *Info) {
	bi, ok := readBuildInfo()
	if !ok {
		return
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		i.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			i.Commit = s.Value
		case "vcs.time":
			i.Time = s.Value
		}
	}
}

// GetBuildFlags returns the resolved build information.
func GetBuildFlags() *Info {
	return info
}
