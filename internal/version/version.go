// Package version хранит сведения о сборке, проставляемые через -ldflags:
//
//	-X github.com/vladislavdragonenkov/store/internal/version.version=v1.2.0
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var resolveOnce sync.Once

// resolve дополняет значения по умолчанию данными go build (vcs.revision, vcs.time).
func resolve() {
	resolveOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "unknown" && s.Value != "" {
					commit = s.Value
				}
			case "vcs.time":
				if date == "unknown" && s.Value != "" {
					date = s.Value
				}
			}
		}
	})
}

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) {
	resolve()
	return version, commit, date
}

func GetVersion() string {
	v, _, _ := Info()
	return v
}

func GetCommit() string {
	_, c, _ := Info()
	return c
}

func GetDate() string {
	_, _, d := Info()
	return d
}

func String() string {
	v, c, d := Info()
	return fmt.Sprintf("version=%s commit=%s date=%s", v, c, d)
}
