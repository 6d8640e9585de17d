package health

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

func getBuildInfo() string {
	revision := "unknown"
	modified := ""

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if len(setting.Value) >= 7 {
					revision = setting.Value[:7]
				} else if setting.Value != "" {
					revision = setting.Value
				}
			case "vcs.modified":
				if setting.Value == "true" {
					modified = "-dirty"
				}
			}
		}
	}

	return fmt.Sprintf("%s%s %s %s/%s", revision, modified, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
