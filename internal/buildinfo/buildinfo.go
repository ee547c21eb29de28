// Package buildinfo carries version stamps set with -ldflags "-X".
package buildinfo

import "runtime/debug"

const Service = "techdispatch"

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func Info() map[string]string {
    info := map[string]string{
        "service": Service,
        "version": Version,
        "commit":  Commit,
        "builtAt": BuiltAt,
    }
    // fall back to VCS stamps embedded by the go tool
    if bi, ok := debug.ReadBuildInfo(); ok {
        info["goVersion"] = bi.GoVersion
        for _, s := range bi.Settings {
            switch s.Key {
            case "vcs.revision":
                if info["commit"] == "" { info["commit"] = s.Value }
            case "vcs.time":
                if info["builtAt"] == "" { info["builtAt"] = s.Value }
            }
        }
    }
    return info
}
