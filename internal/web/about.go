package web

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"time"
)

type aboutResponse struct {
	Service   string `json:"service"`
	NowUTC    string `json:"now_utc"`
	GoVersion string `json:"go_version"`
	Module    string `json:"module,omitempty"`
	Version   string `json:"version,omitempty"`
	Revision  string `json:"revision,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
	BuiltAt   string `json:"built_at,omitempty"`
}

func handleAbout(w http.ResponseWriter, r *http.Request) {
	resp := aboutResponse{
		Service:   "auv-ng",
		NowUTC:    time.Now().UTC().Format(time.RFC3339Nano),
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		resp.Module = bi.Main.Path
		resp.Version = bi.Main.Version
		resp.Revision, resp.Dirty, resp.BuiltAt = vcsStamp(bi)
	}
	writeJSON(w, http.StatusOK, resp)
}

// vcsStamp pulls the embedded git metadata, present when the binary was
// built from a checkout rather than go run.
func vcsStamp(bi *debug.BuildInfo) (rev string, dirty bool, at string) {
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		case "vcs.time":
			at = s.Value
		}
	}
	return rev, dirty, at
}
