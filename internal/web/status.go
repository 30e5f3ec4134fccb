package web

import (
	"net"
	"net/http"
	"sort"
	"time"

	"auv-ng/internal/control"
)

type motorStatus struct {
	SurgePct float64 `json:"surge_pct"`
	HeavePct float64 `json:"heave_pct"`
}

type simStatus struct {
	XCm     float64 `json:"x_cm"`
	DepthCm float64 `json:"depth_cm"`
}

// SystemSnapshot is host-side health, best-effort: fields missing on this
// platform are omitted.
type SystemSnapshot struct {
	CPUTempC       float64  `json:"cpu_temp_c,omitempty"`
	LocalAddrs     []string `json:"local_addrs,omitempty"`
	DiskAvailBytes uint64   `json:"disk_avail_bytes,omitempty"`
}

type statusResponse struct {
	NowUTC         string           `json:"now_utc"`
	HardwareOK     bool             `json:"hardware_ok"`
	DegradedReason string           `json:"degraded_reason,omitempty"`
	Control        control.Snapshot `json:"control"`
	Motors         *motorStatus     `json:"motors,omitempty"`
	Sim            *simStatus       `json:"sim,omitempty"`
	System         SystemSnapshot   `json:"system"`
}

func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		NowUTC:         time.Now().UTC().Format(time.RFC3339Nano),
		HardwareOK:     h.opts.HardwareOK,
		DegradedReason: h.opts.DegradedReason,
		Control:        h.opts.Gate.Snapshot(),
		System:         snapshotSystem(),
	}
	if h.opts.Motors != nil {
		cur := h.opts.Motors.Current()
		resp.Motors = &motorStatus{SurgePct: cur.SurgePct, HeavePct: cur.HeavePct}
	}
	if h.opts.SimState != nil {
		x, d := h.opts.SimState()
		resp.Sim = &simStatus{XCm: x, DepthCm: d}
	}
	writeJSON(w, http.StatusOK, resp)
}

func snapshotSystem() SystemSnapshot {
	var sn SystemSnapshot
	if c, err := ReadCPUTempC(); err == nil {
		sn.CPUTempC = c
	}
	sn.LocalAddrs = localInterfaceAddrs()
	sn.DiskAvailBytes = diskAvailBytes("/")
	return sn
}

func localInterfaceAddrs() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	out := make([]string, 0, 8)
	for _, iface := range ifaces {
		if (iface.Flags&net.FlagUp) == 0 || (iface.Flags&net.FlagLoopback) != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			if ipnet.IP.IsLoopback() || ipnet.IP.IsLinkLocalUnicast() {
				continue
			}
			out = append(out, iface.Name+": "+ipnet.String())
		}
	}

	sort.Strings(out)
	return out
}
