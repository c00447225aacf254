// Package gpu reports the accelerator the process runs on. The reference
// build has no device probing; it describes the host and honors the
// SPARSERVE_CAPABILITY override so capability gating can be exercised
// anywhere.
package gpu

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"

	"github.com/jmorganca/sparserve/envconfig"
	"github.com/jmorganca/sparserve/format"
)

// DeviceInfo describes the accelerator the process is running on.
type DeviceInfo struct {
	ID   string `json:"gpu_id"`
	Name string `json:"name"`

	// Major/Minor compatibility version (CC or gfx)
	Major int `json:"major,omitempty"`
	Minor int `json:"minor,omitempty"`

	TotalMemory uint64 `json:"total_memory,omitempty"`
	FreeMemory  uint64 `json:"free_memory,omitempty"`
}

// Capability returns the device generation as a single ordinal, e.g. compute
// capability 8.6 becomes 86, for comparison against a method's minimum
// requirement.
func (d DeviceInfo) Capability() int {
	return d.Major*10 + d.Minor
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s (compute %d.%d)", d.Name, d.Major, d.Minor)
}

// Discover returns the device model assembly gates against.
func Discover() DeviceInfo {
	info := DeviceInfo{
		ID:          "0",
		Name:        "cpu",
		TotalMemory: memory.TotalMemory(),
		FreeMemory:  memory.FreeMemory(),
	}

	if v := envconfig.Capability; v != "" {
		major, minor, err := parseCapability(v)
		if err != nil {
			slog.Warn("ignoring invalid capability override", "SPARSERVE_CAPABILITY", v, "error", err)
		} else {
			info.Major, info.Minor = major, minor
		}
	}

	slog.Info("device", "id", info.ID, "name", info.Name,
		"compute", fmt.Sprintf("%d.%d", info.Major, info.Minor),
		"total", format.HumanBytes(int64(info.TotalMemory)),
		"available", format.HumanBytes(int64(info.FreeMemory)))

	return info
}

func parseCapability(s string) (major, minor int, err error) {
	version, rest, _ := strings.Cut(s, ".")
	if major, err = strconv.Atoi(version); err != nil {
		return 0, 0, fmt.Errorf("invalid capability %q", s)
	}

	if rest != "" {
		if minor, err = strconv.Atoi(rest); err != nil {
			return 0, 0, fmt.Errorf("invalid capability %q", s)
		}
	}

	return major, minor, nil
}
