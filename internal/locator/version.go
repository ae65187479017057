package locator

import (
	"sort"
	"strconv"
	"strings"
)

// Installation key naming under the vendor registry key.
const (
	installKeyPrefix   = "Earth Volumetric Studio "
	developmentVersion = "Development"
)

// Installation is one installed copy of EVS.
type Installation struct {
	// Version is the key suffix, e.g. "2024.10.1" or "Development".
	Version string
	// Path is the installation root recorded by the installer.
	Path string
}

// IsDevelopment reports whether this is a development build.
func (i Installation) IsDevelopment() bool {
	return i.Version == developmentVersion
}

// versionFromKey extracts the version from a registry subkey name. ok is
// false for keys that are not EVS installations.
func versionFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, installKeyPrefix) {
		return "", false
	}
	v := strings.TrimSpace(strings.TrimPrefix(key, installKeyPrefix))
	return v, v != ""
}

// parseVersion splits a dotted numeric version. Non-numeric components make
// the version unparsable.
func parseVersion(s string) ([]int, bool) {
	fields := strings.Split(s, ".")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return nil, false
		}
		out = append(out, n)
	}
	return out, len(out) > 0
}

// compareVersions orders dotted versions numerically; missing trailing
// components count as zero.
func compareVersions(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

// ChooseInstallation picks the installation to launch:
//   - the development build when preferDevelopment is set and one exists,
//   - otherwise the exact requested version when it is installed,
//   - otherwise the highest released version whose major number exceeds 1.
//
// ok is false when nothing qualifies.
func ChooseInstallation(installs []Installation, requested string, preferDevelopment bool) (Installation, bool) {
	type candidate struct {
		inst    Installation
		version []int
	}

	if preferDevelopment {
		for _, inst := range installs {
			if inst.IsDevelopment() {
				return inst, true
			}
		}
	}

	var released []candidate
	for _, inst := range installs {
		if inst.IsDevelopment() {
			continue
		}
		if requested != "" && inst.Version == requested {
			return inst, true
		}
		v, ok := parseVersion(inst.Version)
		if !ok {
			continue
		}
		released = append(released, candidate{inst: inst, version: v})
	}

	if len(released) == 0 {
		return Installation{}, false
	}

	sort.SliceStable(released, func(i, j int) bool {
		return compareVersions(released[i].version, released[j].version) > 0
	})
	best := released[0]
	if best.version[0] <= 1 {
		return Installation{}, false
	}
	return best.inst, true
}
