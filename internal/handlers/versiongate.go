package handlers

import (
	"strconv"
	"strings"
)

// MinGameVersionMajor is the lowest major version accepted without the
// authoritative-API prefix exception (spec.md §4.3 "Version gate").
const MinGameVersionMajor = 4

// CAPILivePrefix marks payloads sourced from the authoritative live API,
// which bypass the minimum-version check entirely.
const CAPILivePrefix = "CAPI-Live-"

// PassesVersionGate reports whether a header's game-version field is
// recent enough to trust. Malformed or absent version strings fail
// closed (false) — handlers assume a trusted version, so an unparseable
// one must not reach them.
func PassesVersionGate(gameVersion string) bool {
	if strings.HasPrefix(gameVersion, CAPILivePrefix) {
		return true
	}
	major := majorOf(gameVersion)
	if major < 0 {
		return false
	}
	return major >= MinGameVersionMajor
}

func majorOf(version string) int {
	version = strings.TrimSpace(version)
	if version == "" {
		return -1
	}
	parts := strings.SplitN(version, ".", 2)
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return -1
	}
	return n
}
