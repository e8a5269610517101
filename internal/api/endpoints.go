package api

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// PlatformAll is the catch-all platform tag used when no specific platform is chosen.
const PlatformAll = "all"

// DefaultEndpoints maps platform tags to their parse endpoints.
var DefaultEndpoints = map[string]string{
	PlatformAll: "https://api.bugpk.com/api/short_videos",
	"douyin":    "https://api.bugpk.com/api/douyin",
	"kuaishou":  "https://api.bugpk.com/api/ksjx",
	"bilibili":  "https://api.bugpk.com/api/bilibili",
	"xhs":       "https://api.bugpk.com/api/xhsjx",
	"toutiao":   "https://api.bugpk.com/api/toutiao",
}

// MergeEndpoints overlays configured endpoints on top of the defaults. Keys are
// lower-cased and empty values are ignored.
func MergeEndpoints(overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(DefaultEndpoints)+len(overrides))
	for k, v := range DefaultEndpoints {
		merged[k] = v
	}
	for k, v := range overrides {
		if strings.TrimSpace(v) == "" {
			continue
		}
		merged[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return merged
}

// ResolveEndpoint picks the endpoint for platform (case-insensitive). An empty
// or unknown tag falls back to the "all" endpoint.
func ResolveEndpoint(endpoints map[string]string, platform string) string {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	tag := strings.ToLower(strings.TrimSpace(platform))
	if ep, ok := endpoints[tag]; ok && tag != "" {
		return ep
	}
	if tag != "" {
		log.Warnf("Unknown platform %q, using %q endpoint", platform, PlatformAll)
	}
	if ep, ok := endpoints[PlatformAll]; ok {
		return ep
	}
	return DefaultEndpoints[PlatformAll]
}
