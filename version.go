package main

import "strings"

// Set at build time via -ldflags "-X main.buildVersion=... -X main.buildCommit=...".
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
)

func versionString() string {
	return formatVersion(buildVersion, buildCommit)
}

// formatVersion renders a release tag as-is; dev builds carry an abbreviated
// commit when one is known.
func formatVersion(version, commit string) string {
	v := strings.TrimSpace(version)
	if v != "" && v != "dev" {
		return v
	}
	if c := shortCommit(commit); c != "" {
		return "dev-" + c
	}
	return "dev"
}

func shortCommit(commit string) string {
	c := strings.TrimSpace(commit)
	if c == "unknown" {
		return ""
	}
	if len(c) > 7 {
		c = c[:7]
	}
	return c
}
