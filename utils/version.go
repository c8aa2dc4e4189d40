package utils

import (
	"strings"

	"github.com/hashicorp/go-version"
)

// VersionConfig holds the fleet's version requirements.
type VersionConfig struct {
	CurrentStable string
	MinSupported  string
	Deprecated    string
}

var DefaultVersionConfig = VersionConfig{
	CurrentStable: "1.2.3",
	MinSupported:  "1.1.0",
	Deprecated:    "1.0.0",
}

// CheckVersionStatus classifies a node's reported version against the
// fleet requirements.
func CheckVersionStatus(nodeVersion string, config *VersionConfig) (status string, needsUpgrade bool, severity string) {
	if config == nil {
		config = &DefaultVersionConfig
	}

	nodeVersion = strings.TrimPrefix(nodeVersion, "v")

	nodeVer, err := version.NewVersion(nodeVersion)
	if err != nil {
		return "unknown", false, "info"
	}

	current, _ := version.NewVersion(config.CurrentStable)
	minSupported, _ := version.NewVersion(config.MinSupported)
	deprecated, _ := version.NewVersion(config.Deprecated)

	if nodeVer.LessThan(deprecated) {
		return "deprecated", true, "critical"
	}
	if nodeVer.LessThan(minSupported) {
		return "outdated", true, "warning"
	}
	if nodeVer.LessThan(current) {
		return "outdated", true, "info"
	}

	return "current", false, "none"
}
