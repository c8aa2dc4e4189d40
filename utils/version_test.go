package utils

import "testing"

func TestCheckVersionStatus(t *testing.T) {
	tests := []struct {
		version      string
		status       string
		needsUpgrade bool
		severity     string
	}{
		{"1.2.3", "current", false, "none"},
		{"2.0.0", "current", false, "none"},
		{"v1.2.3", "current", false, "none"},
		{"1.2.0", "outdated", true, "info"},
		{"1.0.5", "outdated", true, "warning"},
		{"0.9.0", "deprecated", true, "critical"},
		{"not-a-version", "unknown", false, "info"},
		{"", "unknown", false, "info"},
	}

	for _, tt := range tests {
		status, needsUpgrade, severity := CheckVersionStatus(tt.version, nil)
		if status != tt.status || needsUpgrade != tt.needsUpgrade || severity != tt.severity {
			t.Errorf("CheckVersionStatus(%q) = (%s, %v, %s), want (%s, %v, %s)",
				tt.version, status, needsUpgrade, severity, tt.status, tt.needsUpgrade, tt.severity)
		}
	}
}

func TestCheckVersionStatus_CustomConfig(t *testing.T) {
	cfg := &VersionConfig{CurrentStable: "3.0.0", MinSupported: "2.5.0", Deprecated: "2.0.0"}

	status, needsUpgrade, severity := CheckVersionStatus("2.4.0", cfg)
	if status != "outdated" || !needsUpgrade || severity != "warning" {
		t.Fatalf("got (%s, %v, %s)", status, needsUpgrade, severity)
	}

	status, _, severity = CheckVersionStatus("1.9.9", cfg)
	if status != "deprecated" || severity != "critical" {
		t.Fatalf("got (%s, %s)", status, severity)
	}
}
