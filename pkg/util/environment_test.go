package util

import "testing"

func TestGetEnvironmentDefault(t *testing.T) {
	t.Setenv("FLEETGUARD_TEST_SETTING", "configured")

	if value := GetEnvironmentDefault("FLEETGUARD_TEST_SETTING", "fallback"); value != "configured" {
		t.Errorf("expected configured, got %s", value)
	}

	if value := GetEnvironmentDefault("FLEETGUARD_TEST_UNSET", "fallback"); value != "fallback" {
		t.Errorf("expected fallback, got %s", value)
	}
}
