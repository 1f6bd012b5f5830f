package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingDefaultFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	c, err := Load("")
	if err != nil {
		t.Fatalf("load with no config file: %v", err)
	}
	want := Default()
	if *c != want {
		t.Errorf("expected defaults, got %+v", *c)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("explicit missing path must be an error")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
device_name: workbench
multicast_port: 9876
announce_interval_seconds: 2
poll_interval_millis: 250
notifications_enabled: false
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DeviceName != "workbench" {
		t.Errorf("device_name: got %q", c.DeviceName)
	}
	if c.MulticastPort != 9876 {
		t.Errorf("multicast_port: got %d", c.MulticastPort)
	}
	if c.AnnounceInterval() != 2*time.Second {
		t.Errorf("announce interval: got %v", c.AnnounceInterval())
	}
	if c.PollInterval() != 250*time.Millisecond {
		t.Errorf("poll interval: got %v", c.PollInterval())
	}
	if c.NotificationsEnabled {
		t.Error("notifications_enabled: got true")
	}
	// Untouched keys keep defaults.
	if c.MulticastAddress != Default().MulticastAddress {
		t.Errorf("multicast_address: got %q", c.MulticastAddress)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"port":     "multicast_port: 70000",
		"interval": "announce_interval_seconds: 0",
		"poll":     "poll_interval_millis: 0",
		"ttl":      "peer_ttl_seconds: -1",
	}
	for name, body := range cases {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("::: not yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
