package configuration

import "testing"

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("storage:\n  driver: filesystem\n  rootdirectory: /var/lib/resourcex\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.HTTP.Addr != ":5000" {
		t.Errorf("HTTP.Addr = %q, want default", c.HTTP.Addr)
	}
	if c.HTTP.Prefix != "/api/v1" {
		t.Errorf("HTTP.Prefix = %q, want default", c.HTTP.Prefix)
	}
}

func TestParseMissingDriver(t *testing.T) {
	_, err := Parse([]byte("http:\n  addr: :8080\n"))
	if err == nil {
		t.Fatal("expected error for missing storage.driver")
	}
}

func TestParseFull(t *testing.T) {
	yamlDoc := `
log:
  level: debug
storage:
  driver: inmemory
http:
  addr: :8080
  prefix: /api/v2
mirror:
  url: https://mirror.example.com/api/v1
`
	c, err := Parse([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", c.Log.Level)
	}
	if c.Storage.Driver != "inmemory" {
		t.Errorf("Storage.Driver = %q", c.Storage.Driver)
	}
	if c.HTTP.Addr != ":8080" || c.HTTP.Prefix != "/api/v2" {
		t.Errorf("HTTP = %+v", c.HTTP)
	}
	if c.Mirror.URL != "https://mirror.example.com/api/v1" {
		t.Errorf("Mirror.URL = %q", c.Mirror.URL)
	}
}
