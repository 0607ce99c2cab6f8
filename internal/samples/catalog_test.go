package samples

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	all := c.All()
	if len(all) == 0 {
		t.Fatal("embedded catalog is empty")
	}
	s, ok := c.ForDay(7)
	if !ok {
		t.Fatal("expected a sample for day 7")
	}
	if s.ElementName != "PrimaryButton" {
		t.Errorf("ElementName = %q, want PrimaryButton", s.ElementName)
	}
	if !strings.Contains(s.Code, "PrimaryButton") {
		t.Errorf("Code does not mention the element: %q", s.Code)
	}
}

func TestParse_FirstDuplicateWins(t *testing.T) {
	c, err := Parse([]byte(`
- day: 3
  elementName: First
  code: a
- day: 3
  elementName: Second
  code: b
- day: 4
  elementName: Other
  code: c
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := len(c.All()); got != 2 {
		t.Fatalf("len(All()) = %d, want 2", got)
	}
	s, _ := c.ForDay(3)
	if s.ElementName != "First" {
		t.Errorf("ForDay(3) = %q, want First", s.ElementName)
	}
}

func TestParse_RejectsBadDay(t *testing.T) {
	if _, err := Parse([]byte("- day: 0\n  elementName: X\n")); err == nil {
		t.Error("expected error for day 0")
	}
	if _, err := Parse([]byte("not: [a list")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("- day: 9\n  elementName: Tabs\n  code: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if _, ok := c.ForDay(9); !ok {
		t.Error("expected day 9 in loaded catalog")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	if _, ok := c.ForDay(1); ok {
		t.Error("nil catalog should report no samples")
	}
	if c.All() != nil {
		t.Error("nil catalog All() should be nil")
	}
}
