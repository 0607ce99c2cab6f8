// Package samples holds the code-sample catalog that enriches day records.
package samples

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Sample is a named code snippet tagged with the day it belongs to.
type Sample struct {
	Day         int    `yaml:"day"`
	ElementName string `yaml:"elementName"`
	Code        string `yaml:"code"`
}

// Catalog is an ordered list of samples with lookup by day.
type Catalog struct {
	samples []Sample
	byDay   map[int]int
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads a catalog from a YAML file on disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sample catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML list of samples. Entries with a non-positive day are
// rejected; for repeated days the first entry wins.
func Parse(data []byte) (*Catalog, error) {
	var raw []Sample
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing sample catalog: %w", err)
	}

	c := &Catalog{byDay: make(map[int]int, len(raw))}
	for i, s := range raw {
		if s.Day <= 0 {
			return nil, fmt.Errorf("sample %d (%q): day must be positive", i, s.ElementName)
		}
		if _, dup := c.byDay[s.Day]; dup {
			continue
		}
		c.byDay[s.Day] = len(c.samples)
		c.samples = append(c.samples, s)
	}
	return c, nil
}

// New builds a catalog from samples already in memory.
func New(samples []Sample) *Catalog {
	c := &Catalog{byDay: make(map[int]int, len(samples))}
	for _, s := range samples {
		if _, dup := c.byDay[s.Day]; dup {
			continue
		}
		c.byDay[s.Day] = len(c.samples)
		c.samples = append(c.samples, s)
	}
	return c
}

// ForDay returns the sample for day, if any.
func (c *Catalog) ForDay(day int) (Sample, bool) {
	if c == nil {
		return Sample{}, false
	}
	i, ok := c.byDay[day]
	if !ok {
		return Sample{}, false
	}
	return c.samples[i], true
}

// All returns a copy of every sample in catalog order.
func (c *Catalog) All() []Sample {
	if c == nil {
		return nil
	}
	out := make([]Sample, len(c.samples))
	copy(out, c.samples)
	return out
}
