// Package catalog provides the static key -> descriptor metadata table used to
// annotate stored telemetry samples. The catalog is loaded once at startup and
// never reloaded.
package catalog

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Descriptor is the engineering metadata attached to one telemetry key.
// All fields are optional and default to empty strings.
type Descriptor struct {
	Description string `yaml:"description"`
	OpsNom      string `yaml:"ops_nom"`
	EngNom      string `yaml:"eng_nom"`
	Units       string `yaml:"units"`
	MinValue    string `yaml:"min_value"`
	MaxValue    string `yaml:"max_value"`
	EnumValues  string `yaml:"enum_values"`
	FormatSpec  string `yaml:"format_spec"`
}

// Parameter is one catalog entry: a public telemetry key plus its descriptor.
type Parameter struct {
	Key        string `yaml:"key"`
	Descriptor `yaml:",inline"`
}

type document struct {
	Parameters []Parameter `yaml:"parameters"`
}

// Catalog is an immutable key -> Descriptor lookup table.
type Catalog struct {
	descriptors map[string]Descriptor
	keys        []string
}

// Load reads the descriptor document at path. A missing or unparseable file is
// never fatal: the built-in default parameter set is used instead.
func Load(path string) *Catalog {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Catalog file %s unavailable, using built-in defaults: %v", path, err)
		return Default()
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		log.Printf("Catalog file %s unparseable, using built-in defaults: %v", path, err)
		return Default()
	}
	if len(doc.Parameters) == 0 {
		log.Printf("Catalog file %s lists no parameters, using built-in defaults", path)
		return Default()
	}

	return build(doc.Parameters)
}

// Default returns the built-in ISS parameter set with its descriptors.
func Default() *Catalog {
	return build(defaultParameters)
}

func build(params []Parameter) *Catalog {
	c := &Catalog{
		descriptors: make(map[string]Descriptor, len(params)),
		keys:        make([]string, 0, len(params)),
	}
	for _, p := range params {
		if p.Key == "" {
			continue
		}
		if _, ok := c.descriptors[p.Key]; ok {
			continue
		}
		c.descriptors[p.Key] = p.Descriptor
		c.keys = append(c.keys, p.Key)
	}
	return c
}

// Lookup returns the descriptor for key. Unknown keys yield a zero Descriptor.
func (c *Catalog) Lookup(key string) Descriptor {
	return c.descriptors[key]
}

// Has reports whether key is part of the catalog.
func (c *Catalog) Has(key string) bool {
	_, ok := c.descriptors[key]
	return ok
}

// Keys returns the subscription key list in document order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.keys))
	copy(keys, c.keys)
	return keys
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.keys)
}

// String describes the catalog for startup logging.
func (c *Catalog) String() string {
	return fmt.Sprintf("catalog(%d parameters)", len(c.keys))
}
