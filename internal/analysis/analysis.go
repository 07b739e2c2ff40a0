// Package analysis loads the declaration dumps produced by source analysis.
package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// Kind is the declaration kind reported by analysis.
type Kind string

const (
	KindPackage     Kind = "package"
	KindClass       Kind = "class"
	KindInterface   Kind = "interface"
	KindObject      Kind = "object"
	KindEnum        Kind = "enum"
	KindEnumEntry   Kind = "enum_entry"
	KindAnnotation  Kind = "annotation"
	KindTypeAlias   Kind = "typealias"
	KindFunction    Kind = "function"
	KindProperty    Kind = "property"
	KindConstructor Kind = "constructor"
)

// IsClasslike reports whether declarations of this kind get a class page.
func (k Kind) IsClasslike() bool {
	switch k {
	case KindClass, KindInterface, KindObject, KindEnum, KindAnnotation, KindTypeAlias:
		return true
	}
	return false
}

// IsMember reports whether declarations of this kind are callables.
func (k Kind) IsMember() bool {
	switch k {
	case KindFunction, KindProperty, KindConstructor:
		return true
	}
	return false
}

// Module is one build module's analysis dump.
type Module struct {
	Module       string        `json:"module" yaml:"module"`
	Declarations []Declaration `json:"declarations" yaml:"declarations"`
}

// Declaration is one documented declaration. DRIs are kept in serialized
// form; parsing them is the graph builder's job.
type Declaration struct {
	DRI  string `json:"dri" yaml:"dri"`
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`
	// Supertypes lists the DRIs of direct supertypes.
	Supertypes []string `json:"supertypes,omitempty" yaml:"supertypes,omitempty"`
	// Origin is the DRI of the declaration an inherited member was copied from.
	Origin string `json:"origin,omitempty" yaml:"origin,omitempty"`
	// Inherits lists members a class inherits without redeclaring them.
	Inherits []string `json:"inherits,omitempty" yaml:"inherits,omitempty"`
	// Links lists DRIs referenced from the declaration's documentation.
	Links []string `json:"links,omitempty" yaml:"links,omitempty"`
	// Children may nest declarations instead of listing them flat.
	Children []Declaration `json:"children,omitempty" yaml:"children,omitempty"`
}

// Flatten returns every declaration of m in document order with nested
// children expanded after their parent.
func (m *Module) Flatten() []Declaration {
	var out []Declaration
	var walk func([]Declaration)
	walk = func(decls []Declaration) {
		for _, d := range decls {
			children := d.Children
			d.Children = nil
			out = append(out, d)
			walk(children)
		}
	}
	walk(m.Declarations)
	return out
}

// Load reads a dump from disk. The format follows the extension: .json,
// .yaml or .yml, optionally compressed with a trailing .zst.
func Load(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening analysis dump: %w", err)
	}
	defer f.Close()

	name := path
	var r io.Reader = f
	if strings.HasSuffix(name, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
		name = strings.TrimSuffix(name, ".zst")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading analysis dump %s: %w", path, err)
	}

	switch ext := filepath.Ext(name); ext {
	case ".json":
		return Decode(data, FormatJSON)
	case ".yaml", ".yml":
		return Decode(data, FormatYAML)
	default:
		return nil, fmt.Errorf("analysis dump %s: unsupported extension %q", path, ext)
	}
}

// Format selects the dump encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// Decode parses a dump held in memory.
func Decode(data []byte, format Format) (*Module, error) {
	var m Module
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decoding YAML analysis dump: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding JSON analysis dump: %w", err)
		}
	}
	if m.Module == "" {
		return nil, fmt.Errorf("analysis dump has no module name")
	}
	return &m, nil
}
