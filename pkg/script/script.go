// Package script reads bean scripts: YAML documents listing the
// constructions and calls that build an object graph. Each node becomes an
// expression evaluated in order, and a node's id names its value for later
// nodes.
//
//	- id: list
//	  class: java.util.ArrayList
//	  new: true
//	- on: list
//	  call: add
//	  args: [hello]
//	- id: size
//	  on: list
//	  call: size
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidNode means a node or argument is malformed.
	ErrInvalidNode = errors.New("invalid node")
	// ErrUnknownID means a ref or on names an id not defined earlier.
	ErrUnknownID = errors.New("unknown id")
)

// Script is a parsed script.
type Script struct {
	Nodes []Node
}

// Node is one operation. Exactly one of New, Call, Property, Field, Index
// and Array must be set.
type Node struct {
	ID string `yaml:"id"`

	// Target: a class name or the id of an earlier value.
	Class string `yaml:"class"`
	On    string `yaml:"on"`

	New      bool   `yaml:"new"`
	Call     string `yaml:"call"`
	Property string `yaml:"property"`
	Field    string `yaml:"field"`
	Index    *int32 `yaml:"index"`
	// Array is the element type. Without Length the arguments are the
	// elements.
	Array  string `yaml:"array"`
	Length *int32 `yaml:"length"`

	// Args holds nil for a null literal.
	Args []*Arg `yaml:"args"`
}

// UnmarshalYAML decodes a node, rejecting unknown keys.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	if err := checkKeys(value, nodeKeys); err != nil {
		return err
	}
	type plain Node
	return value.Decode((*plain)(n))
}

// Arg is an argument literal. A plain YAML scalar is read by its tag: ints
// become Integer, floats Double. null and ~ decode to a nil *Arg. The
// mapping form names the type and must set exactly one field.
type Arg struct {
	Int    *int32   `yaml:"int"`
	Long   *int64   `yaml:"long"`
	Short  *int16   `yaml:"short"`
	Byte   *int8    `yaml:"byte"`
	Char   *string  `yaml:"char"`
	Double *float64 `yaml:"double"`
	Float  *float32 `yaml:"float"`
	Bool   *bool    `yaml:"bool"`
	String *string  `yaml:"string"`
	Class  *string  `yaml:"class"`
	Ref    *string  `yaml:"ref"`
	Object *Node    `yaml:"object"`
}

// UnmarshalYAML accepts a plain scalar or the mapping form.
func (a *Arg) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		if err := checkKeys(value, argKeys); err != nil {
			return err
		}
		type plain Arg
		return value.Decode((*plain)(a))
	}
	switch value.ShortTag() {
	case "!!bool":
		a.Bool = new(bool)
		return value.Decode(a.Bool)
	case "!!int":
		a.Int = new(int32)
		return value.Decode(a.Int)
	case "!!float":
		a.Double = new(float64)
		return value.Decode(a.Double)
	default:
		s := value.Value
		a.String = &s
	}
	return nil
}

func (a *Arg) kinds() int {
	n := 0
	for _, set := range []bool{
		a.Int != nil, a.Long != nil, a.Short != nil, a.Byte != nil,
		a.Char != nil, a.Double != nil, a.Float != nil, a.Bool != nil,
		a.String != nil, a.Class != nil, a.Ref != nil, a.Object != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

var (
	nodeKeys = yamlKeys(reflect.TypeFor[Node]())
	argKeys  = yamlKeys(reflect.TypeFor[Arg]())
)

func yamlKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool)
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}

// checkKeys rejects mapping keys that are not in known. yaml.Node.Decode
// does not honor KnownFields.
func checkKeys(value *yaml.Node, known map[string]bool) error {
	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		k := value.Content[i]
		if !known[k.Value] {
			return fmt.Errorf("%w: line %d: unknown key %q", ErrInvalidNode, k.Line, k.Value)
		}
	}
	return nil
}

// Parse reads a script. Unknown node keys are rejected.
func Parse(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var nodes []Node
	if err := dec.Decode(&nodes); err != nil {
		if errors.Is(err, io.EOF) {
			return &Script{}, nil
		}
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	return &Script{Nodes: nodes}, nil
}

// ParseFile reads a script from path.
func ParseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	s, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
