package db

import (
	"errors"
	"fmt"
	"strconv"
)

// DistanceMetric of the vector field.
type DistanceMetric string

// Supported metrics. The catalog always uses cosine.
const (
	DistanceCosine DistanceMetric = "COSINE"
	DistanceIP     DistanceMetric = "IP"
	DistanceL2     DistanceMetric = "L2"
)

// AttributeKind is the FT type of a filterable hash field.
type AttributeKind string

// Attribute kinds. Booleans are stored as "true"/"false" tags.
const (
	KindTag     AttributeKind = "TAG"
	KindNumeric AttributeKind = "NUMERIC"
)

// Attribute is one filterable hash field.
type Attribute struct {
	Name     string
	Kind     AttributeKind
	Sortable bool
}

// VectorField is the HNSW FLOAT32 vector of an index.
type VectorField struct {
	Name           string
	Dim            int
	Distance       DistanceMetric
	M              int // 0 keeps the server default
	EFConstruction int // 0 keeps the server default
}

// IndexDefinition is an FT index over the hashes under Prefix.
type IndexDefinition struct {
	Name       string
	Prefix     string
	Attributes []Attribute
	Vector     VectorField
}

// Validate checks that the definition can be sent to FT.CREATE.
func (d *IndexDefinition) Validate() error {
	if !IsValidIdentifier(d.Name) {
		return fmt.Errorf("invalid index name %q", d.Name)
	}
	if d.Prefix == "" {
		return errors.New("index prefix is required")
	}
	if d.Vector.Name == "" || d.Vector.Dim <= 0 {
		return fmt.Errorf("vector field needs a name and a positive dim, got %q/%d", d.Vector.Name, d.Vector.Dim)
	}

	seen := map[string]bool{d.Vector.Name: true}
	for _, a := range d.Attributes {
		if a.Name == "" {
			return errors.New("attribute name is required")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate field %q", a.Name)
		}
		seen[a.Name] = true
		if a.Kind != KindTag && a.Kind != KindNumeric {
			return fmt.Errorf("attribute %q: unknown kind %q", a.Name, a.Kind)
		}
	}
	return nil
}

// Args renders the FT.CREATE arguments that follow the command name.
func (d *IndexDefinition) Args() []string {
	args := []string{d.Name, "ON", "HASH", "PREFIX", "1", d.Prefix, "SCHEMA"}
	for _, a := range d.Attributes {
		args = append(args, a.Name, string(a.Kind))
		if a.Sortable {
			args = append(args, "SORTABLE")
		}
	}

	v := d.Vector
	distance := v.Distance
	if distance == "" {
		distance = DistanceCosine
	}
	attrs := []string{"TYPE", "FLOAT32", "DIM", strconv.Itoa(v.Dim), "DISTANCE_METRIC", string(distance)}
	if v.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(v.M))
	}
	if v.EFConstruction > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(v.EFConstruction))
	}
	args = append(args, v.Name, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
	return append(args, attrs...)
}

// IsValidIdentifier reports whether s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-':
		default:
			return false
		}
	}
	return true
}
