package index

import (
	"fmt"

	"github.com/kailas-cloud/lumina/internal/db"
	"github.com/kailas-cloud/lumina/internal/domain/catalog"
	"github.com/kailas-cloud/lumina/internal/domain/catalog/field"
)

// Reserved hash fields.
const (
	idField      = "__id"
	payloadField = "__payload"
	vectorField  = "__vector"
)

// buildIndex maps the catalog schema onto an FT index: the id as a sortable
// tag, one TAG/NUMERIC attribute per filterable field and the HNSW/COSINE vector.
func buildIndex(schema catalog.Schema, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	attrs := []db.Attribute{{Name: idField, Kind: db.KindTag, Sortable: true}}
	for _, f := range schema.FilterableFields() {
		switch f.FieldType() {
		case field.Tag, field.Bool:
			attrs = append(attrs, db.Attribute{Name: f.Name(), Kind: db.KindTag})
		case field.Numeric:
			attrs = append(attrs, db.Attribute{Name: f.Name(), Kind: db.KindNumeric})
		default:
			return nil, fmt.Errorf("unknown field type: %s", f.FieldType())
		}
	}

	def := &db.IndexDefinition{
		Name:       indexName(schema.Collection()),
		Prefix:     collectionPrefix(schema.Collection()),
		Attributes: attrs,
		Vector: db.VectorField{
			Name:           vectorField,
			Dim:            schema.VectorDim(),
			Distance:       db.DistanceCosine,
			M:              hnsw.M,
			EFConstruction: hnsw.EFConstruct,
		},
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("index definition: %w", err)
	}
	return def, nil
}
