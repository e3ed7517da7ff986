package catalog

import (
	"strings"
)

// Item is a catalog entry: a point in the vector index plus its payload.
type Item struct {
	id      string
	vector  []float32
	payload map[string]any
}

// NewItem creates an Item. An empty id means "assign on upsert".
func NewItem(id string, vector []float32, payload map[string]any) Item {
	if payload == nil {
		payload = map[string]any{}
	}
	return Item{id: id, vector: vector, payload: payload}
}

// ID returns the item id.
func (i Item) ID() string { return i.id }

// Vector returns the embedding vector.
func (i Item) Vector() []float32 { return i.vector }

// Payload returns the item attributes.
func (i Item) Payload() map[string]any { return i.payload }

// WithID returns a copy of the item carrying the given id.
func (i Item) WithID(id string) Item {
	i.id = id
	return i
}

// StringField returns a trimmed string payload value, or "" when missing or not a string.
func StringField(payload map[string]any, name string) string {
	s, _ := payload[name].(string)
	return strings.TrimSpace(s)
}
