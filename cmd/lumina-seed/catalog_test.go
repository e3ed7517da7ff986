package main

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shoe.jpg", "jpeg-bytes")
	path := writeFile(t, dir, "products.yaml", `
items:
  - id: sku-1
    text: red trail running shoes
    payload:
      title: Trail Runner
      category: shoes
      price: 89.9
      in_stock: true
  - id: sku-2
    image: shoe.jpg
    payload:
      title: Court Classic
      category: shoes
`)

	items, err := loadCatalog(path)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "sku-1", items[0].ID)
	assert.Equal(t, "red trail running shoes", items[0].Text)
	assert.Equal(t, 89.9, items[0].Payload["price"])
	assert.Equal(t, true, items[0].Payload["in_stock"])
	assert.Empty(t, items[0].ImageBase64)

	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")), items[1].ImageBase64)
}

func TestLoadCatalog_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"no payload":    "items:\n  - id: a\n    text: x\n",
		"missing image": "items:\n  - id: a\n    image: nope.jpg\n    payload: {title: x}\n",
		"bad yaml":      "items: [\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, "seed.yaml", content)
			_, err := loadCatalog(path)
			assert.Error(t, err)
		})
	}

	_, err := loadCatalog(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}
