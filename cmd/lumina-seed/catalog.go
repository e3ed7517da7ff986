package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/lumina/pkg/client"
)

// seedFile is the products file layout:
//
//	items:
//	  - id: sku-1
//	    text: red trail running shoes
//	    image: images/sku-1.jpg
//	    payload: {title: Trail Runner, category: shoes, price: 89.9, in_stock: true}
type seedFile struct {
	Items []seedItem `yaml:"items"`
}

type seedItem struct {
	ID      string         `yaml:"id"`
	Text    string         `yaml:"text"`
	Image   string         `yaml:"image"` // path relative to the seed file
	Vector  []float32      `yaml:"vector"`
	Payload map[string]any `yaml:"payload"`
}

// loadCatalog reads a seed file and resolves image paths into base64 bodies.
func loadCatalog(path string) ([]client.Item, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	dir := filepath.Dir(path)
	items := make([]client.Item, 0, len(f.Items))
	for i, it := range f.Items {
		if len(it.Payload) == 0 {
			return nil, fmt.Errorf("item %d (%s): payload is required", i, it.ID)
		}
		item := client.Item{ID: it.ID, Text: it.Text, Vector: it.Vector, Payload: it.Payload}
		if it.Image != "" {
			img := it.Image
			if !filepath.IsAbs(img) {
				img = filepath.Join(dir, img)
			}
			raw, err := os.ReadFile(filepath.Clean(img))
			if err != nil {
				return nil, fmt.Errorf("item %d (%s): read image: %w", i, it.ID, err)
			}
			item.ImageBase64 = base64.StdEncoding.EncodeToString(raw)
		}
		items = append(items, item)
	}
	return items, nil
}
