package domain

// KeyPrefix namespaces every key lumina writes into the shared KV store.
const KeyPrefix = "lumina:"

// VectorConfig holds internal vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model            string
	Dimensions       int
	DistanceMetric   string
	Algorithm        string
	QueryInstruction string
	Collection       string
}

// DefaultVectorConfig returns the default configuration tuned for SigLIP so400m.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "google/siglip-so400m-patch14-384",
		Dimensions:     1152,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
		Collection:     "lumina_products_v1",
	}
}
