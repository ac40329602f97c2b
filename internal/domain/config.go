package domain

// KeyPrefix namespaces every key this service writes to a shared key-value store.
const KeyPrefix = "commentlens:"

// VectorConfig holds internal vectorization settings.
type VectorConfig struct {
	Model            string
	Dimensions       int
	QueryInstruction string
	BatchLimit       int
}

// DefaultVectorConfig returns the default configuration tuned for text-embedding-3-small.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		BatchLimit: 100,
	}
}
