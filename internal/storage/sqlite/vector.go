package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"
)

// serializeEmbedding packs a float32 vector into little-endian bytes for the
// embedding BLOB column
func serializeEmbedding(embedding []float32) []byte {
	data := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}

// deserializeEmbedding unpacks an embedding BLOB
func deserializeEmbedding(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding data length: %d", len(data))
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return embedding, nil
}

// l2Distance is the Euclidean distance between two vectors. Lower is closer.
func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
