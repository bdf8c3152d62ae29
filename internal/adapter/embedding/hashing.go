package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"incidentkb/internal/adapter/analyzer"
)

// HashingEmbedder is an offline embedder. Each feature from the tokenizer is
// hashed into one of dimension buckets with a hash-derived sign, then the
// vector is scaled to unit length. Texts sharing terms land close together,
// which is enough for tests, demos and air-gapped installs.
type HashingEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashingEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(true),
	}
}

func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dimension)
	for _, feature := range e.tokenizer.Features(text) {
		h := fnv.New64a()
		h.Write([]byte(feature))
		sum := h.Sum64()

		bucket := int(sum % uint64(e.dimension))
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (e *HashingEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashingEmbedder) ModelName() string {
	return "hashing"
}
