package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"
)

// Dimension matches the vector(1536) column of the documents table.
const Dimension = 1536

// FakeEmbedder provides deterministic embedding vectors for testing.
//
// By default it derives a normalized vector from the content via SHA-256,
// so the same text always embeds identically. Explicit mappings can be
// registered for precise cosine similarity control, and errors can be
// injected per text.
//
// Safe for concurrent use.
type FakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	errs    map[string]error
	calls   []string
}

// NewFakeEmbedder creates a fake embedder producing Dimension-length vectors.
func NewFakeEmbedder() *FakeEmbedder {
	return &FakeEmbedder{
		vectors: make(map[string][]float32),
		errs:    make(map[string]error),
	}
}

// SetVector registers an explicit vector for a given content string.
// Use this to control exact cosine similarity between test inputs.
func (e *FakeEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// SetError makes Embed fail for the given content string.
func (e *FakeEmbedder) SetError(content string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs[content] = err
}

// Calls returns the texts embedded so far, in call order.
func (e *FakeEmbedder) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}

// Embed returns the registered or derived vector for text.
func (e *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, text)
	if err, ok := e.errs[text]; ok {
		return nil, err
	}
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return DeterministicVector(text, Dimension), nil
}

// DeterministicVector generates a normalized vector from content using
// SHA-256. The same content always produces the same vector.
func DeterministicVector(content string, dim int) []float32 {
	hash := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)

	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32],
			hash[(idx+1)%32],
			hash[(idx+2)%32],
			hash[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	return Normalize(vec)
}

// Unit returns a Dimension-length unit vector along the given axis.
func Unit(axis int) []float32 {
	vec := make([]float32, Dimension)
	vec[axis%Dimension] = 1
	return vec
}

// Blend returns a unit vector whose cosine similarity to Unit(axisA) is
// exactly similarity, built in the plane spanned by axisA and axisB.
func Blend(axisA, axisB int, similarity float64) []float32 {
	vec := make([]float32, Dimension)
	vec[axisA%Dimension] = float32(similarity)
	vec[axisB%Dimension] = float32(math.Sqrt(1 - similarity*similarity))
	return vec
}

// Normalize scales vec to unit length in place and returns it.
func Normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
