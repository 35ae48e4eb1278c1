package testutil

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"sync"
)

// MemoryObjectStore is an in-memory storage.ObjectStore.
type MemoryObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	// FailPut makes every Put fail.
	FailPut bool
}

func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{Objects: make(map[string][]byte)}
}

func (s *MemoryObjectStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPut {
		return "", errors.New("object store unavailable")
	}
	s.Objects[key] = append([]byte(nil), data...)
	return "/media/" + key, nil
}

func (s *MemoryObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Objects, key)
	return nil
}

// Has reports whether key is stored.
func (s *MemoryObjectStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Objects[key]
	return ok
}

type fataler interface {
	Helper()
	Fatalf(string, ...any)
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t fataler, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// NoisyPNG returns a PNG that compresses poorly.
func NoisyPNG(t fataler, w, h int) []byte {
	t.Helper()
	// #nosec G404: weak random is fine for test image generation
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// #nosec G115: Intn(256) is safe for uint8
			img.SetRGBA(x, y, color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255})
		}
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode noisy png: %v", err)
	}
	return buf.Bytes()
}
