package rag

import (
	"math"
	"testing"
)

func TestEncodeDecodeVector(t *testing.T) {
	want := []float32{0.5, -1.25, 3, 0}
	blob, err := EncodeVector(want)
	if err != nil {
		t.Fatalf("EncodeVector error: %v", err)
	}
	if len(blob) != 4+4*len(want) {
		t.Fatalf("blob length = %d", len(blob))
	}
	got, err := DecodeVector(blob)
	if err != nil {
		t.Fatalf("DecodeVector error: %v", err)
	}
	assertFloat32Slice(t, got, want)
}

func TestEncodeVectorRejects(t *testing.T) {
	if _, err := EncodeVector(nil); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := EncodeVector([]float32{1, float32(math.NaN())}); err == nil {
		t.Error("expected error for NaN")
	}
}

func TestDecodeVectorRejects(t *testing.T) {
	blob, _ := EncodeVector([]float32{1, 2})
	tests := map[string][]byte{
		"short header": {1, 0},
		"truncated":    blob[:len(blob)-1],
		"zero dim":     {0, 0, 0, 0},
	}
	for name, b := range tests {
		if _, err := DecodeVector(b); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			na, err := normalize(tt.a)
			if err != nil {
				t.Fatalf("normalize a: %v", err)
			}
			nb, err := normalize(tt.b)
			if err != nil {
				t.Fatalf("normalize b: %v", err)
			}
			if got := similarity(na, nb); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeErrors(t *testing.T) {
	if _, err := normalize(nil); err == nil {
		t.Error("expected empty vector error")
	}
	if _, err := normalize([]float32{0, 0}); err == nil {
		t.Error("expected zero vector error")
	}
	if _, err := normalize([]float32{float32(math.NaN())}); err == nil {
		t.Error("expected invalid value error")
	}
}
