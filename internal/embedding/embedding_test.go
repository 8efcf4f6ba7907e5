package embedding

import (
	"context"
	"testing"
)

// hashProvider is a deterministic, offline stand-in for GenaiProvider used
// in tests.
type hashProvider struct {
	dims int
}

func (h hashProvider) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		vec := make([]float64, h.dims)
		for j, r := range t {
			vec[j%h.dims] += float64(r)
		}
		out[i] = vec
	}
	return out, nil
}

func TestProviderInterfaceSatisfiedByHashProvider(t *testing.T) {
	var p Provider = hashProvider{dims: 4}
	vecs, err := p.Embed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	for _, v := range vecs {
		if len(v) != 4 {
			t.Errorf("vector dim = %d, want 4", len(v))
		}
	}
}

func TestNewGenaiProviderRequiresAPIKey(t *testing.T) {
	_, err := NewGenaiProvider(context.Background(), "", "text-embedding-004", 256, 5)
	if err == nil {
		t.Fatal("expected error when apiKey is empty")
	}
}
