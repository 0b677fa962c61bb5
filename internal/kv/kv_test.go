package kv

import (
	"context"
	"testing"
)

func TestLoadJSONAbsent(t *testing.T) {
	s := NewMemory()
	var doc map[string]any
	status, err := LoadJSON(context.Background(), s, "missing", &doc)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if status != HydrationAbsent {
		t.Fatalf("expected absent, got %s", status)
	}
}

func TestLoadJSONValidRoundTrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	if err := SaveJSON(ctx, s, "doc", map[string]string{"name": "bizgrid"}); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	var doc map[string]string
	status, err := LoadJSON(ctx, s, "doc", &doc)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if status != HydrationValid {
		t.Fatalf("expected valid, got %s", status)
	}
	if doc["name"] != "bizgrid" {
		t.Fatalf("unexpected document: %v", doc)
	}
}

func TestLoadJSONCorruptClearsKey(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	if err := s.Set(ctx, "doc", "{not json"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var doc map[string]any
	status, err := LoadJSON(ctx, s, "doc", &doc)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if status != HydrationRecovered {
		t.Fatalf("expected recovered, got %s", status)
	}
	if _, ok, _ := s.Get(ctx, "doc"); ok {
		t.Fatal("expected corrupt key to be removed")
	}
}
