package game

import "testing"

func TestSceneCache_SetGetHas(t *testing.T) {
	cache := NewSceneCache()

	if cache.Has("cave") {
		t.Error("Empty cache should not report a scene")
	}

	cache.Set("cave", "https://img.example/cave.jpg")

	if !cache.Has("cave") {
		t.Error("Cache should report a stored scene")
	}
	url, ok := cache.Get("cave")
	if !ok || url != "https://img.example/cave.jpg" {
		t.Errorf("Unexpected cached value: %q, %v", url, ok)
	}
}

func TestSceneCache_Clear(t *testing.T) {
	cache := NewSceneCache()
	cache.Set("cave", "a")
	cache.Set("forest", "b")

	if cache.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", cache.Len())
	}

	cache.Clear()

	if cache.Len() != 0 {
		t.Errorf("Expected an empty cache after clear, got %d entries", cache.Len())
	}
	if cache.Has("cave") {
		t.Error("Cleared cache should not report scenes")
	}
}

func TestSceneCache_Overwrite(t *testing.T) {
	cache := NewSceneCache()
	cache.Set("cave", "a")
	cache.Set("cave", "b")

	url, _ := cache.Get("cave")
	if url != "b" {
		t.Errorf("Expected the latest value, got %q", url)
	}
	if cache.Len() != 1 {
		t.Errorf("Expected one entry, got %d", cache.Len())
	}
}
