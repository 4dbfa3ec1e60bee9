package mfsstore

import (
	"encoding/json"
	"testing"
)

func TestCompareValuesOrdering(t *testing.T) {
	// Ascending by the mixed-type rule
	ordered := []any{
		nil,
		false,
		true,
		float64(-3),
		float64(2),
		float64(10),
		"",
		"10",
		"A",
		"B",
		"a",
		[]any{float64(1)},
		map[string]any{"x": float64(1)},
	}

	for i := 0; i < len(ordered)-1; i++ {
		if c := compareValues(ordered[i], ordered[i+1]); c >= 0 {
			t.Errorf("compareValues(%v, %v) = %d, want < 0", ordered[i], ordered[i+1], c)
		}
		if c := compareValues(ordered[i+1], ordered[i]); c <= 0 {
			t.Errorf("compareValues(%v, %v) = %d, want > 0", ordered[i+1], ordered[i], c)
		}
	}

	if !valuesEqual(map[string]any{"a": float64(1), "b": "x"}, map[string]any{"b": "x", "a": float64(1)}) {
		t.Error("objects with the same fields should compare equal")
	}
	if valuesEqual(float64(1), "1") {
		t.Error("number and string must not compare equal")
	}
}

func TestSortedIndexMultiKeys(t *testing.T) {
	ix := newSortedIndex(false)

	if !ix.addKey("PIT", "101") || !ix.addKey("PIT", "103") {
		t.Fatal("addKey should report new keys")
	}
	if ix.addKey("PIT", "101") {
		t.Error("addKey must not duplicate a key within one list")
	}
	ix.addKey("BAL", "102")

	if got := ix.keys("PIT"); !keysEqual(got, []Key{"101", "103"}) {
		t.Errorf("keys(PIT) = %v, want insertion order [101 103]", got)
	}

	if ix.removeKey("PIT", "999") {
		t.Error("removeKey of an absent key should report false")
	}
	ix.removeKey("PIT", "101")
	ix.removeKey("PIT", "103")
	if ix.keys("PIT") != nil {
		t.Error("emptied list should be removed from the index")
	}
	if ix.size() != 1 {
		t.Errorf("size = %d, want 1", ix.size())
	}
}

func TestSortedIndexBetween(t *testing.T) {
	ix := newSortedIndex(true)
	ix.setOwner(float64(1990), "a")
	ix.setOwner(float64(1995), "b")
	ix.setOwner(float64(2000), "c")
	ix.setOwner(float64(2005), "d")
	ix.setOwner("2000", "s")

	got := ix.between(float64(1995), float64(2000))
	if !keysEqual(got, []Key{"b", "c"}) {
		t.Errorf("between(1995, 2000) = %v, want [b c]", got)
	}

	if got := ix.between(float64(3000), float64(4000)); len(got) != 0 {
		t.Errorf("between outside range = %v, want empty", got)
	}
}

func TestSortedIndexPersistedForm(t *testing.T) {
	unique := newSortedIndex(true)
	unique.setOwner("b@example.com", "2")
	unique.setOwner("a@example.com", "1")

	data, err := json.Marshal(unique)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `[["a@example.com","1"],["b@example.com","2"]]`
	if string(data) != want {
		t.Errorf("unique form = %s, want %s", data, want)
	}

	multi := newSortedIndex(false)
	multi.addKey(float64(2), "x")
	multi.addKey(nil, "y")
	multi.addKey(float64(2), "z")

	data, err = json.Marshal(multi)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want = `[[null,["y"]],[2,["x","z"]]]`
	if string(data) != want {
		t.Errorf("multi form = %s, want %s", data, want)
	}

	restored := newSortedIndex(false)
	if err := restored.decode(data); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got := restored.keys(float64(2)); !keysEqual(got, []Key{"x", "z"}) {
		t.Errorf("restored keys(2) = %v, want [x z]", got)
	}
	if got := restored.keys(nil); !keysEqual(got, []Key{"y"}) {
		t.Errorf("restored keys(null) = %v, want [y]", got)
	}
}

func TestSortedIndexDecodeNumericKeys(t *testing.T) {
	ix := newSortedIndex(true)
	if err := ix.decode([]byte(`[["PIT", 101]]`)); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if owner, ok := ix.owner("PIT"); !ok || owner != "101" {
		t.Errorf("owner(PIT) = %q, %v; want 101", owner, ok)
	}

	if err := ix.decode([]byte(`{"not": "pairs"}`)); err == nil {
		t.Error("decode should reject a non-array payload")
	}
}
