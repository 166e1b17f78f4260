package storage

import "testing"

func TestOwner(t *testing.T) {
	if got := Owner(""); got != "anonymous" {
		t.Errorf("Owner(\"\") = %q", got)
	}
	a := Owner("key-a")
	if len(a) != 32 {
		t.Errorf("len(Owner) = %d, want 32", len(a))
	}
	if a == "key-a" || a != Owner("key-a") || a == Owner("key-b") {
		t.Errorf("Owner should be a stable digest distinct per key, got %q", a)
	}
}

func TestCityKey(t *testing.T) {
	if got := CityKey("  New   York "); got != "new york" {
		t.Errorf("CityKey = %q, want %q", got, "new york")
	}
}
