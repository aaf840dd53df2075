package typedefs

import "testing"

func TestLRUEvictsOldest(t *testing.T) {
	c := newLRU(2)
	c.put("a@latest", PackageResult{EntryPoint: "a"})
	c.put("b@latest", PackageResult{EntryPoint: "b"})
	c.put("c@latest", PackageResult{EntryPoint: "c"})

	if _, ok := c.get("a@latest"); ok {
		t.Error("expected a@latest to have been evicted")
	}
	if _, ok := c.get("b@latest"); !ok {
		t.Error("expected b@latest to survive")
	}
	if _, ok := c.get("c@latest"); !ok {
		t.Error("expected c@latest to survive")
	}
}

func TestLRUGetRefreshesRecency(t *testing.T) {
	c := newLRU(2)
	c.put("a@latest", PackageResult{})
	c.put("b@latest", PackageResult{})
	c.get("a@latest")
	c.put("c@latest", PackageResult{})

	if _, ok := c.get("b@latest"); ok {
		t.Error("expected b@latest to be evicted instead of a@latest")
	}
	if _, ok := c.get("a@latest"); !ok {
		t.Error("expected a@latest to survive due to recent access")
	}
}
