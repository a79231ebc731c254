package rulecache

import "testing"

func TestGetInsert(t *testing.T) {
	c := New[int](2)
	if _, ok := c.GetCloned("a"); ok {
		t.Errorf("empty cache should miss")
	}
	c.Insert("a", 1)
	v, ok := c.GetCloned("a")
	if !ok || v != 1 {
		t.Errorf("GetCloned(a) = (%d, %v), want (1, true)", v, ok)
	}
}

func TestEvictionLRU(t *testing.T) {
	c := New[int](2)
	c.Insert("a", 1)
	c.Insert("b", 2)
	// touch "a" so "b" becomes least-recently-used
	if _, ok := c.GetCloned("a"); !ok {
		t.Fatalf("expected a to be present")
	}
	c.Insert("c", 3)
	if _, ok := c.GetCloned("b"); ok {
		t.Errorf("b should have been evicted")
	}
	if _, ok := c.GetCloned("a"); !ok {
		t.Errorf("a should still be cached")
	}
	if _, ok := c.GetCloned("c"); !ok {
		t.Errorf("c should be cached")
	}
}

func TestDefaultCapacity(t *testing.T) {
	c := New[int](0)
	if c == nil {
		t.Fatal("New with non-positive capacity should still construct a cache")
	}
	c.Insert("x", 1)
	if v, ok := c.GetCloned("x"); !ok || v != 1 {
		t.Errorf("GetCloned(x) = (%d, %v), want (1, true)", v, ok)
	}
}

func TestPurge(t *testing.T) {
	c := New[int](4)
	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len after Purge = %d, want 0", c.Len())
	}
}
