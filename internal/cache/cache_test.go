package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMakeKey_Formats(t *testing.T) {
	cases := []struct {
		fileID  int64
		pageNum int
		want    string
	}{
		{1, 1, "file:1:page:1"},
		{1, -1, "file:1"},
		{1, 0, "file:1:page:0"},
		{2147483647, 2147483647, "file:2147483647:page:2147483647"},
	}
	for _, c := range cases {
		got := MakeKey(c.fileID, c.pageNum)
		if got != c.want {
			t.Errorf("MakeKey(%d,%d) = %q, want %q", c.fileID, c.pageNum, got, c.want)
		}
	}
}

func TestSetThenGet_ReturnsSameBytes(t *testing.T) {
	c := New(16)
	key := "k"
	val := []byte("hello world")

	if ok := c.Set(key, val, 0); !ok {
		t.Fatal("set returned false")
	}

	v, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit")
	}
	defer v.Release()

	if string(v.Bytes()) != string(val) {
		t.Errorf("got %q, want %q", v.Bytes(), val)
	}
}

func TestGet_MissOnUnknownKey(t *testing.T) {
	c := New(4)
	if _, ok := c.Get("nope"); ok {
		t.Error("expected miss")
	}
}

func TestCapacityOneAlwaysEvictsOnInsert(t *testing.T) {
	c := New(1)
	c.Set("a", []byte("1"), 0)
	c.Set("b", []byte("2"), 0)

	if _, ok := c.Get("a"); ok {
		t.Error("expected a evicted")
	}
	v, ok := c.Get("b")
	if !ok {
		t.Fatal("expected b present")
	}
	v.Release()
	if c.Size() != 1 {
		t.Errorf("size = %d, want 1", c.Size())
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(4)
	c.Set("k", []byte("v"), 30*time.Millisecond)

	v, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit before expiry")
	}
	v.Release()

	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after expiry")
	}
	if c.Size() != 0 {
		t.Errorf("size after expiry = %d, want 0", c.Size())
	}
}

func TestLRUEviction_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Set("a", []byte("1"), 0)
	c.Set("b", []byte("2"), 0)

	// Touch a so it becomes MRU; b is now LRU.
	v, _ := c.Get("a")
	v.Release()

	c.Set("c", []byte("3"), 0)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b (LRU) evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a (recently touched) to survive")
	}
}

func TestInvalidateAndClear(t *testing.T) {
	c := New(4)
	c.Set("a", []byte("1"), 0)
	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected a invalidated")
	}

	c.Set("x", []byte("1"), 0)
	c.Set("y", []byte("2"), 0)
	c.Clear()
	require.Equal(t, 0, c.Size())
}

func TestConcurrentSetGet_NoRaceSizeBounded(t *testing.T) {
	const capacity = 100
	const workers = 8
	const perWorker = 125 // 1000 distinct keys total

	c := New(capacity)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("w%d-k%d", w, i)
				c.Set(key, []byte(key), 0)
				if v, ok := c.Get(key); ok {
					v.Release()
				}
			}
		}(w)
	}
	wg.Wait()

	require.LessOrEqual(t, c.Size(), capacity)
	require.Equal(t, capacity, c.Size())
}

func TestHeldReferenceSurvivesEviction(t *testing.T) {
	c := New(1)
	c.Set("a", []byte("keep me alive"), 0)

	v, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit")
	}

	// Evict "a" by inserting a second key into a capacity-1 cache while the
	// reader still holds its reference.
	c.Set("b", []byte("other"), 0)

	if string(v.Bytes()) != "keep me alive" {
		t.Errorf("bytes changed after eviction while held: %q", v.Bytes())
	}
	v.Release()
}
