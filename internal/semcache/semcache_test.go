package semcache

import (
	"sync"
	"testing"
	"time"

	"github.com/pleaseai/repograph/internal/semantic"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheRoundTrip(t *testing.T) {
	c := openTestCache(t)
	key := Key("src/auth.py", "function", "login")
	hash := EntityHash("src/auth.py", "function", "login", "", "def login(): pass", "")

	if _, ok := c.Get(key, hash); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	f := &semantic.Feature{Description: "authenticate user credentials", Keywords: []string{"auth"}}
	if err := c.Set(key, hash, f); err != nil {
		t.Fatal(err)
	}
	got, ok := c.Get(key, hash)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Description != f.Description || len(got.Keywords) != 1 {
		t.Fatalf("got %+v", got)
	}
	if !c.Has(key) {
		t.Fatal("Has should report the row")
	}
}

func TestCacheHashMismatchEvicts(t *testing.T) {
	c := openTestCache(t)
	key := Key("src/auth.py", "function", "login")
	if err := c.Set(key, "aaaa", &semantic.Feature{Description: "authenticate user"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(key, "bbbb"); ok {
		t.Fatal("stale hash should miss")
	}
	// The mismatch deletes the row entirely.
	if c.Has(key) {
		t.Fatal("stale row should have been evicted")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := openTestCache(t)
	c.SetTTL(time.Nanosecond)
	key := Key("src/a.py", "class", "User")
	if err := c.Set(key, "h", &semantic.Feature{Description: "model user records"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, ok := c.Get(key, "h"); ok {
		t.Fatal("expired entry should miss")
	}
	if c.Has(key) {
		t.Fatal("expired row should have been evicted")
	}
}

func TestCacheUpsertAndClear(t *testing.T) {
	c := openTestCache(t)
	key := Key("src/a.py", "function", "f")
	if err := c.Set(key, "h1", &semantic.Feature{Description: "first description"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(key, "h2", &semantic.Feature{Description: "second description"}); err != nil {
		t.Fatal(err)
	}
	got, ok := c.Get(key, "h2")
	if !ok || got.Description != "second description" {
		t.Fatalf("upsert lost: %+v ok=%v", got, ok)
	}
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if c.Has(key) {
		t.Fatal("Clear left rows")
	}
}

func TestCachePurgeCountsExpired(t *testing.T) {
	c := openTestCache(t)
	if err := c.Set("k1", "h", &semantic.Feature{Description: "one"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("k2", "h", &semantic.Feature{Description: "two"}); err != nil {
		t.Fatal(err)
	}
	// Nothing is older than the default TTL yet.
	n, err := c.Purge()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("purged %d fresh rows", n)
	}
	c.SetTTL(-time.Hour)
	n, err = c.Purge()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("purged %d, want 2", n)
	}
}

func TestEntityHashStable(t *testing.T) {
	a := EntityHash("f.py", "function", "x", "", "body", "doc")
	b := EntityHash("f.py", "function", "x", "", "body", "doc")
	if a != b {
		t.Fatalf("hash not stable: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("hash %q not 16 hex digits", a)
	}
	if EntityHash("f.py", "function", "x", "", "body2", "doc") == a {
		t.Fatal("hash should change with source")
	}
}

func TestOpenMemorySurvivesConcurrentReads(t *testing.T) {
	c := openTestCache(t)
	key := Key("src/db.py", "function", "connect")
	hash := EntityHash("src/db.py", "function", "connect", "", "def connect(): pass", "")
	if err := c.Set(key, hash, &semantic.Feature{Description: "open database connection"}); err != nil {
		t.Fatal(err)
	}

	// Parallel reads force the pool to hand out connections; an unpinned
	// :memory: pool would serve a fresh empty database to the extras.
	var wg sync.WaitGroup
	misses := make([]bool, 8)
	for i := 0; i < len(misses); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := c.Get(key, hash)
			misses[i] = !ok
		}()
	}
	wg.Wait()
	for i, miss := range misses {
		if miss {
			t.Fatalf("reader %d missed a written entry", i)
		}
	}
}
