package artifactcache

import (
	"context"
	"testing"

	"github.com/panelforge/hostd/src/hostd/storage"
)

func newTestCache(t *testing.T, devMode bool) *Cache {
	t.Helper()
	backend, err := storage.New(storage.Config{
		Type:  "local",
		Local: storage.LocalConfig{BasePath: t.TempDir()},
	})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return New(backend, devMode)
}

func TestSetThenGet(t *testing.T) {
	c := newTestCache(t, false)
	ctx := context.Background()

	key := "panel:/abs/path/panels/editor:deadbeef"
	if err := c.Set(ctx, key, `{"bundle":"..."}`); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, ok, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if value != `{"bundle":"..."}` {
		t.Errorf("value = %q", value)
	}
}

func TestGetMissReturnsNoError(t *testing.T) {
	c := newTestCache(t, false)
	_, ok, err := c.Get(context.Background(), "panel:/nowhere:0000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected cache miss for unknown key")
	}
}

func TestDevModeBypassesReadsNotWrites(t *testing.T) {
	c := newTestCache(t, true)
	ctx := context.Background()

	key := "panel:/abs/path:deadbeef"
	if err := c.Set(ctx, key, "value"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	_, ok, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected dev-mode Get to always report a miss")
	}
}

func TestDistinctKindsDoNotCollide(t *testing.T) {
	c := newTestCache(t, false)
	ctx := context.Background()

	if err := c.Set(ctx, "panel:/abs:sha1", "panel-value"); err != nil {
		t.Fatalf("Set panel: %v", err)
	}
	if err := c.Set(ctx, "worker:/abs:sha1", "worker-value"); err != nil {
		t.Fatalf("Set worker: %v", err)
	}

	panelValue, _, err := c.Get(ctx, "panel:/abs:sha1")
	if err != nil {
		t.Fatalf("Get panel: %v", err)
	}
	workerValue, _, err := c.Get(ctx, "worker:/abs:sha1")
	if err != nil {
		t.Fatalf("Get worker: %v", err)
	}
	if panelValue == workerValue {
		t.Errorf("distinct kinds collided: both = %q", panelValue)
	}
}
