package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegistryCheckAll(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register("storage", CheckerFunc(func(ctx context.Context) error { return nil }))
	r.Register("redis", CheckerFunc(func(ctx context.Context) error { return errors.New("connection refused") }))

	if names := r.List(); len(names) != 2 || names[0] != "redis" || names[1] != "storage" {
		t.Errorf("List() = %v", names)
	}

	results := r.CheckAll(context.Background())
	if results["storage"] != nil {
		t.Errorf("storage: %v", results["storage"])
	}
	if results["redis"] == nil {
		t.Error("redis failure not reported")
	}
	if Ready(results) {
		t.Error("registry with a failing check must not be ready")
	}

	r.Unregister("redis")
	if !Ready(r.CheckAll(context.Background())) {
		t.Error("expected ready after removing the failing check")
	}
}

func TestRegistryTimeout(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Register("slow", CheckerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	start := time.Now()
	results := r.CheckAll(context.Background())
	if !errors.Is(results["slow"], context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", results["slow"])
	}
	if time.Since(start) > time.Second {
		t.Error("timeout not applied")
	}
}

func TestReadyEmpty(t *testing.T) {
	if !Ready(nil) {
		t.Error("no checks means ready")
	}
}
