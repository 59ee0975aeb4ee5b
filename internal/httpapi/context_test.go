package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJoinContexts_SecondCancels(t *testing.T) {
	b, cancelB := context.WithCancel(context.Background())
	ctx, cancel := joinContexts(context.Background(), b)
	defer cancel()
	cancelB()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("joined context not canceled by b")
	}
	if !errors.Is(context.Cause(ctx), context.Canceled) {
		t.Fatalf("cause=%v", context.Cause(ctx))
	}
}

func TestJoinContexts_FirstCancels(t *testing.T) {
	a, cancelA := context.WithCancel(context.Background())
	ctx, cancel := joinContexts(a, context.Background())
	defer cancel()
	cancelA()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("joined context not canceled by a")
	}
}

func TestJoinContexts_CancelReleases(t *testing.T) {
	ctx, cancel := joinContexts(context.Background(), context.Background())
	cancel()
	if ctx.Err() == nil {
		t.Fatal("expected canceled context")
	}
}

func TestSetBaseContext(t *testing.T) {
	defer SetBaseContext(nil)
	type key struct{}
	SetBaseContext(context.WithValue(context.Background(), key{}, "v"))
	if serverBaseCtx.Value(key{}) != "v" {
		t.Fatal("base context not installed")
	}
	SetBaseContext(nil)
	if serverBaseCtx != context.Background() {
		t.Fatal("nil should reset to Background")
	}
}
