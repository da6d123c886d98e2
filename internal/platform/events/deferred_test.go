package events

import (
	"context"
	"testing"
)

func TestOnCommit_RunsImmediatelyWithoutDeferred(t *testing.T) {
	ran := false
	OnCommit(context.Background(), func() { ran = true })
	if !ran {
		t.Error("expected callback to run immediately")
	}
}

func TestDeferred_RunAndDiscard(t *testing.T) {
	ctx, d := Defer(context.Background())
	var order []int
	OnCommit(ctx, func() { order = append(order, 1) })
	OnCommit(ctx, func() { order = append(order, 2) })
	if len(order) != 0 {
		t.Fatal("expected callbacks to be queued")
	}
	d.Run()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("expected [1 2], got %v", order)
	}

	OnCommit(ctx, func() { order = append(order, 3) })
	d.Discard()
	d.Run()
	if len(order) != 2 {
		t.Errorf("expected discarded callback not to run, got %v", order)
	}
}

func TestDefer_NestedLeavesQueueToOwner(t *testing.T) {
	ctx, outer := Defer(context.Background())
	inner, d := Defer(ctx)

	ran := false
	OnCommit(inner, func() { ran = true })
	d.Run()
	if ran {
		t.Fatal("expected nested Run to leave callbacks to the owner")
	}
	if len(outer.fns) != 1 {
		t.Fatalf("expected 1 queued callback, got %d", len(outer.fns))
	}
	outer.Run()
	if !ran {
		t.Error("expected owner Run to execute the callback")
	}
}
