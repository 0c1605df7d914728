package notify

import (
	"context"
	"testing"
)

func TestInbox(t *testing.T) {
	ctx := context.Background()
	inbox := NewInbox(2)

	inbox.Notify(ctx, Notice{UserID: "a", Message: "1"})
	inbox.Notify(ctx, Notice{UserID: "a", Message: "2"})
	inbox.Notify(ctx, Notice{UserID: "a", Message: "3"})
	inbox.Notify(ctx, Notice{UserID: "b", Message: "x"})

	got := inbox.Drain("a")
	if len(got) != 2 || got[0].Message != "2" || got[1].Message != "3" {
		t.Errorf("Expected the 2 newest notices, got %+v", got)
	}
	if len(inbox.Drain("a")) != 0 {
		t.Error("Expected Drain to clear the inbox")
	}
	if len(inbox.Drain("b")) != 1 {
		t.Error("Expected notices of other users to be kept")
	}
}

func TestMulti(t *testing.T) {
	var count int
	counter := Func(func(context.Context, Notice) { count++ })
	Multi{counter, counter, LogSink{}}.Notify(context.Background(), Notice{UserID: "a"})
	if count != 2 {
		t.Errorf("Expected 2 deliveries, got %d", count)
	}
}
