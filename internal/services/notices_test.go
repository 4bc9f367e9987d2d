package services

import (
	"testing"
	"time"
)

func TestNotices_AutoExpire(t *testing.T) {
	n := NewNotices(20 * time.Millisecond)
	n.Error("Something failed")

	if len(n.Active()) != 1 {
		t.Fatalf("expected notice to be showing")
	}
	waitFor(t, "notice to expire", func() bool { return len(n.Active()) == 0 })
}

func TestNotices_Dismiss(t *testing.T) {
	n := NewNotices(time.Minute)
	first := n.Info("one")
	n.Success("two")

	n.Dismiss(first.ID)
	active := n.Active()
	if len(active) != 1 || active[0].Message != "two" {
		t.Fatalf("expected only the second notice, got %+v", active)
	}
}

func TestNotices_OnPost(t *testing.T) {
	n := NewNotices(0)
	var got []string
	n.OnPost = func(notice Notice) { got = append(got, notice.Message) }

	n.Info("hello")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("expected OnPost to receive the notice, got %v", got)
	}
}
