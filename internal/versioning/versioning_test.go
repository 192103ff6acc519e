package versioning

import (
	"testing"
	"time"
)

type note struct {
	Versioned
	Text    string
	History []string
}

func (n *note) snapshot() {
	n.History = append(n.History, n.Text)
}

func TestUpdateAppendsSnapshotBeforePatch(t *testing.T) {
	n := &note{Text: "first"}
	err := Update(&n.Versioned, n.snapshot, func() { n.Text = "second" })
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Text != "second" {
		t.Fatalf("expected patched text, got %q", n.Text)
	}
	if len(n.History) != 1 || n.History[0] != "first" {
		t.Fatalf("expected prior state in history, got %v", n.History)
	}
	if !n.IsEdited {
		t.Fatalf("expected IsEdited after update")
	}

	if err := Update(&n.Versioned, n.snapshot, func() { n.Text = "third" }); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if len(n.History) != 2 || n.History[1] != "second" {
		t.Fatalf("expected two ordered snapshots, got %v", n.History)
	}
}

func TestDeleteTombstonesWithoutSnapshot(t *testing.T) {
	n := &note{Text: "kept"}
	now := time.Now()
	if err := Delete(&n.Versioned, now); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !n.IsDeleted || n.DeletedAt == nil || !n.DeletedAt.Equal(now) {
		t.Fatalf("expected tombstone markers, got %+v", n.Versioned)
	}
	if n.Text != "kept" || len(n.History) != 0 {
		t.Fatalf("delete must not alter content or history")
	}
}

func TestDeletedRecordRejectsFurtherWrites(t *testing.T) {
	n := &note{Text: "x"}
	if err := Delete(&n.Versioned, time.Now()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := Update(&n.Versioned, n.snapshot, func() { n.Text = "y" }); err != ErrAlreadyDeleted {
		t.Fatalf("expected ErrAlreadyDeleted, got %v", err)
	}
	if n.Text != "x" || len(n.History) != 0 || n.IsEdited {
		t.Fatalf("rejected update must leave record untouched")
	}
	if err := Delete(&n.Versioned, time.Now()); err != ErrAlreadyDeleted {
		t.Fatalf("expected ErrAlreadyDeleted on repeat delete, got %v", err)
	}
}
