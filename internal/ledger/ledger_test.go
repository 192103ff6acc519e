package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestEntryEncodesKindAndKeyFields(t *testing.T) {
	projectID := uuid.New()
	entry := Entry{
		Kind:            KindUnitRedeemed,
		ProjectID:       projectID,
		HashedPrivateID: "abc123",
		Note:            "client redeemed unit",
	}
	raw, err := entry.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["kind"] != KindUnitRedeemed {
		t.Fatalf("expected kind %q, got %v", KindUnitRedeemed, decoded["kind"])
	}
	if decoded["projectId"] != projectID.String() {
		t.Fatalf("expected project id in payload")
	}
	if decoded["hashedPrivateId"] != "abc123" {
		t.Fatalf("expected hashed private id in payload")
	}
}

func TestFakeLedgerRedemptionLifecycle(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	projectID := uuid.New()

	prior, err := f.CheckRedemption(ctx, projectID, "h1")
	if err != nil || prior {
		t.Fatalf("fresh unit must have no prior confirmation")
	}

	ref, err := f.SubmitRedemption(ctx, projectID, "h1", "note")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ref.Hash == "" || ref.BlockHeight == 0 {
		t.Fatalf("expected a finalized tx ref, got %+v", ref)
	}

	confirmed, err := f.CheckRedemption(ctx, projectID, "h1")
	if err != nil || !confirmed {
		t.Fatalf("submitted redemption must be visible")
	}
	if f.Redemptions != 1 {
		t.Fatalf("expected 1 submission, got %d", f.Redemptions)
	}
}

func TestFakeLedgerScriptedErrors(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	projectID := uuid.New()

	boom := errors.New("node down")
	f.FailChecks(boom)
	if _, err := f.CheckRedemption(ctx, projectID, "h1"); !errors.Is(err, boom) {
		t.Fatalf("expected scripted check error, got %v", err)
	}

	f.FailSubmits(ErrCommitTimeout)
	if _, err := f.SubmitRedemption(ctx, projectID, "h1", "note"); !errors.Is(err, ErrCommitTimeout) {
		t.Fatalf("expected scripted submit error, got %v", err)
	}
	if f.Redemptions != 0 {
		t.Fatalf("failed submit must not count")
	}
}
