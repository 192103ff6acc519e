package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Fake is a deterministic in-memory ledger for tests. Scripted errors let
// tests drive the unavailable and indeterminate paths.
type Fake struct {
	mu        sync.Mutex
	redeemed  map[string]bool
	checkErr  error
	submitErr error

	Redemptions int
	Issuances   int
}

func NewFake() *Fake {
	return &Fake{redeemed: map[string]bool{}}
}

// SeedRedemption makes the ledger report a prior confirmed redemption for
// the unit, as if an earlier submission had finalized.
func (f *Fake) SeedRedemption(projectID uuid.UUID, hashedPrivateID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redeemed[string(RedemptionKey(projectID, hashedPrivateID))] = true
}

func (f *Fake) FailChecks(err error)  { f.mu.Lock(); f.checkErr = err; f.mu.Unlock() }
func (f *Fake) FailSubmits(err error) { f.mu.Lock(); f.submitErr = err; f.mu.Unlock() }

func (f *Fake) CheckRedemption(ctx context.Context, projectID uuid.UUID, hashedPrivateID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.redeemed[string(RedemptionKey(projectID, hashedPrivateID))], nil
}

func (f *Fake) SubmitRedemption(ctx context.Context, projectID uuid.UUID, hashedPrivateID, note string) (TxRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return TxRef{}, f.submitErr
	}
	f.Redemptions++
	f.redeemed[string(RedemptionKey(projectID, hashedPrivateID))] = true
	return TxRef{
		Hash:        fmt.Sprintf("fake-redeem-%d", f.Redemptions),
		BlockHeight: int64(f.Redemptions),
	}, nil
}

func (f *Fake) SubmitIssuance(ctx context.Context, projectID uuid.UUID, note string) (TxRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return TxRef{}, f.submitErr
	}
	f.Issuances++
	return TxRef{
		Hash:        fmt.Sprintf("fake-issue-%d", f.Issuances),
		BlockHeight: int64(f.Issuances),
	}, nil
}
