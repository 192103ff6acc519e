// Package ledger is the client side of the external append-only ledger
// that anchors QR issuance and redemption events.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrCommitTimeout means a submission was sent but its outcome is unknown:
// the commit wait expired before the ledger answered. Callers must not
// treat this as success or failure.
var ErrCommitTimeout = errors.New("ledger commit timed out")

// TxRef identifies a finalized ledger transaction.
type TxRef struct {
	Hash        string
	BlockHeight int64
}

const (
	KindUnitRedeemed = "unit_redeemed"
	KindBatchIssued  = "batch_issued"
)

// Entry is the transaction payload appended to the ledger.
type Entry struct {
	Kind            string    `json:"kind"`
	ProjectID       uuid.UUID `json:"projectId"`
	HashedPrivateID string    `json:"hashedPrivateId,omitempty"`
	Note            string    `json:"note,omitempty"`
	Time            time.Time `json:"time"`
}

func (e Entry) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// RedemptionKey is the query key under which a confirmed redemption is
// visible on the ledger.
func RedemptionKey(projectID uuid.UUID, hashedPrivateID string) []byte {
	return []byte(fmt.Sprintf("redeemed/%s/%s", projectID, hashedPrivateID))
}

type Ledger interface {
	// CheckRedemption reports whether the ledger already holds a confirmed
	// redemption for the unit.
	CheckRedemption(ctx context.Context, projectID uuid.UUID, hashedPrivateID string) (bool, error)

	// SubmitRedemption appends a redemption entry and waits for it to be
	// finalized. ErrCommitTimeout when the wait expires with the outcome
	// unknown.
	SubmitRedemption(ctx context.Context, projectID uuid.UUID, hashedPrivateID, note string) (TxRef, error)

	// SubmitIssuance anchors a QR batch export. Observability only; the
	// redemption path never depends on it.
	SubmitIssuance(ctx context.Context, projectID uuid.UUID, note string) (TxRef, error)
}
