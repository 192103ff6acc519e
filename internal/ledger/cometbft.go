package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	cmthttp "github.com/cometbft/cometbft/rpc/client/http"
	cmtrpctypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/internal/logger"
)

// CometBFT talks to the ledger over the node's HTTP RPC endpoint.
type CometBFT struct {
	client        *cmthttp.HTTP
	log           *logger.Logger
	commitTimeout time.Duration
}

func NewCometBFT(rpcAddr string, commitTimeout time.Duration, baseLog *logger.Logger) (*CometBFT, error) {
	client, err := cmthttp.NewWithClient(rpcAddr, &http.Client{
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger rpc client: %w", err)
	}
	return &CometBFT{
		client:        client,
		log:           baseLog.With("service", "CometBFTLedger"),
		commitTimeout: commitTimeout,
	}, nil
}

func (c *CometBFT) CheckRedemption(ctx context.Context, projectID uuid.UUID, hashedPrivateID string) (bool, error) {
	res, err := c.client.ABCIQuery(ctx, "/redemptions", RedemptionKey(projectID, hashedPrivateID))
	if err != nil {
		return false, fmt.Errorf("ledger query failed: %w", err)
	}
	if res.Response.Code != 0 {
		return false, fmt.Errorf("ledger query rejected: code %d, log %q", res.Response.Code, res.Response.Log)
	}
	return len(res.Response.Value) > 0, nil
}

func (c *CometBFT) SubmitRedemption(ctx context.Context, projectID uuid.UUID, hashedPrivateID, note string) (TxRef, error) {
	entry := Entry{
		Kind:            KindUnitRedeemed,
		ProjectID:       projectID,
		HashedPrivateID: hashedPrivateID,
		Note:            note,
		Time:            time.Now().UTC(),
	}
	return c.broadcast(ctx, entry)
}

func (c *CometBFT) SubmitIssuance(ctx context.Context, projectID uuid.UUID, note string) (TxRef, error) {
	entry := Entry{
		Kind:      KindBatchIssued,
		ProjectID: projectID,
		Note:      note,
		Time:      time.Now().UTC(),
	}
	return c.broadcast(ctx, entry)
}

// broadcast submits the entry and waits for finalization, bounded by
// commitTimeout. The broadcast runs in its own goroutine so the wait can
// be abandoned while the RPC call is still in flight.
func (c *CometBFT) broadcast(parent context.Context, entry Entry) (TxRef, error) {
	payload, err := entry.Encode()
	if err != nil {
		return TxRef{}, fmt.Errorf("failed to encode ledger entry: %w", err)
	}

	ctx, cancel := context.WithTimeout(parent, c.commitTimeout)
	defer cancel()

	done := make(chan struct {
		result *cmtrpctypes.ResultBroadcastTxCommit
		err    error
	}, 1)

	go func() {
		result, err := c.client.BroadcastTxCommit(ctx, cmttypes.Tx(payload))
		done <- struct {
			result *cmtrpctypes.ResultBroadcastTxCommit
			err    error
		}{result, err}
	}()

	select {
	case <-ctx.Done():
		c.log.Warn("Ledger commit wait expired", "kind", entry.Kind, "project_id", entry.ProjectID)
		return TxRef{}, ErrCommitTimeout
	case res := <-done:
		if res.err != nil {
			return TxRef{}, fmt.Errorf("ledger broadcast failed: %w", res.err)
		}
		if res.result.CheckTx.Code != 0 {
			return TxRef{}, fmt.Errorf("ledger rejected entry: code %d", res.result.CheckTx.Code)
		}
		return TxRef{
			Hash:        hex.EncodeToString(res.result.Hash),
			BlockHeight: res.result.Height,
		}, nil
	}
}
