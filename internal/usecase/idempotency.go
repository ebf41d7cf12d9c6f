package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finvoice/ledgerd/internal/domain"
)

// IdempotencyGuard maps (tenant id, transfer id) to a previously
// computed result so client retries are absorbed without re-entering
// the processor's mutation path.
type IdempotencyGuard struct {
	store IdempotencyStore
	ttl   time.Duration
}

// NewIdempotencyGuard creates a new IdempotencyGuard.
func NewIdempotencyGuard(store IdempotencyStore, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = IdempotencyKeyTTL
	}

	return &IdempotencyGuard{store: store, ttl: ttl}
}

type storedResult struct {
	PayloadHash  string  `json:"payload_hash"`
	Committed    bool    `json:"committed"`
	ErrorCode    *int    `json:"error_code,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// Check looks up a previous result for the transfer id. It returns the
// cached result on an identical replay, domain.ErrIdempotencyConflict
// when the id was reused with a different payload, and (nil, nil) for a
// first-seen id.
func (g *IdempotencyGuard) Check(ctx context.Context, tenantID string, req *domain.CreateTransfer) (*domain.TransferResult, error) {
	raw, err := g.store.Get(ctx, guardKey(tenantID, req.ID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	if raw == nil {
		return nil, nil
	}

	var stored storedResult
	if err := json.Unmarshal(raw, &stored); err != nil {
		// Unreadable entries are treated as absent; the transfers table
		// primary key still rejects a true duplicate insert.
		return nil, nil
	}

	if stored.PayloadHash != payloadHash(req) {
		return nil, domain.ErrIdempotencyConflict
	}

	return &domain.TransferResult{
		ID:           req.ID,
		Committed:    stored.Committed,
		ErrorCode:    stored.ErrorCode,
		ErrorMessage: stored.ErrorMessage,
	}, nil
}

// Record caches the outcome of a processed transfer.
func (g *IdempotencyGuard) Record(ctx context.Context, tenantID string, req *domain.CreateTransfer, result domain.TransferResult) error {
	stored := storedResult{
		PayloadHash:  payloadHash(req),
		Committed:    result.Committed,
		ErrorCode:    result.ErrorCode,
		ErrorMessage: result.ErrorMessage,
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	if err := g.store.Set(ctx, guardKey(tenantID, req.ID), raw, g.ttl); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	return nil
}

func guardKey(tenantID, transferID string) string {
	return tenantID + ":" + transferID
}

func payloadHash(req *domain.CreateTransfer) string {
	// Canonical JSON of the request body; struct field order is fixed.
	raw, _ := json.Marshal(req)
	sum := sha256.Sum256(raw)

	return hex.EncodeToString(sum[:])
}
