package replay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/pkg/cache"
	"payment-reconciler/pkg/logger"
)

// Decision is the verdict for one delivery.
type Decision string

const (
	Accepted  Decision = "accepted"
	Duplicate Decision = "duplicate delivery"
	Tampered  Decision = "payload mismatch on redelivery"
	Stale     Decision = "stale event"
)

type Admission struct {
	Decision Decision
	// Degraded is set when the store failed and the delivery was let through.
	Degraded bool
}

func (a Admission) Accepted() bool {
	return a.Decision == Accepted
}

type Config struct {
	Retention time.Duration
	MaxSkew   time.Duration
}

// Guard remembers accepted deliveries for Retention. Atomicity comes from
// the store's AdmitOnce, so two instances sharing Redis never both admit an id.
type Guard struct {
	store     cache.Store
	retention time.Duration
	maxSkew   time.Duration
	now       func() time.Time
}

func NewGuard(store cache.Store, cfg Config) *Guard {
	return &Guard{
		store:     store,
		retention: cfg.Retention,
		maxSkew:   cfg.MaxSkew,
		now:       time.Now,
	}
}

// =====================================================
// IDENTITY
// =====================================================

// RequestID is stable across redeliveries of the same logical event.
// merchantOrderID is always part of the identity since the gateway order id is optional.
func RequestID(event, merchantOrderID, gatewayOrderID, state, deliveryID string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{event, merchantOrderID, gatewayOrderID, state, deliveryID}, "|")))
	return "wh:" + hex.EncodeToString(sum[:])
}

// Fingerprint hashes the payload with insignificant whitespace removed.
func Fingerprint(payload []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err == nil {
		payload = buf.Bytes()
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// EventTimestamp is the send time declared by the envelope. Attempt timestamps
// say when the buyer paid, not when the event went out, so they are not used.
func EventTimestamp(envelopeMillis *int64) *time.Time {
	if envelopeMillis == nil || *envelopeMillis <= 0 {
		return nil
	}
	ts := time.UnixMilli(*envelopeMillis)
	return &ts
}

// =====================================================
// ADMISSION
// =====================================================

// Admit records requestID on first sight. A repeat with the same fingerprint is a
// duplicate; a repeat with a different one is tampering.
func (g *Guard) Admit(ctx context.Context, requestID, fingerprint string, eventTs *time.Time) Admission {
	now := g.now()

	// Step 1: staleness
	if eventTs != nil && g.maxSkew > 0 && now.Sub(*eventTs) > g.maxSkew {
		return Admission{Decision: Stale}
	}

	entry := encodeEntry(fingerprint, now)

	// Step 2: atomic check-and-insert. One retry covers an entry expiring
	// between the failed insert and the read.
	for attempt := 0; attempt < 2; attempt++ {
		admitted, err := g.store.AdmitOnce(ctx, requestID, entry, g.retention)
		if err != nil {
			return g.failOpen(requestID, err)
		}
		if admitted {
			return Admission{Decision: Accepted}
		}

		stored, err := g.store.Get(ctx, requestID)
		if errors.Is(err, cache.ErrCacheMiss) {
			continue
		}
		if err != nil {
			return g.failOpen(requestID, err)
		}

		// Step 3: compare fingerprints
		storedFP, firstSeen := decodeEntry(stored)
		if storedFP == fingerprint {
			logger.Info("Duplicate webhook delivery ignored", map[string]interface{}{
				"request_id": requestID,
				"first_seen": firstSeen,
			})
			return Admission{Decision: Duplicate}
		}
		logger.ErrorWithFields("Replayed webhook with mismatched payload", model.ErrReplayTampered, map[string]interface{}{
			"request_id": requestID,
		})
		return Admission{Decision: Tampered}
	}

	return Admission{Decision: Duplicate}
}

// Release forgets requestID so a later redelivery is processed again.
func (g *Guard) Release(ctx context.Context, requestID string) error {
	if err := g.store.Delete(ctx, requestID); err != nil {
		return fmt.Errorf("release replay entry: %w", err)
	}
	return nil
}

func (g *Guard) failOpen(requestID string, err error) Admission {
	logger.ErrorWithFields("Replay store unavailable, admitting delivery", err, map[string]interface{}{
		"request_id": requestID,
	})
	return Admission{Decision: Accepted, Degraded: true}
}

// entry format: <fingerprint>|<firstSeenAt unix millis>
func encodeEntry(fingerprint string, firstSeen time.Time) string {
	return fingerprint + "|" + strconv.FormatInt(firstSeen.UnixMilli(), 10)
}

func decodeEntry(v string) (string, time.Time) {
	fp, ms, ok := strings.Cut(v, "|")
	if !ok {
		return v, time.Time{}
	}
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return fp, time.Time{}
	}
	return fp, time.UnixMilli(n)
}
