package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/RSBalchII/anchor/internal/domain/memory"
	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
)

// EngramKey normalizes a phrase into the key hash used to index the Engram
// sidecar: lowercased, whitespace-collapsed, then SHA-256 hex.
func EngramKey(phrase string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// EngramLookup resolves a query's sanitized phrase directly to a bound atom
// set, giving O(1) phrase→atom lookup ahead of the full anchor search.
func EngramLookup(ctx context.Context, store memory.Store, phrase string) (atomIDs []string, ok bool, err error) {
	if strings.TrimSpace(phrase) == "" {
		return nil, false, nil
	}
	return store.GetEngram(ctx, EngramKey(phrase))
}

// RecordEngram writes the phrase→atom-id binding and publishes a
// best-effort EngramRecorded event. Publication failures are logged and
// swallowed; they never fail the search that triggered them.
func RecordEngram(ctx context.Context, store memory.Store, publisher memory.EventPublisher, logger logging.Logger, phrase string, atomIDs []string) {
	if strings.TrimSpace(phrase) == "" || len(atomIDs) == 0 {
		return
	}

	keyHash := EngramKey(phrase)
	if err := store.PutEngram(ctx, keyHash, atomIDs); err != nil {
		logger.Warn("failed to record engram", logging.String("key_hash", keyHash), logging.Err(err))
		return
	}

	if publisher == nil {
		return
	}

	event := memory.EngramRecorded{
		KeyHash:   keyHash,
		AtomIDs:   atomIDs,
		Query:     phrase,
		Timestamp: time.Now(),
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish EngramRecorded event", logging.String("key_hash", keyHash), logging.Err(err))
	}
}
