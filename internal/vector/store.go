// Package vector provides the vector-store contract and collection routing
// for semantically retrievable context data.
package vector

import (
	"context"
	"fmt"

	"reverie/internal/domain/models"
)

// Payload is attached to every point so a hit can be traced back to its
// relational row and profile.
type Payload struct {
	DBPK      int64
	ProfileID int64
	EntryType string
}

// Hit is one scored search result.
type Hit struct {
	DBPK  int64
	Score float32
}

// Store is the vector database contract used by the semantic subsystem.
type Store interface {
	// EnsureCollection creates the collection when it does not exist
	EnsureCollection(ctx context.Context, collection string, dim uint64) error

	// Upsert writes one embedding keyed by the relational primary key
	Upsert(ctx context.Context, collection string, dbPK int64, vec []float32, payload Payload) error

	// Search returns up to k hits for the query vector, scoped to a profile,
	// score descending
	Search(ctx context.Context, collection string, vec []float32, k uint64, profileID int64) ([]Hit, error)

	// Delete removes the point keyed by the relational primary key
	Delete(ctx context.Context, collection string, dbPK int64) error

	// Close releases the client connection
	Close() error
}

// Per-type collection names.
const (
	CollectionQuotes       = "context_quotes"
	CollectionVoiceSamples = "context_voice_samples"
	CollectionMemories     = "context_memories"
	CollectionInsights     = "context_insights"
)

// CollectionFor routes an embeddable context type to its collection.
func CollectionFor(t models.ContextType) (string, error) {
	switch t {
	case models.ContextTypeQuote:
		return CollectionQuotes, nil
	case models.ContextTypePersonaVoiceSample:
		return CollectionVoiceSamples, nil
	case models.ContextTypeMemory:
		return CollectionMemories, nil
	case models.ContextTypeInsight:
		return CollectionInsights, nil
	}
	return "", fmt.Errorf("context type %s has no vector collection", t)
}

// EnsureAll creates every per-type collection with the given dimension.
func EnsureAll(ctx context.Context, store Store, dim uint64) error {
	for _, t := range models.AllContextTypes {
		if !t.SupportsSemantic() {
			continue
		}
		collection, err := CollectionFor(t)
		if err != nil {
			return err
		}
		if err := store.EnsureCollection(ctx, collection, dim); err != nil {
			return fmt.Errorf("ensure collection %s: %w", collection, err)
		}
	}
	return nil
}
