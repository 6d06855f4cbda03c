package align

import (
	"context"
	"fmt"
	"math"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

// Keys returns the driving key followed by every key the processors
// require, without duplicates and in first-seen order.
func Keys(driving string, procs []Processor) []string {
	keys := []string{driving}
	for _, k := range Requirements(procs) {
		if k != driving {
			keys = append(keys, k)
		}
	}
	return keys
}

// Requirements returns every key the processors require, without
// duplicates and in first-seen order. The driving key is included only
// when a processor requires it.
func Requirements(procs []Processor) []string {
	seen := make(map[string]bool)
	var keys []string

	for _, p := range procs {
		for _, k := range p.Requires() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Schedule computes the common bounds of keys: the latest start and the
// earliest end across their metadata.
func Schedule(ctx context.Context, store Store, keys []string) (types.Bounds, error) {
	if len(keys) == 0 {
		return types.Bounds{}, errors.NewMissingField("series keys")
	}

	bounds := types.Bounds{Start: math.MinInt64, End: math.MaxInt64}

	for _, key := range keys {
		meta, err := store.LoadMetadata(ctx, key)
		if err != nil {
			if errors.Is(err, errors.ErrMetadataUnavailable) {
				return types.Bounds{}, err
			}
			return types.Bounds{}, errors.NewMetadataUnavailable(key, err)
		}

		if meta.Start > bounds.Start {
			bounds.Start = meta.Start
		}
		if meta.End < bounds.End {
			bounds.End = meta.End
		}
	}

	if bounds.Empty() {
		return types.Bounds{}, fmt.Errorf("latest start %d after earliest end %d: %w",
			bounds.Start, bounds.End, errors.ErrEmptyIntersection)
	}

	return bounds, nil
}
