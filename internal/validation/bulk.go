package validation

import (
	"context"

	"github.com/geocoder89/coursehub/internal/apperr"
)

// MaxBulkSize caps how many entities one bulk request may touch.
const MaxBulkSize = 5

// CountFunc returns how many of ids exist.
type CountFunc func(ctx context.Context, ids []int64) (int, error)

// BulkIDs validates the id list of a bulk operation on entity, e.g.
// "chapter". Shape problems (empty, too many, duplicates) are reported before
// any lookup. Then every id must exist or the whole request fails.
func BulkIDs(ctx context.Context, entity string, ids []int64, count CountFunc) error {
	if err := BulkShape(entity, ids); err != nil {
		return err
	}

	found, err := count(ctx, ids)
	if err != nil {
		return err
	}
	if found != len(ids) {
		return apperr.NotFound("One or more %ss not found", entity)
	}

	return nil
}

// BulkShape checks emptiness, the size cap and duplicates.
func BulkShape(entity string, ids []int64) error {
	if len(ids) == 0 {
		return apperr.Invalid("No %s IDs provided", entity)
	}
	if len(ids) > MaxBulkSize {
		return apperr.Invalid("Maximum of %d %ss can be processed at once", MaxBulkSize, entity)
	}

	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return apperr.Invalid("Duplicate %s IDs found", entity)
		}
		seen[id] = struct{}{}
	}

	return nil
}

// BulkSize checks only emptiness and the cap, for bulk creates.
func BulkSize(n int, label string) error {
	if n == 0 {
		return apperr.Invalid("No %s provided", label)
	}
	if n > MaxBulkSize {
		return apperr.Invalid("Maximum of %d %s can be processed at once", MaxBulkSize, label)
	}
	return nil
}
