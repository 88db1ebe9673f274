package tasks

import (
	"slices"

	"github.com/desertthunder/likesync/internal/models"
)

// Diff computes the tracks to add to target and remove from it so that it holds the same identifiers as reference.
//
// Duplicates keep their first occurrence. Added tracks come from reference, stably sorted by AddedAt ascending;
// removed tracks come from target in target order.
func Diff(reference, target models.Collection) models.DiffResult {
	reference = dedupe(reference)
	target = dedupe(target)

	inTarget := target.IDs()
	inReference := reference.IDs()

	var result models.DiffResult
	for _, track := range reference {
		if _, ok := inTarget[track.ID]; !ok {
			result.Added = append(result.Added, track)
		}
	}
	for _, track := range target {
		if _, ok := inReference[track.ID]; !ok {
			result.Removed = append(result.Removed, track)
		}
	}

	slices.SortStableFunc(result.Added, func(a, b models.Track) int {
		return a.AddedAt.Compare(b.AddedAt)
	})
	return result
}

func dedupe(c models.Collection) models.Collection {
	seen := make(map[string]struct{}, len(c))
	out := make(models.Collection, 0, len(c))
	for _, track := range c {
		if _, ok := seen[track.ID]; ok {
			continue
		}
		seen[track.ID] = struct{}{}
		out = append(out, track)
	}
	return out
}
