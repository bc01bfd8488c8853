package workspace

import (
	"context"

	"github.com/fluxspace/spacesync/internal/hierarchy"
)

// GetSpaceStats returns aggregate counts for a space. The remote stats
// endpoint is preferred since the server can exclude soft-deleted items
// and keep denormalized counts; any failure falls back to a full
// traversal of the cached tree. An uncached space yields the empty-tree
// defaults. The aggregator never fails.
func (s *Store) GetSpaceStats(ctx context.Context, spaceID string) hierarchy.SpaceStats {
	if spaceID == "" {
		return hierarchy.SpaceStats{}
	}
	stats, err := s.client.FetchSpaceStats(ctx, spaceID)
	if err == nil {
		return stats
	}
	s.logf("remote stats for %s unavailable, counting cached tree: %v", spaceID, err)
	return hierarchy.CountStats(s.cachedTree(spaceID))
}
