package workspace

import (
	"context"

	"github.com/fluxspace/spacesync/internal/hierarchy"
)

// GetFolderPath returns the ordered ancestor chain for folderID, root
// first, ending at the folder itself. A cached answer wins immediately;
// the remote path endpoint is only consulted synchronously when the
// cache has nothing, and then under the path lookup deadline. The
// resolver never fails: on error it returns the best chain it has,
// possibly empty.
func (s *Store) GetFolderPath(ctx context.Context, spaceID, folderID string) []hierarchy.PathEntry {
	if spaceID == "" || folderID == "" {
		return []hierarchy.PathEntry{}
	}
	if local := s.localFolderPath(spaceID, folderID); len(local) > 0 {
		// Warm the server-side path cache for future reads; the answer
		// the caller sees is already decided.
		go s.warmFolderPath(spaceID, folderID)
		return local
	}

	remoteCtx, cancel := context.WithTimeout(ctx, s.pathTimeout)
	defer cancel()
	resp, err := s.client.FetchFolderPath(remoteCtx, spaceID, folderID)
	if err != nil {
		s.logf("remote path lookup for %s failed: %v", folderID, err)
		return []hierarchy.PathEntry{}
	}
	if len(resp.Path) > 0 {
		return resp.Path
	}
	if resp.FolderName != "" {
		return []hierarchy.PathEntry{{ID: folderID, Name: resp.FolderName}}
	}
	return []hierarchy.PathEntry{}
}

// localFolderPath reconstructs the chain from the id index in O(depth).
func (s *Store) localFolderPath(spaceID, folderID string) []hierarchy.PathEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[spaceID]
	if !ok {
		return nil
	}
	if _, ok := idx.folders[folderID]; !ok {
		return nil
	}
	chain := []hierarchy.PathEntry{}
	current := folderID
	for current != "" {
		folder, ok := idx.folders[current]
		if !ok {
			break
		}
		chain = append([]hierarchy.PathEntry{{ID: folder.ID, Name: folder.Name}}, chain...)
		current = idx.folderParent[folder.ID]
	}
	return chain
}

func (s *Store) warmFolderPath(spaceID, folderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.pathTimeout)
	defer cancel()
	if _, err := s.client.FetchFolderPath(ctx, spaceID, folderID); err != nil {
		s.logf("path warm request for %s failed: %v", folderID, err)
	}
}
