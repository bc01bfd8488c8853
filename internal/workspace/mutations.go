package workspace

import (
	"context"
	"strings"

	"github.com/fluxspace/spacesync/internal/hierarchy"
)

// Mutations are remote-first: ids are server-assigned, so the cache
// never shows a node the server has not acknowledged. After a
// successful call the cached tree is rewritten by structural
// replacement; for the private space the rewritten tree is persisted
// write-through. Failures after the server call (a stale local parent,
// a snapshot write error) degrade to a forced reload or a log line, the
// mutation itself still reports success.

// CreateFolder creates a folder under the given parent (or at the space
// root) and inserts the server-returned node into the cached tree.
func (s *Store) CreateFolder(ctx context.Context, spaceID string, req hierarchy.CreateFolderRequest) (*hierarchy.FolderNode, error) {
	if strings.TrimSpace(spaceID) == "" {
		return nil, hierarchy.ErrInvalidInput
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, &hierarchy.ValidationError{Message: "folder name is required"}
	}
	node, err := s.client.CreateFolder(ctx, spaceID, req)
	if err != nil {
		return nil, err
	}
	s.applyEdit(ctx, spaceID, func(tree *hierarchy.SpaceTree) (*hierarchy.SpaceTree, bool) {
		return hierarchy.InsertFolder(tree, req.ParentFolderID, node)
	})
	return node, nil
}

// CreateProcess creates a process inside the given folder (or at the
// space root) and inserts the server-returned node into the cached
// tree.
func (s *Store) CreateProcess(ctx context.Context, spaceID string, req hierarchy.CreateProcessRequest) (*hierarchy.ProcessNode, error) {
	if strings.TrimSpace(spaceID) == "" {
		return nil, hierarchy.ErrInvalidInput
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, &hierarchy.ValidationError{Message: "process name is required"}
	}
	node, err := s.client.CreateProcess(ctx, spaceID, req)
	if err != nil {
		return nil, err
	}
	s.applyEdit(ctx, spaceID, func(tree *hierarchy.SpaceTree) (*hierarchy.SpaceTree, bool) {
		return hierarchy.InsertProcess(tree, req.FolderID, node)
	})
	return node, nil
}

// UpdateFolder patches folder metadata. For the private space the
// server-returned node is written into the cached tree directly and
// persisted; other spaces reload the authoritative tree. A patch that
// re-parents the folder changes the structure, not just scalars, so it
// always reloads.
func (s *Store) UpdateFolder(ctx context.Context, spaceID, folderID string, req hierarchy.UpdateFolderRequest) (*hierarchy.FolderNode, error) {
	if strings.TrimSpace(spaceID) == "" || strings.TrimSpace(folderID) == "" {
		return nil, hierarchy.ErrInvalidInput
	}
	if req.ParentFolderID != nil {
		if err := s.checkMoveCycle(spaceID, folderID, req.ParentFolderID); err != nil {
			return nil, err
		}
	}
	node, err := s.client.UpdateFolder(ctx, spaceID, folderID, req)
	if err != nil {
		return nil, err
	}
	if spaceID == s.privateID && req.ParentFolderID == nil {
		s.applyEdit(ctx, spaceID, func(tree *hierarchy.SpaceTree) (*hierarchy.SpaceTree, bool) {
			return hierarchy.ReplaceFolder(tree, node)
		})
	} else {
		s.reloadAfterWrite(ctx, spaceID)
	}
	return node, nil
}

// UpdateProcess patches process metadata, mirroring UpdateFolder.
func (s *Store) UpdateProcess(ctx context.Context, spaceID, processID string, req hierarchy.UpdateProcessRequest) (*hierarchy.ProcessNode, error) {
	if strings.TrimSpace(spaceID) == "" || strings.TrimSpace(processID) == "" {
		return nil, hierarchy.ErrInvalidInput
	}
	node, err := s.client.UpdateProcess(ctx, spaceID, processID, req)
	if err != nil {
		return nil, err
	}
	if spaceID == s.privateID {
		s.applyEdit(ctx, spaceID, func(tree *hierarchy.SpaceTree) (*hierarchy.SpaceTree, bool) {
			return hierarchy.ReplaceProcess(tree, node)
		})
	} else {
		s.reloadAfterWrite(ctx, spaceID)
	}
	return node, nil
}

// DeleteFolder removes a folder and its whole subtree. Cascading
// descendant removal is the server's job; locally the subtree is pruned
// for the private space and reloaded for the rest.
func (s *Store) DeleteFolder(ctx context.Context, spaceID, folderID string) error {
	if strings.TrimSpace(spaceID) == "" || strings.TrimSpace(folderID) == "" {
		return hierarchy.ErrInvalidInput
	}
	if err := s.client.DeleteFolder(ctx, spaceID, folderID); err != nil {
		return err
	}
	if spaceID == s.privateID {
		s.applyEdit(ctx, spaceID, func(tree *hierarchy.SpaceTree) (*hierarchy.SpaceTree, bool) {
			return hierarchy.RemoveFolder(tree, folderID)
		})
	} else {
		s.reloadAfterWrite(ctx, spaceID)
	}
	return nil
}

// DeleteProcess removes one process document.
func (s *Store) DeleteProcess(ctx context.Context, spaceID, processID string) error {
	if strings.TrimSpace(spaceID) == "" || strings.TrimSpace(processID) == "" {
		return hierarchy.ErrInvalidInput
	}
	if err := s.client.DeleteProcess(ctx, spaceID, processID); err != nil {
		return err
	}
	if spaceID == s.privateID {
		s.applyEdit(ctx, spaceID, func(tree *hierarchy.SpaceTree) (*hierarchy.SpaceTree, bool) {
			return hierarchy.RemoveProcess(tree, processID)
		})
	} else {
		s.reloadAfterWrite(ctx, spaceID)
	}
	return nil
}

// MoveFolder re-parents a folder. Re-parenting a subtree locally while
// keeping every descendant intact is error-prone, so moves always end
// in a full reload: the server is the arbiter of final placement.
func (s *Store) MoveFolder(ctx context.Context, spaceID, folderID string, newParentFolderID *string) (*hierarchy.FolderNode, error) {
	if strings.TrimSpace(spaceID) == "" || strings.TrimSpace(folderID) == "" {
		return nil, hierarchy.ErrInvalidInput
	}
	if err := s.checkMoveCycle(spaceID, folderID, newParentFolderID); err != nil {
		return nil, err
	}
	node, err := s.client.MoveFolder(ctx, spaceID, folderID, newParentFolderID)
	if err != nil {
		return nil, err
	}
	s.reloadAfterWrite(ctx, spaceID)
	return node, nil
}

// MoveProcess relocates a process into another folder or to the space
// root, then reloads.
func (s *Store) MoveProcess(ctx context.Context, spaceID, processID string, newFolderID *string) (*hierarchy.ProcessNode, error) {
	if strings.TrimSpace(spaceID) == "" || strings.TrimSpace(processID) == "" {
		return nil, hierarchy.ErrInvalidInput
	}
	node, err := s.client.MoveProcess(ctx, spaceID, processID, newFolderID)
	if err != nil {
		return nil, err
	}
	s.reloadAfterWrite(ctx, spaceID)
	return node, nil
}

// checkMoveCycle rejects a move that would make a folder its own
// ancestor before any network round trip. The check only runs when the
// space is cached; otherwise the server enforces it alone.
func (s *Store) checkMoveCycle(spaceID, folderID string, newParentFolderID *string) error {
	if newParentFolderID == nil {
		return nil
	}
	if *newParentFolderID == folderID {
		return &hierarchy.ValidationError{Message: "folder cannot be its own parent"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[spaceID]
	if !ok {
		return nil
	}
	current := *newParentFolderID
	for current != "" {
		parent, ok := idx.folderParent[current]
		if !ok {
			return nil
		}
		if parent == folderID {
			return &hierarchy.ValidationError{Message: "cannot move folder inside its own subtree"}
		}
		current = parent
	}
	return nil
}

// applyEdit rewrites the cached tree with the given structural edit.
// When the edit cannot land (the space is uncached or the target
// vanished from the cache), the tree is reloaded so the cache converges
// on the server's answer.
func (s *Store) applyEdit(ctx context.Context, spaceID string, edit func(*hierarchy.SpaceTree) (*hierarchy.SpaceTree, bool)) {
	s.mu.Lock()
	tree, cached := s.trees[spaceID]
	s.mu.Unlock()
	if !cached {
		// Nothing cached to update; the next load fetches the node.
		return
	}
	next, ok := edit(tree)
	if !ok {
		s.logf("cached tree for %s is stale, reloading after write", spaceID)
		s.reloadAfterWrite(ctx, spaceID)
		return
	}
	s.installTree(spaceID, next)
	if spaceID == s.privateID {
		s.persistPrivate(ctx, next)
	}
}

// reloadAfterWrite refetches the authoritative tree after a successful
// mutation. The mutation already succeeded server-side, so a reload
// failure is logged, never surfaced.
func (s *Store) reloadAfterWrite(ctx context.Context, spaceID string) {
	if _, err := s.loadTree(ctx, spaceID, true); err != nil {
		s.logf("reload after write failed for %s: %v", spaceID, err)
	}
}
