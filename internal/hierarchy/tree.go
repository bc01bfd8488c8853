package hierarchy

// Tree edits are pure: every function returns a freshly built tree and
// never mutates its input, so cached trees can be handed out without
// aliasing surprises. All edits are O(tree size).

// FindFolder walks the tree depth first and returns the matching
// folder, or nil.
func FindFolder(t *SpaceTree, folderID string) *FolderNode {
	if t == nil || folderID == "" {
		return nil
	}
	for _, root := range t.RootFolders {
		if found := findFolderIn(root, folderID); found != nil {
			return found
		}
	}
	return nil
}

func findFolderIn(folder *FolderNode, folderID string) *FolderNode {
	if folder == nil {
		return nil
	}
	if folder.ID == folderID {
		return folder
	}
	for _, child := range folder.Children {
		if found := findFolderIn(child, folderID); found != nil {
			return found
		}
	}
	return nil
}

// FindProcess walks the tree depth first and returns the matching
// process, or nil.
func FindProcess(t *SpaceTree, processID string) *ProcessNode {
	if t == nil || processID == "" {
		return nil
	}
	for _, process := range t.RootProcesses {
		if process != nil && process.ID == processID {
			return process
		}
	}
	for _, root := range t.RootFolders {
		if found := findProcessIn(root, processID); found != nil {
			return found
		}
	}
	return nil
}

func findProcessIn(folder *FolderNode, processID string) *ProcessNode {
	if folder == nil {
		return nil
	}
	for _, process := range folder.Processes {
		if process != nil && process.ID == processID {
			return process
		}
	}
	for _, child := range folder.Children {
		if found := findProcessIn(child, processID); found != nil {
			return found
		}
	}
	return nil
}

// InsertFolder returns a new tree with node attached under
// parentFolderID, or at the root when parentFolderID is nil. The second
// result is false when the parent folder does not exist.
func InsertFolder(t *SpaceTree, parentFolderID *string, node *FolderNode) (*SpaceTree, bool) {
	if t == nil || node == nil {
		return t, false
	}
	clone := t.Clone()
	inserted := node.Clone()
	if inserted.Children == nil {
		inserted.Children = []*FolderNode{}
	}
	if inserted.Processes == nil {
		inserted.Processes = []*ProcessNode{}
	}
	if parentFolderID == nil {
		clone.RootFolders = append(clone.RootFolders, inserted)
		return clone, true
	}
	parent := FindFolder(clone, *parentFolderID)
	if parent == nil {
		return t, false
	}
	parent.Children = append(parent.Children, inserted)
	return clone, true
}

// InsertProcess returns a new tree with node attached inside folderID,
// or at the root when folderID is nil.
func InsertProcess(t *SpaceTree, folderID *string, node *ProcessNode) (*SpaceTree, bool) {
	if t == nil || node == nil {
		return t, false
	}
	clone := t.Clone()
	if folderID == nil {
		clone.RootProcesses = append(clone.RootProcesses, node.Clone())
		return clone, true
	}
	parent := FindFolder(clone, *folderID)
	if parent == nil {
		return t, false
	}
	parent.Processes = append(parent.Processes, node.Clone())
	return clone, true
}

// ReplaceFolder returns a new tree where the folder matching node.ID has
// its scalar fields replaced by node's while keeping its subtree.
func ReplaceFolder(t *SpaceTree, node *FolderNode) (*SpaceTree, bool) {
	if t == nil || node == nil {
		return t, false
	}
	clone := t.Clone()
	target := FindFolder(clone, node.ID)
	if target == nil {
		return t, false
	}
	target.Name = node.Name
	target.Description = node.Description
	target.Color = node.Color
	target.Icon = node.Icon
	target.ParentFolderID = node.ParentFolderID
	return clone, true
}

// ReplaceProcess returns a new tree where the process matching node.ID
// is replaced by node in place.
func ReplaceProcess(t *SpaceTree, node *ProcessNode) (*SpaceTree, bool) {
	if t == nil || node == nil {
		return t, false
	}
	clone := t.Clone()
	target := FindProcess(clone, node.ID)
	if target == nil {
		return t, false
	}
	target.Name = node.Name
	target.Description = node.Description
	return clone, true
}

// RemoveFolder returns a new tree with the folder and its entire
// subtree pruned.
func RemoveFolder(t *SpaceTree, folderID string) (*SpaceTree, bool) {
	if t == nil || folderID == "" {
		return t, false
	}
	clone := t.Clone()
	removed := false
	clone.RootFolders = filterFolders(clone.RootFolders, folderID, &removed)
	if !removed {
		return t, false
	}
	return clone, true
}

func filterFolders(folders []*FolderNode, folderID string, removed *bool) []*FolderNode {
	kept := make([]*FolderNode, 0, len(folders))
	for _, folder := range folders {
		if folder == nil {
			continue
		}
		if folder.ID == folderID {
			*removed = true
			continue
		}
		folder.Children = filterFolders(folder.Children, folderID, removed)
		kept = append(kept, folder)
	}
	return kept
}

// RemoveProcess returns a new tree with the process pruned from
// wherever it lives.
func RemoveProcess(t *SpaceTree, processID string) (*SpaceTree, bool) {
	if t == nil || processID == "" {
		return t, false
	}
	clone := t.Clone()
	removed := false
	clone.RootProcesses = filterProcesses(clone.RootProcesses, processID, &removed)
	var prune func(folder *FolderNode)
	prune = func(folder *FolderNode) {
		if folder == nil {
			return
		}
		folder.Processes = filterProcesses(folder.Processes, processID, &removed)
		for _, child := range folder.Children {
			prune(child)
		}
	}
	for _, root := range clone.RootFolders {
		prune(root)
	}
	if !removed {
		return t, false
	}
	return clone, true
}

func filterProcesses(processes []*ProcessNode, processID string, removed *bool) []*ProcessNode {
	kept := make([]*ProcessNode, 0, len(processes))
	for _, process := range processes {
		if process == nil {
			continue
		}
		if process.ID == processID {
			*removed = true
			continue
		}
		kept = append(kept, process)
	}
	return kept
}

// CountStats traverses the whole tree and sums folder and process
// counts. A nil tree yields the zero stats.
func CountStats(t *SpaceTree) SpaceStats {
	stats := SpaceStats{}
	if t == nil {
		return stats
	}
	stats.RootFolders = len(t.RootFolders)
	stats.RootProcesses = len(t.RootProcesses)
	stats.TotalProcesses = len(t.RootProcesses)
	var count func(folder *FolderNode)
	count = func(folder *FolderNode) {
		if folder == nil {
			return
		}
		stats.TotalFolders++
		stats.TotalProcesses += len(folder.Processes)
		for _, child := range folder.Children {
			count(child)
		}
	}
	for _, root := range t.RootFolders {
		count(root)
	}
	return stats
}
