// Package hierarchy defines the workspace hierarchy data model and the
// client for the remote hierarchy API. A workspace is organized into
// spaces; each space holds a forest of folders whose leaves are process
// documents.
package hierarchy

import "encoding/json"

// PrivateSpaceID is the id of the one space that exists on every
// installation, network or not.
const PrivateSpaceID = "private"

const (
	SpaceTypePrivate = "private"
	SpaceTypeTeam    = "team"
)

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

type Space struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Role        string `json:"role,omitempty"`
	IsProtected bool   `json:"is_protected,omitempty"`
}

// PrivateSpace returns the built-in private space record used when the
// space directory cannot be fetched.
func PrivateSpace() Space {
	return Space{
		ID:          PrivateSpaceID,
		Name:        "Private",
		Type:        SpaceTypePrivate,
		Role:        RoleOwner,
		IsProtected: true,
	}
}

// FolderNode is an organizational node. A nil ParentFolderID marks a
// root folder.
type FolderNode struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	ParentFolderID *string        `json:"parent_folder_id,omitempty"`
	Color          string         `json:"color,omitempty"`
	Icon           string         `json:"icon,omitempty"`
	Children       []*FolderNode  `json:"children"`
	Processes      []*ProcessNode `json:"processes"`
	ProcessCount   int            `json:"process_count,omitempty"`
	ChildCount     int            `json:"child_count,omitempty"`
}

// ProcessNode is a leaf process document. A nil FolderID places it at
// the space root.
type ProcessNode struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	FolderID    *string `json:"folder_id,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// SpaceTree is the complete hierarchy for one space.
type SpaceTree struct {
	SpaceID       string         `json:"space_id"`
	RootFolders   []*FolderNode  `json:"root_folders"`
	RootProcesses []*ProcessNode `json:"root_processes"`
}

func NewEmptyTree(spaceID string) *SpaceTree {
	return &SpaceTree{
		SpaceID:       spaceID,
		RootFolders:   []*FolderNode{},
		RootProcesses: []*ProcessNode{},
	}
}

// Clone returns a deep copy with no shared nodes.
func (t *SpaceTree) Clone() *SpaceTree {
	if t == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return NewEmptyTree(t.SpaceID)
	}
	var clone SpaceTree
	if err := json.Unmarshal(data, &clone); err != nil {
		return NewEmptyTree(t.SpaceID)
	}
	if clone.RootFolders == nil {
		clone.RootFolders = []*FolderNode{}
	}
	if clone.RootProcesses == nil {
		clone.RootProcesses = []*ProcessNode{}
	}
	return &clone
}

func (f *FolderNode) Clone() *FolderNode {
	if f == nil {
		return nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil
	}
	var clone FolderNode
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil
	}
	return &clone
}

func (p *ProcessNode) Clone() *ProcessNode {
	if p == nil {
		return nil
	}
	clone := *p
	if p.FolderID != nil {
		folderID := *p.FolderID
		clone.FolderID = &folderID
	}
	return &clone
}

// PathEntry is one step of an ancestor chain, ordered root first.
type PathEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FolderPathResponse is the remote path endpoint's payload.
type FolderPathResponse struct {
	Path       []PathEntry `json:"path"`
	FolderID   string      `json:"folder_id"`
	FolderName string      `json:"folder_name"`
}

// SpaceStats are the aggregate counts for one space.
type SpaceStats struct {
	TotalFolders   int `json:"total_folders"`
	TotalProcesses int `json:"total_processes"`
	RootFolders    int `json:"root_folders"`
	RootProcesses  int `json:"root_processes"`
}

type CreateFolderRequest struct {
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	ParentFolderID *string `json:"parent_folder_id,omitempty"`
	Color          string  `json:"color,omitempty"`
	Icon           string  `json:"icon,omitempty"`
}

// UpdateFolderRequest is a PATCH payload: nil fields are left untouched
// by the server. ParentFolderID re-parents the folder; moving to the
// space root goes through the move endpoint, which can send an explicit
// null.
type UpdateFolderRequest struct {
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	ParentFolderID *string `json:"parent_folder_id,omitempty"`
	Color          *string `json:"color,omitempty"`
	Icon           *string `json:"icon,omitempty"`
}

type CreateProcessRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	FolderID    *string `json:"folder_id,omitempty"`
}

type UpdateProcessRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}
