package models

import (
	"time"
)

// User is an account row. Password holds the bcrypt hash and is never
// serialized.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Folder is a node in a user's folder forest. ParentID is nil for root
// folders. A parent, when set, always belongs to the same owner.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"userId"`
	ParentID  *string   `json:"parentId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// File is an uploaded object's metadata row. Name is the storage-generated
// token, OriginalName the client's filename. FolderID nil means the file
// sits at the owner's root.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	URL          string    `json:"url"`
	OwnerID      string    `json:"userId"`
	FolderID     *string   `json:"folderId"`
	ScanStatus   string    `json:"scanStatus,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PathEntry is one hop of a folder's ancestor chain, root first.
type PathEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FolderRef is the short form used for parent links and file→folder links.
type FolderRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SubfolderSummary is the one-level child listing shape.
type SubfolderSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChildCounts reports direct children only, not the whole subtree.
type ChildCounts struct {
	Files      int `json:"files"`
	Subfolders int `json:"subfolders"`
}

// FolderDetail is the read model returned by folder lookups: the entity plus
// derived fields (path, subtree size) composed explicitly rather than bolted
// onto the row.
type FolderDetail struct {
	Folder
	Parent     *FolderRef         `json:"parent,omitempty"`
	Subfolders []SubfolderSummary `json:"subfolders"`
	Files      []File             `json:"files,omitempty"`
	Counts     ChildCounts        `json:"_count"`
	Path       []PathEntry        `json:"path"`
	TotalSize  int64              `json:"totalSize"`
}

// FileDetail is a file plus its containing folder reference, if any.
type FileDetail struct {
	File
	Folder *FolderRef `json:"folder,omitempty"`
}
