// Package foldertree maintains per-user folder forests: creation, rename,
// detail views with derived paths and subtree sizes, and cascading deletion
// with blob cleanup.
package foldertree

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Abdirazakf/file-uploader/internal/blob"
	"github.com/Abdirazakf/file-uploader/internal/models"
	"github.com/Abdirazakf/file-uploader/internal/storage"
)

// unsafeNameChars is the filesystem-unsafe set rejected in folder names.
const unsafeNameChars = `/\:*?"<>|`

// Events receives domain events. Implementations must be non-blocking or
// tolerate being called on the request path.
type Events interface {
	Publish(subject string, payload any)
}

// Manager owns the folder forest. It holds no cross-request state; every
// operation re-reads the store.
type Manager struct {
	store  storage.Store
	blobs  blob.ObjectStore
	events Events
}

// New builds a Manager. blobs and events may be nil (no blob cleanup /
// no events), which the tests use.
func New(store storage.Store, blobs blob.ObjectStore, events Events) *Manager {
	return &Manager{store: store, blobs: blobs, events: events}
}

// ValidateName applies the shared folder-name rule: 1..255 chars, none of
// the unsafe set.
func ValidateName(name string) error {
	if name == "" || len(name) > 255 {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, unsafeNameChars) {
		return ErrInvalidName
	}
	return nil
}

// CreateFolder inserts a folder under the optional parent and returns it
// with its computed path. parentID == "" creates a root folder.
func (m *Manager) CreateFolder(ctx context.Context, ownerID, name, parentID string) (*models.FolderDetail, error) {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	var parentRef *models.FolderRef
	var parentPtr *string
	if parentID != "" {
		parent, err := m.store.FolderByID(ctx, ownerID, parentID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrParentNotFound
		}
		if err != nil {
			return nil, err
		}
		parentRef = &models.FolderRef{ID: parent.ID, Name: parent.Name}
		parentPtr = &parent.ID
	}

	now := time.Now().UTC()
	folder := &models.Folder{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   ownerID,
		ParentID:  parentPtr,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}

	path, err := m.BuildPath(ctx, ownerID, folder.ID)
	if err != nil {
		return nil, err
	}

	return &models.FolderDetail{
		Folder:     *folder,
		Parent:     parentRef,
		Subfolders: []models.SubfolderSummary{},
		Path:       path,
	}, nil
}

// RootFolders lists the owner's root folders in creation order, each with
// one level of subfolders, direct child counts, its trivial path and its
// subtree size.
func (m *Manager) RootFolders(ctx context.Context, ownerID string) ([]models.FolderDetail, error) {
	roots, err := m.store.RootFolders(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	details := make([]models.FolderDetail, 0, len(roots))
	for _, folder := range roots {
		subs, err := m.store.Subfolders(ctx, ownerID, folder.ID, false)
		if err != nil {
			return nil, err
		}
		counts, err := m.store.CountChildren(ctx, ownerID, folder.ID)
		if err != nil {
			return nil, err
		}
		size, err := m.SizeOf(ctx, ownerID, folder.ID)
		if err != nil {
			return nil, err
		}
		details = append(details, models.FolderDetail{
			Folder:     folder,
			Subfolders: summarize(subs),
			Counts:     counts,
			Path:       []models.PathEntry{{ID: folder.ID, Name: folder.Name}},
			TotalSize:  size,
		})
	}
	return details, nil
}

// FolderByID returns the full detail view. ErrNotFound for a missing or
// foreign folder.
func (m *Manager) FolderByID(ctx context.Context, ownerID, folderID string) (*models.FolderDetail, error) {
	folder, err := m.store.FolderByID(ctx, ownerID, folderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var parentRef *models.FolderRef
	if folder.ParentID != nil {
		parent, err := m.store.FolderByID(ctx, ownerID, *folder.ParentID)
		if err == nil {
			parentRef = &models.FolderRef{ID: parent.ID, Name: parent.Name}
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	subs, err := m.store.Subfolders(ctx, ownerID, folder.ID, true)
	if err != nil {
		return nil, err
	}
	files, err := m.store.FilesInFolder(ctx, ownerID, folder.ID)
	if err != nil {
		return nil, err
	}
	path, err := m.BuildPath(ctx, ownerID, folder.ID)
	if err != nil {
		return nil, err
	}
	size, err := m.SizeOf(ctx, ownerID, folder.ID)
	if err != nil {
		return nil, err
	}

	return &models.FolderDetail{
		Folder:     *folder,
		Parent:     parentRef,
		Subfolders: summarize(subs),
		Files:      files,
		Counts:     models.ChildCounts{Files: len(files), Subfolders: len(subs)},
		Path:       path,
		TotalSize:  size,
	}, nil
}

// RenameFolder validates the new name, updates name and updatedAt, and
// returns the refreshed detail view.
func (m *Manager) RenameFolder(ctx context.Context, ownerID, folderID, newName string) (*models.FolderDetail, error) {
	newName = strings.TrimSpace(newName)
	if err := ValidateName(newName); err != nil {
		return nil, err
	}

	count, err := m.store.UpdateFolderName(ctx, ownerID, folderID, newName, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	return m.FolderByID(ctx, ownerID, folderID)
}

// DeleteFolder removes the folder and its whole subtree. File rows go with
// the relational cascade; their blobs are enumerated beforehand and deleted
// best-effort afterwards — an orphaned blob is an accepted leak, a blocked
// delete is not.
func (m *Manager) DeleteFolder(ctx context.Context, ownerID, folderID string) error {
	if _, err := m.store.FolderByID(ctx, ownerID, folderID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	keys, err := m.subtreeBlobKeys(ctx, ownerID, folderID)
	if err != nil {
		return err
	}

	count, err := m.store.DeleteFolder(ctx, ownerID, folderID)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}

	if m.blobs != nil && len(keys) > 0 {
		if err := m.blobs.DeleteMany(ctx, keys); err != nil {
			log.Printf("[FolderTree] blob cleanup after deleting folder %s: %v", folderID, err)
		}
	}
	if m.events != nil {
		m.events.Publish("folders.deleted", map[string]any{
			"folder_id": folderID,
			"user_id":   ownerID,
			"files":     len(keys),
		})
	}
	return nil
}

// subtreeBlobKeys walks the subtree breadth-first and collects the object
// keys of every file in it, the doomed folder included.
func (m *Manager) subtreeBlobKeys(ctx context.Context, ownerID, folderID string) ([]string, error) {
	var keys []string
	queue := []string{folderID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		files, err := m.store.FilesInFolder(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			keys = append(keys, f.OwnerID+"/"+f.Name)
		}

		subs, err := m.store.Subfolders(ctx, ownerID, id, false)
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			queue = append(queue, sub.ID)
		}
	}
	return keys, nil
}

// maxDepth bounds the parent-chain walk; personal folder trees are
// single-digit deep, so hitting it means a corrupted chain.
const maxDepth = 256

// BuildPath resolves the ancestor chain root-to-leaf. An empty id, a
// missing folder or a foreign folder yields an empty path, never an error;
// store failures still propagate.
func (m *Manager) BuildPath(ctx context.Context, ownerID, folderID string) ([]models.PathEntry, error) {
	path := []models.PathEntry{}
	if folderID == "" {
		return path, nil
	}

	seen := make(map[string]bool)
	id := folderID
	for depth := 0; depth < maxDepth; depth++ {
		if seen[id] {
			log.Printf("[FolderTree] cycle detected in parent chain at folder %s", id)
			break
		}
		seen[id] = true

		folder, err := m.store.FolderByID(ctx, ownerID, id)
		if errors.Is(err, storage.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}

		path = append(path, models.PathEntry{ID: folder.ID, Name: folder.Name})
		if folder.ParentID == nil {
			break
		}
		id = *folder.ParentID
	}

	reverse(path)
	return path, nil
}

// SizeOf sums the sizes of every file in the folder's subtree with an
// explicit stack instead of recursion. int64 throughout; an empty folder
// is 0.
func (m *Manager) SizeOf(ctx context.Context, ownerID, folderID string) (int64, error) {
	var total int64
	stack := []string{folderID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		files, err := m.store.FilesInFolder(ctx, ownerID, id)
		if err != nil {
			return 0, err
		}
		for _, f := range files {
			total += f.Size
		}

		subs, err := m.store.Subfolders(ctx, ownerID, id, false)
		if err != nil {
			return 0, err
		}
		for _, sub := range subs {
			stack = append(stack, sub.ID)
		}
	}
	return total, nil
}

// CheckFolderOwner reports whether the folder exists under the owner. Used
// as the authorization gate before attaching files or nesting folders.
func (m *Manager) CheckFolderOwner(ctx context.Context, ownerID, folderID string) (bool, error) {
	_, err := m.store.FolderByID(ctx, ownerID, folderID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func summarize(folders []models.Folder) []models.SubfolderSummary {
	subs := make([]models.SubfolderSummary, 0, len(folders))
	for _, f := range folders {
		subs = append(subs, models.SubfolderSummary{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt})
	}
	return subs
}

func reverse(path []models.PathEntry) {
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
}
