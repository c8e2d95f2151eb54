// Package files handles file metadata CRUD and the upload pipeline: blob
// first, row second, optional async virus scan.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Abdirazakf/file-uploader/internal/blob"
	"github.com/Abdirazakf/file-uploader/internal/foldertree"
	"github.com/Abdirazakf/file-uploader/internal/models"
	"github.com/Abdirazakf/file-uploader/internal/storage"
)

var (
	ErrNotFound = errors.New("file not found")

	// ErrFolderNotFound is returned when the target folder of an upload or
	// move is not owned by the caller. Mapped to 403 at the boundary.
	ErrFolderNotFound = errors.New("folder not found")

	ErrInvalidName = errors.New("file name must be between 1 and 255 characters")

	ErrNoUpdates = errors.New("no updates")
)

// ScanStatus values recorded on file rows.
const (
	ScanPending  = "pending"
	ScanClean    = "clean"
	ScanInfected = "infected"
)

// Scanner runs an out-of-band malware scan on an uploaded object.
type Scanner interface {
	Scan(fileID, objectKey string)
}

// Events mirrors foldertree.Events.
type Events interface {
	Publish(subject string, payload any)
}

// Upload carries one inbound file.
type Upload struct {
	FileName string
	MimeType string
	Size     int64
	FolderID string // "" = root
	Reader   io.Reader
}

// Patch describes a metadata update: rename and/or move. Zero-value fields
// are left unchanged; MoveToRoot moves the file out of its folder.
type Patch struct {
	OriginalName string
	FolderID     string
	MoveToRoot   bool
}

// Manager is the file-side counterpart of foldertree.Manager. The tree
// manager is consulted for folder ownership gates.
type Manager struct {
	store   storage.Store
	blobs   blob.ObjectStore
	tree    *foldertree.Manager
	events  Events
	scanner Scanner
}

func New(store storage.Store, blobs blob.ObjectStore, tree *foldertree.Manager, events Events, scanner Scanner) *Manager {
	return &Manager{store: store, blobs: blobs, tree: tree, events: events, scanner: scanner}
}

// ObjectKey returns the blob key for a file row.
func ObjectKey(f *models.File) string {
	return f.OwnerID + "/" + f.Name
}

// Store uploads the blob and then creates the metadata row. The row is
// never created when the blob upload fails; a row-insert failure rolls the
// blob back best-effort.
func (m *Manager) Store(ctx context.Context, ownerID string, up Upload) (*models.FileDetail, error) {
	if err := validateOriginalName(up.FileName); err != nil {
		return nil, err
	}

	var folderRef *models.FolderRef
	var folderPtr *string
	if up.FolderID != "" {
		folder, err := m.store.FolderByID(ctx, ownerID, up.FolderID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrFolderNotFound
		}
		if err != nil {
			return nil, err
		}
		folderRef = &models.FolderRef{ID: folder.ID, Name: folder.Name}
		folderPtr = &folder.ID
	}

	ext := filepath.Ext(up.FileName)
	storageName := fmt.Sprintf("%s_%d%s", ownerID, time.Now().UnixMilli(), ext)
	key := ownerID + "/" + storageName

	url, err := m.blobs.Upload(ctx, key, up.Reader, up.Size, up.MimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	file := &models.File{
		ID:           uuid.New().String(),
		Name:         storageName,
		OriginalName: up.FileName,
		Size:         up.Size,
		MimeType:     up.MimeType,
		URL:          url,
		OwnerID:      ownerID,
		FolderID:     folderPtr,
		ScanStatus:   ScanPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.store.CreateFile(ctx, file); err != nil {
		if delErr := m.blobs.Delete(ctx, key); delErr != nil {
			log.Printf("[Files] failed to roll back blob %s: %v", key, delErr)
		}
		return nil, err
	}

	if m.events != nil {
		m.events.Publish("files.uploaded", map[string]any{
			"file_id": file.ID,
			"user_id": ownerID,
			"size":    file.Size,
		})
	}
	if m.scanner != nil {
		go m.scanner.Scan(file.ID, key)
	}

	return &models.FileDetail{File: *file, Folder: folderRef}, nil
}

// RootFiles lists the owner's files outside any folder, newest first.
func (m *Manager) RootFiles(ctx context.Context, ownerID string) ([]models.File, error) {
	return m.store.RootFiles(ctx, ownerID)
}

// AllFiles lists every file the owner has, newest first, with folder refs.
func (m *Manager) AllFiles(ctx context.Context, ownerID string) ([]models.FileDetail, error) {
	files, err := m.store.AllFiles(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return m.attachFolders(ctx, ownerID, files)
}

// Search matches name and originalName case-insensitively.
func (m *Manager) Search(ctx context.Context, ownerID, term string) ([]models.FileDetail, error) {
	files, err := m.store.SearchFiles(ctx, ownerID, term)
	if err != nil {
		return nil, err
	}
	return m.attachFolders(ctx, ownerID, files)
}

// FileByID returns the file with its folder reference.
func (m *Manager) FileByID(ctx context.Context, ownerID, fileID string) (*models.FileDetail, error) {
	file, err := m.store.FileByID(ctx, ownerID, fileID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	detail := &models.FileDetail{File: *file}
	if file.FolderID != nil {
		folder, err := m.store.FolderByID(ctx, ownerID, *file.FolderID)
		if err == nil {
			detail.Folder = &models.FolderRef{ID: folder.ID, Name: folder.Name}
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	return detail, nil
}

// Update renames and/or moves a file. A move target must pass the folder
// ownership gate.
func (m *Manager) Update(ctx context.Context, ownerID, fileID string, patch Patch) (*models.FileDetail, error) {
	var stored storage.FilePatch

	if patch.OriginalName != "" {
		name := strings.TrimSpace(patch.OriginalName)
		if err := validateOriginalName(name); err != nil {
			return nil, err
		}
		stored.OriginalName = &name
	}
	if patch.MoveToRoot {
		stored.MoveToRoot = true
	} else if patch.FolderID != "" {
		owned, err := m.tree.CheckFolderOwner(ctx, ownerID, patch.FolderID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, ErrFolderNotFound
		}
		stored.FolderID = &patch.FolderID
	}
	if stored.OriginalName == nil && stored.FolderID == nil && !stored.MoveToRoot {
		return nil, ErrNoUpdates
	}

	count, err := m.store.UpdateFile(ctx, ownerID, fileID, stored)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	return m.FileByID(ctx, ownerID, fileID)
}

// Delete removes the blob best-effort, then the row. A blob failure is
// logged and the row still goes — the database is authoritative.
func (m *Manager) Delete(ctx context.Context, ownerID, fileID string) error {
	file, err := m.store.FileByID(ctx, ownerID, fileID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if m.blobs != nil {
		if err := m.blobs.Delete(ctx, ObjectKey(file)); err != nil {
			log.Printf("[Files] failed to delete blob for file %s: %v", fileID, err)
		}
	}

	count, err := m.store.DeleteFile(ctx, ownerID, fileID)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}

	if m.events != nil {
		m.events.Publish("files.deleted", map[string]any{
			"file_id": fileID,
			"user_id": ownerID,
		})
	}
	return nil
}

func (m *Manager) attachFolders(ctx context.Context, ownerID string, files []models.File) ([]models.FileDetail, error) {
	refs := make(map[string]*models.FolderRef)
	details := make([]models.FileDetail, 0, len(files))
	for _, f := range files {
		detail := models.FileDetail{File: f}
		if f.FolderID != nil {
			ref, ok := refs[*f.FolderID]
			if !ok {
				folder, err := m.store.FolderByID(ctx, ownerID, *f.FolderID)
				if err == nil {
					ref = &models.FolderRef{ID: folder.ID, Name: folder.Name}
				} else if !errors.Is(err, storage.ErrNotFound) {
					return nil, err
				}
				refs[*f.FolderID] = ref
			}
			detail.Folder = ref
		}
		details = append(details, detail)
	}
	return details, nil
}

func validateOriginalName(name string) error {
	if name == "" || len(name) > 255 {
		return ErrInvalidName
	}
	return nil
}
