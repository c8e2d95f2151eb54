package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Abdirazakf/file-uploader/internal/models"
)

// ErrNotFound is returned when a row does not exist under the given owner.
// A row owned by someone else is reported identically.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateEmail is returned by CreateUser when the email is taken.
var ErrDuplicateEmail = errors.New("email already taken")

// FilePatch lists the mutable file fields. Nil means "leave unchanged".
// MoveToRoot clears folder_id, which FolderID alone cannot express.
type FilePatch struct {
	OriginalName *string
	FolderID     *string
	MoveToRoot   bool
}

// Store is the persistence collaborator. Every folder/file read and write is
// scoped by owner at the query level; the cascade from a folder to its
// subtree (subfolders and files, any depth) is enforced by the schema's
// foreign keys, so deleting one folder row removes the whole subtree
// atomically.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)

	CreateFolder(ctx context.Context, f *models.Folder) error
	FolderByID(ctx context.Context, ownerID, id string) (*models.Folder, error)
	RootFolders(ctx context.Context, ownerID string) ([]models.Folder, error)
	Subfolders(ctx context.Context, ownerID, parentID string, newestFirst bool) ([]models.Folder, error)
	UpdateFolderName(ctx context.Context, ownerID, id, name string, updatedAt time.Time) (int64, error)
	DeleteFolder(ctx context.Context, ownerID, id string) (int64, error)
	CountChildren(ctx context.Context, ownerID, folderID string) (models.ChildCounts, error)

	CreateFile(ctx context.Context, f *models.File) error
	FileByID(ctx context.Context, ownerID, id string) (*models.File, error)
	RootFiles(ctx context.Context, ownerID string) ([]models.File, error)
	FilesInFolder(ctx context.Context, ownerID, folderID string) ([]models.File, error)
	AllFiles(ctx context.Context, ownerID string) ([]models.File, error)
	SearchFiles(ctx context.Context, ownerID, term string) ([]models.File, error)
	UpdateFile(ctx context.Context, ownerID, id string, patch FilePatch) (int64, error)
	DeleteFile(ctx context.Context, ownerID, id string) (int64, error)
	SetFileScanStatus(ctx context.Context, id, status string, at time.Time) error

	// DeleteUserData removes every folder and file row owned by the user.
	// Used by the users.deleted event consumer.
	DeleteUserData(ctx context.Context, ownerID string) (folders, files int64, err error)

	Close() error
}
