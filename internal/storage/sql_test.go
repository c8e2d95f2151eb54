package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Abdirazakf/file-uploader/internal/models"
)

func setupStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newUser(t *testing.T, s *SQLStore, email string) *models.User {
	t.Helper()
	now := time.Now().UTC()
	u := &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Password:  "x",
		Name:      "Test User",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func newFolder(t *testing.T, s *SQLStore, ownerID, name string, parentID *string) *models.Folder {
	t.Helper()
	now := time.Now().UTC()
	f := &models.Folder{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   ownerID,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateFolder(context.Background(), f); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	return f
}

func newFile(t *testing.T, s *SQLStore, ownerID string, folderID *string, name string, size int64) *models.File {
	t.Helper()
	f := &models.File{
		ID:           uuid.New().String(),
		Name:         name,
		OriginalName: name,
		Size:         size,
		MimeType:     "application/octet-stream",
		URL:          "http://blob/" + name,
		OwnerID:      ownerID,
		FolderID:     folderID,
		ScanStatus:   "pending",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateFile(context.Background(), f); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	return f
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := setupStore(t)
	newUser(t, s, "a@example.com")

	now := time.Now().UTC()
	dup := &models.User{
		ID: uuid.New().String(), Email: "a@example.com", Password: "y",
		Name: "Other", CreatedAt: now, UpdatedAt: now,
	}
	if err := s.CreateUser(context.Background(), dup); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestUserLookup(t *testing.T) {
	s := setupStore(t)
	u := newUser(t, s, "a@example.com")

	got, err := s.UserByEmail(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("UserByEmail id = %s, want %s", got.ID, u.ID)
	}

	if _, err := s.UserByEmail(context.Background(), "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing email, got %v", err)
	}
	if _, err := s.UserByID(context.Background(), uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing id, got %v", err)
	}
}

func TestFolderOwnerScoping(t *testing.T) {
	s := setupStore(t)
	alice := newUser(t, s, "alice@example.com")
	bob := newUser(t, s, "bob@example.com")
	folder := newFolder(t, s, alice.ID, "Docs", nil)

	if _, err := s.FolderByID(context.Background(), bob.ID, folder.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign folder, got %v", err)
	}
	if _, err := s.FolderByID(context.Background(), alice.ID, folder.ID); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
}

func TestFolderCascadeDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := newUser(t, s, "a@example.com")

	root := newFolder(t, s, u.ID, "root", nil)
	child := newFolder(t, s, u.ID, "child", &root.ID)
	grandchild := newFolder(t, s, u.ID, "grandchild", &child.ID)
	newFile(t, s, u.ID, &grandchild.ID, "deep.bin", 10)
	newFile(t, s, u.ID, &root.ID, "top.bin", 20)
	rootFile := newFile(t, s, u.ID, nil, "loose.bin", 30)

	count, err := s.DeleteFolder(ctx, u.ID, root.ID)
	if err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}
	if count != 1 {
		t.Fatalf("DeleteFolder count = %d, want 1", count)
	}

	for _, id := range []string{root.ID, child.ID, grandchild.ID} {
		if _, err := s.FolderByID(ctx, u.ID, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("folder %s survived cascade", id)
		}
	}

	all, err := s.AllFiles(ctx, u.ID)
	if err != nil {
		t.Fatalf("AllFiles: %v", err)
	}
	if len(all) != 1 || all[0].ID != rootFile.ID {
		t.Errorf("expected only the root-level file to survive, got %d files", len(all))
	}
}

func TestRootFoldersOrdering(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := newUser(t, s, "a@example.com")

	base := time.Now().UTC().Add(-time.Hour)
	for i, name := range []string{"first", "second", "third"} {
		f := &models.Folder{
			ID: uuid.New().String(), Name: name, OwnerID: u.ID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateFolder(ctx, f); err != nil {
			t.Fatalf("CreateFolder: %v", err)
		}
	}

	roots, err := s.RootFolders(ctx, u.ID)
	if err != nil {
		t.Fatalf("RootFolders: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(roots) != len(want) {
		t.Fatalf("got %d roots, want %d", len(roots), len(want))
	}
	for i, name := range want {
		if roots[i].Name != name {
			t.Errorf("roots[%d] = %s, want %s", i, roots[i].Name, name)
		}
	}
}

func TestUpdateFilePatch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := newUser(t, s, "a@example.com")
	folder := newFolder(t, s, u.ID, "Docs", nil)
	file := newFile(t, s, u.ID, nil, "a.txt", 5)

	name := "renamed.txt"
	count, err := s.UpdateFile(ctx, u.ID, file.ID, FilePatch{OriginalName: &name, FolderID: &folder.ID})
	if err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	if count != 1 {
		t.Fatalf("UpdateFile count = %d, want 1", count)
	}

	got, err := s.FileByID(ctx, u.ID, file.ID)
	if err != nil {
		t.Fatalf("FileByID: %v", err)
	}
	if got.OriginalName != name {
		t.Errorf("originalName = %s, want %s", got.OriginalName, name)
	}
	if got.FolderID == nil || *got.FolderID != folder.ID {
		t.Errorf("folderId not updated")
	}

	count, err = s.UpdateFile(ctx, u.ID, file.ID, FilePatch{MoveToRoot: true})
	if err != nil || count != 1 {
		t.Fatalf("MoveToRoot update failed: count=%d err=%v", count, err)
	}
	got, _ = s.FileByID(ctx, u.ID, file.ID)
	if got.FolderID != nil {
		t.Errorf("expected nil folderId after MoveToRoot")
	}

	count, err = s.UpdateFile(ctx, u.ID, file.ID, FilePatch{})
	if err != nil || count != 0 {
		t.Fatalf("empty patch should be a no-op: count=%d err=%v", count, err)
	}
}

func TestSearchFilesCaseInsensitive(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := newUser(t, s, "a@example.com")
	newFile(t, s, u.ID, nil, "Report-Q1.pdf", 1)
	newFile(t, s, u.ID, nil, "notes.txt", 1)

	got, err := s.SearchFiles(ctx, u.ID, "report")
	if err != nil {
		t.Fatalf("SearchFiles: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Report-Q1.pdf" {
		t.Fatalf("search mismatch: %+v", got)
	}
}

func TestDeleteUserData(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := newUser(t, s, "a@example.com")
	other := newUser(t, s, "b@example.com")

	root := newFolder(t, s, u.ID, "root", nil)
	newFolder(t, s, u.ID, "child", &root.ID)
	newFile(t, s, u.ID, &root.ID, "in-folder.bin", 1)
	newFile(t, s, u.ID, nil, "loose.bin", 1)
	keep := newFile(t, s, other.ID, nil, "keep.bin", 1)

	if _, _, err := s.DeleteUserData(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUserData: %v", err)
	}

	mine, _ := s.AllFiles(ctx, u.ID)
	if len(mine) != 0 {
		t.Errorf("expected no files left, got %d", len(mine))
	}
	theirs, _ := s.AllFiles(ctx, other.ID)
	if len(theirs) != 1 || theirs[0].ID != keep.ID {
		t.Errorf("other user's data was touched")
	}
}
