package files

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Abdirazakf/file-uploader/internal/foldertree"
	"github.com/Abdirazakf/file-uploader/internal/models"
	"github.com/Abdirazakf/file-uploader/internal/storage"
)

type fakeBlobs struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failPut  bool
	failDel  bool
	deleted  []string
	uploaded []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (f *fakeBlobs) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return "", errors.New("upload refused")
	}
	data, _ := io.ReadAll(r)
	f.objects[key] = data
	f.uploaded = append(f.uploaded, key)
	return "http://blob/" + key, nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDel {
		return errors.New("delete refused")
	}
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBlobs) DeleteMany(ctx context.Context, keys []string) error {
	for _, k := range keys {
		f.Delete(ctx, k)
	}
	return nil
}

func (f *fakeBlobs) DeleteByPrefix(_ context.Context, _ string) error { return nil }
func (f *fakeBlobs) DownloadTo(_ context.Context, _, _ string) error  { return nil }
func (f *fakeBlobs) PublicURL(key string) string                      { return "http://blob/" + key }

type recordingScanner struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
}

func (r *recordingScanner) Scan(fileID, key string) {
	r.mu.Lock()
	r.calls = append(r.calls, fileID+" "+key)
	r.mu.Unlock()
	if r.done != nil {
		close(r.done)
	}
}

func setup(t *testing.T) (*Manager, storage.Store, *fakeBlobs) {
	t.Helper()
	store, err := storage.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	blobs := newFakeBlobs()
	tree := foldertree.New(store, blobs, nil)
	return New(store, blobs, tree, nil, nil), store, blobs
}

func addUser(t *testing.T, store storage.Store, email string) string {
	t.Helper()
	now := time.Now().UTC()
	u := &models.User{
		ID: uuid.New().String(), Email: email, Password: "x", Name: "u",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u.ID
}

func addFolder(t *testing.T, store storage.Store, ownerID, name string) *models.Folder {
	t.Helper()
	now := time.Now().UTC()
	f := &models.Folder{
		ID: uuid.New().String(), Name: name, OwnerID: ownerID,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := store.CreateFolder(context.Background(), f); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	return f
}

func upload(name string, size int64, folderID string) Upload {
	return Upload{
		FileName: name,
		MimeType: "application/pdf",
		Size:     size,
		FolderID: folderID,
		Reader:   bytes.NewReader(bytes.Repeat([]byte{0xAB}, int(size))),
	}
}

func TestStoreUpload(t *testing.T) {
	m, store, blobs := setup(t)
	ctx := context.Background()
	owner := addUser(t, store, "a@example.com")
	folder := addFolder(t, store, owner, "Docs")

	file, err := m.Store(ctx, owner, upload("q1.pdf", 2048, folder.ID))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if file.OriginalName != "q1.pdf" {
		t.Errorf("originalName = %s", file.OriginalName)
	}
	if !strings.HasPrefix(file.Name, owner+"_") || !strings.HasSuffix(file.Name, ".pdf") {
		t.Errorf("storage name = %s, want %s_<ts>.pdf", file.Name, owner)
	}
	if file.Size != 2048 {
		t.Errorf("size = %d", file.Size)
	}
	if file.Folder == nil || file.Folder.ID != folder.ID {
		t.Errorf("folder ref = %+v", file.Folder)
	}
	if file.ScanStatus != ScanPending {
		t.Errorf("scanStatus = %s, want pending", file.ScanStatus)
	}

	key := owner + "/" + file.Name
	if _, ok := blobs.objects[key]; !ok {
		t.Errorf("blob %s not stored", key)
	}
	if file.URL != "http://blob/"+key {
		t.Errorf("url = %s", file.URL)
	}

	row, err := store.FileByID(ctx, owner, file.ID)
	if err != nil {
		t.Fatalf("row not created: %v", err)
	}
	if row.Size != 2048 {
		t.Errorf("row size = %d", row.Size)
	}
}

func TestStoreUploadToForeignFolder(t *testing.T) {
	m, store, blobs := setup(t)
	ctx := context.Background()
	alice := addUser(t, store, "alice@example.com")
	bob := addUser(t, store, "bob@example.com")
	aliceFolder := addFolder(t, store, alice, "Private")

	_, err := m.Store(ctx, bob, upload("x.pdf", 10, aliceFolder.ID))
	if !errors.Is(err, ErrFolderNotFound) {
		t.Fatalf("expected ErrFolderNotFound, got %v", err)
	}
	if len(blobs.uploaded) != 0 {
		t.Errorf("blob uploaded despite rejected folder")
	}
}

func TestStoreUploadBlobFailureCreatesNoRow(t *testing.T) {
	m, store, blobs := setup(t)
	ctx := context.Background()
	owner := addUser(t, store, "a@example.com")
	blobs.failPut = true

	if _, err := m.Store(ctx, owner, upload("x.pdf", 10, "")); err == nil {
		t.Fatal("expected upload error")
	}

	all, _ := store.AllFiles(ctx, owner)
	if len(all) != 0 {
		t.Errorf("file row created despite blob failure")
	}
}

func TestStoreUploadTriggersScan(t *testing.T) {
	store, err := storage.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	blobs := newFakeBlobs()
	tree := foldertree.New(store, blobs, nil)
	scanner := &recordingScanner{done: make(chan struct{})}
	m := New(store, blobs, tree, nil, scanner)

	owner := addUser(t, store, "a@example.com")
	file, err := m.Store(context.Background(), owner, upload("x.pdf", 10, ""))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	select {
	case <-scanner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scanner was not invoked")
	}

	scanner.mu.Lock()
	defer scanner.mu.Unlock()
	want := file.ID + " " + owner + "/" + file.Name
	if len(scanner.calls) != 1 || scanner.calls[0] != want {
		t.Errorf("scanner calls = %v, want [%s]", scanner.calls, want)
	}
}

func TestUpdateRenameAndMove(t *testing.T) {
	m, store, _ := setup(t)
	ctx := context.Background()
	owner := addUser(t, store, "a@example.com")
	folder := addFolder(t, store, owner, "Docs")

	file, err := m.Store(ctx, owner, upload("draft.pdf", 10, ""))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	updated, err := m.Update(ctx, owner, file.ID, Patch{OriginalName: "final.pdf", FolderID: folder.ID})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.OriginalName != "final.pdf" {
		t.Errorf("originalName = %s", updated.OriginalName)
	}
	if updated.Folder == nil || updated.Folder.ID != folder.ID {
		t.Errorf("folder ref = %+v", updated.Folder)
	}

	back, err := m.Update(ctx, owner, file.ID, Patch{MoveToRoot: true})
	if err != nil {
		t.Fatalf("Update move to root: %v", err)
	}
	if back.FolderID != nil {
		t.Errorf("folderId = %v, want nil", back.FolderID)
	}
}

func TestUpdateRejectsForeignFolderAndEmptyPatch(t *testing.T) {
	m, store, _ := setup(t)
	ctx := context.Background()
	alice := addUser(t, store, "alice@example.com")
	bob := addUser(t, store, "bob@example.com")
	bobFolder := addFolder(t, store, bob, "Theirs")

	file, err := m.Store(ctx, alice, upload("a.pdf", 10, ""))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if _, err := m.Update(ctx, alice, file.ID, Patch{FolderID: bobFolder.ID}); !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("expected ErrFolderNotFound, got %v", err)
	}
	if _, err := m.Update(ctx, alice, file.ID, Patch{}); !errors.Is(err, ErrNoUpdates) {
		t.Errorf("expected ErrNoUpdates, got %v", err)
	}
}

func TestDeleteRemovesBlobAndRow(t *testing.T) {
	m, store, blobs := setup(t)
	ctx := context.Background()
	owner := addUser(t, store, "a@example.com")

	file, err := m.Store(ctx, owner, upload("a.pdf", 10, ""))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if err := m.Delete(ctx, owner, file.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.FileByID(ctx, owner, file.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("file still present: %v", err)
	}
	if len(blobs.deleted) != 1 {
		t.Errorf("blob not deleted: %v", blobs.deleted)
	}
}

func TestDeleteBlobFailureStillDeletesRow(t *testing.T) {
	m, store, blobs := setup(t)
	ctx := context.Background()
	owner := addUser(t, store, "a@example.com")

	file, err := m.Store(ctx, owner, upload("a.pdf", 10, ""))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	blobs.failDel = true

	if err := m.Delete(ctx, owner, file.ID); err != nil {
		t.Fatalf("Delete should swallow blob failure: %v", err)
	}
	if _, err := m.FileByID(ctx, owner, file.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("row survived: %v", err)
	}
}

func TestDeleteIsOwnerScoped(t *testing.T) {
	m, store, _ := setup(t)
	ctx := context.Background()
	alice := addUser(t, store, "alice@example.com")
	bob := addUser(t, store, "bob@example.com")

	file, err := m.Store(ctx, alice, upload("a.pdf", 10, ""))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if err := m.Delete(ctx, bob, file.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.FileByID(ctx, alice, file.ID); err != nil {
		t.Errorf("alice's file gone: %v", err)
	}
}

func TestAllFilesAttachesFolderRefs(t *testing.T) {
	m, store, _ := setup(t)
	ctx := context.Background()
	owner := addUser(t, store, "a@example.com")
	folder := addFolder(t, store, owner, "Docs")

	if _, err := m.Store(ctx, owner, upload("in.pdf", 10, folder.ID)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := m.Store(ctx, owner, upload("out.pdf", 10, "")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	all, err := m.AllFiles(ctx, owner)
	if err != nil {
		t.Fatalf("AllFiles: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d files, want 2", len(all))
	}
	var withRef, withoutRef int
	for _, f := range all {
		if f.Folder != nil {
			if f.Folder.Name != "Docs" {
				t.Errorf("folder ref name = %s", f.Folder.Name)
			}
			withRef++
		} else {
			withoutRef++
		}
	}
	if withRef != 1 || withoutRef != 1 {
		t.Errorf("refs = %d/%d, want 1/1", withRef, withoutRef)
	}
}

func TestSearch(t *testing.T) {
	m, store, _ := setup(t)
	ctx := context.Background()
	owner := addUser(t, store, "a@example.com")

	if _, err := m.Store(ctx, owner, upload("Quarterly-Report.pdf", 10, "")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := m.Store(ctx, owner, upload("notes.txt", 10, "")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := m.Search(ctx, owner, "report")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].OriginalName != "Quarterly-Report.pdf" {
		t.Errorf("search results = %+v", got)
	}
}
