package handlers

import (
	"github.com/Abdirazakf/file-uploader/internal/files"
	"github.com/Abdirazakf/file-uploader/internal/foldertree"
	"github.com/Abdirazakf/file-uploader/internal/storage"
)

// Handler carries the injected collaborators for every route.
type Handler struct {
	Store          storage.Store
	Tree           *foldertree.Manager
	Files          *files.Manager
	MaxUploadBytes int64
}

func New(store storage.Store, tree *foldertree.Manager, fileMgr *files.Manager, maxUploadBytes int64) *Handler {
	return &Handler{
		Store:          store,
		Tree:           tree,
		Files:          fileMgr,
		MaxUploadBytes: maxUploadBytes,
	}
}
