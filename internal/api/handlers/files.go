package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Abdirazakf/file-uploader/internal/auth"
	"github.com/Abdirazakf/file-uploader/internal/files"
)

type updateFileRequest struct {
	OriginalName string `json:"originalName"`
	FolderID     string `json:"folderId"`
	MoveToRoot   bool   `json:"moveToRoot"`
}

// UploadFile takes a multipart "file" field with an optional "folderId"
// form value and stores blob + metadata.
func (h *Handler) UploadFile(c *gin.Context) {
	userID, _ := auth.UserID(c)

	folderID := c.PostForm("folderId")
	if folderID != "" && !isUUID(folderID) {
		fail(c, http.StatusBadRequest, "Invalid folder ID")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil || fh == nil {
		fail(c, http.StatusBadRequest, "No file uploaded")
		return
	}
	if fh.Size > h.MaxUploadBytes {
		fail(c, http.StatusBadRequest,
			fmt.Sprintf("File too large (max %d MB)", h.MaxUploadBytes>>20))
		return
	}

	src, err := fh.Open()
	if err != nil {
		h.serverError(c, "open upload", err)
		return
	}
	defer src.Close()

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	file, err := h.Files.Store(c.Request.Context(), userID, files.Upload{
		FileName: fh.Filename,
		MimeType: mimeType,
		Size:     fh.Size,
		FolderID: folderID,
		Reader:   src,
	})
	switch {
	case errors.Is(err, files.ErrInvalidName):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, files.ErrFolderNotFound):
		fail(c, http.StatusForbidden, "Folder not found")
		return
	case err != nil:
		h.serverError(c, "upload file", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"msg":     "File uploaded successfully",
		"file":    file,
	})
}

// GetRootFiles lists the caller's files outside any folder.
func (h *Handler) GetRootFiles(c *gin.Context) {
	userID, _ := auth.UserID(c)

	fileList, err := h.Files.RootFiles(c.Request.Context(), userID)
	if err != nil {
		h.serverError(c, "get root files", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "files": fileList})
}

// GetAllFiles lists every file the caller owns, with folder refs.
func (h *Handler) GetAllFiles(c *gin.Context) {
	userID, _ := auth.UserID(c)

	fileList, err := h.Files.AllFiles(c.Request.Context(), userID)
	if err != nil {
		h.serverError(c, "get all files", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "files": fileList})
}

// SearchFiles matches the q parameter against name and originalName.
func (h *Handler) SearchFiles(c *gin.Context) {
	userID, _ := auth.UserID(c)

	term := c.Query("q")
	if term == "" {
		fail(c, http.StatusBadRequest, "Search term is required")
		return
	}

	fileList, err := h.Files.Search(c.Request.Context(), userID, term)
	if err != nil {
		h.serverError(c, "search files", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "files": fileList})
}

// GetFileByID returns one file with its folder reference.
func (h *Handler) GetFileByID(c *gin.Context) {
	userID, _ := auth.UserID(c)
	id := c.Param("id")
	if !isUUID(id) {
		fail(c, http.StatusBadRequest, "Invalid file ID")
		return
	}

	file, err := h.Files.FileByID(c.Request.Context(), userID, id)
	if errors.Is(err, files.ErrNotFound) {
		fail(c, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		h.serverError(c, "get file", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "file": file})
}

// UpdateFile renames and/or moves a file.
func (h *Handler) UpdateFile(c *gin.Context) {
	userID, _ := auth.UserID(c)
	id := c.Param("id")
	if !isUUID(id) {
		fail(c, http.StatusBadRequest, "Invalid file ID")
		return
	}

	var req updateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FolderID != "" && !isUUID(req.FolderID) {
		fail(c, http.StatusBadRequest, "Invalid folder ID")
		return
	}

	file, err := h.Files.Update(c.Request.Context(), userID, id, files.Patch{
		OriginalName: req.OriginalName,
		FolderID:     req.FolderID,
		MoveToRoot:   req.MoveToRoot,
	})
	switch {
	case errors.Is(err, files.ErrInvalidName):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, files.ErrNoUpdates):
		fail(c, http.StatusBadRequest, "No updates")
		return
	case errors.Is(err, files.ErrFolderNotFound):
		fail(c, http.StatusForbidden, "Folder not found")
		return
	case errors.Is(err, files.ErrNotFound):
		fail(c, http.StatusNotFound, "File not found")
		return
	case err != nil:
		h.serverError(c, "update file", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"msg":     "File updated successfully",
		"file":    file,
	})
}

// DeleteFile removes a file's blob (best-effort) and row.
func (h *Handler) DeleteFile(c *gin.Context) {
	userID, _ := auth.UserID(c)
	id := c.Param("id")
	if !isUUID(id) {
		fail(c, http.StatusBadRequest, "Invalid file ID")
		return
	}

	err := h.Files.Delete(c.Request.Context(), userID, id)
	if errors.Is(err, files.ErrNotFound) {
		fail(c, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		h.serverError(c, "delete file", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "File deleted successfully"})
}

// DownloadFile redirects to the blob's public URL.
func (h *Handler) DownloadFile(c *gin.Context) {
	userID, _ := auth.UserID(c)
	id := c.Param("id")
	if !isUUID(id) {
		fail(c, http.StatusBadRequest, "Invalid file ID")
		return
	}

	file, err := h.Files.FileByID(c.Request.Context(), userID, id)
	if errors.Is(err, files.ErrNotFound) {
		fail(c, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		h.serverError(c, "download file", err)
		return
	}

	c.Redirect(http.StatusFound, file.URL)
}
