package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Abdirazakf/file-uploader/internal/auth"
	"github.com/Abdirazakf/file-uploader/internal/foldertree"
)

type createFolderRequest struct {
	Name     string `json:"name" binding:"required"`
	ParentID string `json:"parentId"`
}

type renameFolderRequest struct {
	Name string `json:"name" binding:"required"`
}

// GetUserFolders returns the caller's root folders with derived fields.
func (h *Handler) GetUserFolders(c *gin.Context) {
	userID, _ := auth.UserID(c)

	folders, err := h.Tree.RootFolders(c.Request.Context(), userID)
	if err != nil {
		h.serverError(c, "get folders", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "folders": folders})
}

// GetFolderByID returns the detail view of one folder.
func (h *Handler) GetFolderByID(c *gin.Context) {
	userID, _ := auth.UserID(c)
	id := c.Param("id")
	if !isUUID(id) {
		fail(c, http.StatusBadRequest, "Invalid folder ID")
		return
	}

	folder, err := h.Tree.FolderByID(c.Request.Context(), userID, id)
	if errors.Is(err, foldertree.ErrNotFound) {
		fail(c, http.StatusNotFound, "Folder not found")
		return
	}
	if err != nil {
		h.serverError(c, "get folder", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "folder": folder})
}

// CreateFolder makes a folder, optionally nested under an owned parent.
func (h *Handler) CreateFolder(c *gin.Context) {
	userID, _ := auth.UserID(c)

	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Folder name is required")
		return
	}
	if req.ParentID != "" && !isUUID(req.ParentID) {
		fail(c, http.StatusBadRequest, "Invalid parent folder ID")
		return
	}

	folder, err := h.Tree.CreateFolder(c.Request.Context(), userID, req.Name, req.ParentID)
	switch {
	case errors.Is(err, foldertree.ErrInvalidName):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, foldertree.ErrParentNotFound):
		fail(c, http.StatusForbidden, "Parent folder not found")
		return
	case err != nil:
		h.serverError(c, "create folder", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"msg":     "Folder created successfully",
		"folder":  folder,
	})
}

// UpdateFolder renames a folder.
func (h *Handler) UpdateFolder(c *gin.Context) {
	userID, _ := auth.UserID(c)
	id := c.Param("id")
	if !isUUID(id) {
		fail(c, http.StatusBadRequest, "Invalid folder ID")
		return
	}

	var req renameFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Folder name is required")
		return
	}

	folder, err := h.Tree.RenameFolder(c.Request.Context(), userID, id, req.Name)
	switch {
	case errors.Is(err, foldertree.ErrInvalidName):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, foldertree.ErrNotFound):
		fail(c, http.StatusNotFound, "Folder not found")
		return
	case err != nil:
		h.serverError(c, "update folder", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"msg":     "Folder updated successfully",
		"folder":  folder,
	})
}

// DeleteFolder removes a folder and everything beneath it.
func (h *Handler) DeleteFolder(c *gin.Context) {
	userID, _ := auth.UserID(c)
	id := c.Param("id")
	if !isUUID(id) {
		fail(c, http.StatusBadRequest, "Invalid folder ID")
		return
	}

	err := h.Tree.DeleteFolder(c.Request.Context(), userID, id)
	if errors.Is(err, foldertree.ErrNotFound) {
		fail(c, http.StatusNotFound, "Folder not found")
		return
	}
	if err != nil {
		h.serverError(c, "delete folder", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"msg":     "Folder and all its contents deleted successfully",
	})
}
