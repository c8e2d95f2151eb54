package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Abdirazakf/file-uploader/internal/auth"
	"github.com/Abdirazakf/file-uploader/internal/models"
	"github.com/Abdirazakf/file-uploader/internal/storage"
)

type signupRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Signup creates an account after validating email shape, password
// strength and name presence.
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Email, password and name are required")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	if err := auth.ValidateSignup(email, req.Password, name); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.Store.UserByEmail(c.Request.Context(), email); err == nil {
		fail(c, http.StatusBadRequest, "Email already taken")
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		h.serverError(c, "signup lookup", err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.serverError(c, "password hash", err)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Password:  hash,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Store.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			fail(c, http.StatusBadRequest, "Email already taken")
			return
		}
		h.serverError(c, "create user", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"msg": "User successfully created"})
}

// Login checks the credentials and starts a session.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.Store.UserByEmail(c.Request.Context(), email)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if err != nil {
		h.serverError(c, "login lookup", err)
		return
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		fail(c, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	if err := auth.LoginSession(c, user.ID); err != nil {
		h.serverError(c, "session save", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"msg":     "Login successful",
		"user":    userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}

// AuthStatus reports whether a session is active and who it belongs to.
func (h *Handler) AuthStatus(c *gin.Context) {
	id, ok := auth.SessionUserID(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"auth": false, "user": nil})
		return
	}

	user, err := h.Store.UserByID(c.Request.Context(), id)
	if err != nil {
		// Stale cookie for a deleted account behaves like no session.
		c.JSON(http.StatusOK, gin.H{"auth": false, "user": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auth": true,
		"user": userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}

// Logout destroys the session.
func (h *Handler) Logout(c *gin.Context) {
	if err := auth.LogoutSession(c); err != nil {
		fail(c, http.StatusInternalServerError, "Error: Could not log out")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "Logged out successfully"})
}

func (h *Handler) serverError(c *gin.Context, op string, err error) {
	log.Printf("[API] %s: %v", op, err)
	fail(c, http.StatusInternalServerError, "Internal server error")
}
