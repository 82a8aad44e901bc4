package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"inventory-sync-api/internal/auth"
	"inventory-sync-api/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler serves user administration.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

type UserResponse struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

// GetAllUsers returns all users (admin)
// GET /api/users
func (h *UserHandler) GetAllUsers(c *gin.Context) {
	var users []models.User
	if err := h.db.WithContext(c.Request.Context()).Order("id asc").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	// Map to safe response payload
	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, UserResponse{ID: u.ID, Username: u.Username, Role: u.Role})
	}

	c.JSON(http.StatusOK, gin.H{
		"users": resp,
		"count": len(resp),
	})
}

// CreateUser hashes the password and stores a new user. Shared by the CLI.
func CreateUser(db *gorm.DB, username, password string, role models.Role) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("create user: username and password are required")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("create user: unknown role %q", role)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	user := models.User{Username: username, PasswordHash: hash, Role: role}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user %q: %w", username, err)
	}
	return &user, nil
}

// CreateUserRequest represents the request payload for creating a user
type CreateUserRequest struct {
	Username string      `json:"username" binding:"required"`
	Password string      `json:"password" binding:"required,min=8"`
	Role     models.Role `json:"role" binding:"required"`
}

// CreateUserHandler creates a user (admin)
// POST /api/users
func (h *UserHandler) CreateUserHandler(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	var existing int64
	if err := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("username = ?", strings.TrimSpace(req.Username)).Count(&existing).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check username"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		return
	}

	user, err := CreateUser(h.db.WithContext(c.Request.Context()), req.Username, req.Password, req.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	c.JSON(http.StatusCreated, UserResponse{ID: user.ID, Username: user.Username, Role: user.Role})
}
