package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-assignment-api/internal/dto"
	apierrors "github.com/yukikurage/task-assignment-api/internal/errors"
	"github.com/yukikurage/task-assignment-api/internal/middleware"
	"github.com/yukikurage/task-assignment-api/internal/models"
	"github.com/yukikurage/task-assignment-api/internal/services"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsers returns every account, optionally filtered by ?role=
func (h *UserHandler) ListUsers(c *gin.Context) {
	var role *models.Role
	if raw := c.Query("role"); raw != "" {
		parsed, err := models.ParseRole(raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid role")
			return
		}
		role = &parsed
	}

	users, err := h.userService.List(c.Request.Context(), role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": dto.ToUserDTOs(users)})
}

// CreateUser creates an account with a chosen role
func (h *UserHandler) CreateUser(c *gin.Context) {
	type CreateUserRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		apierrors.BadRequest(c, "Username, email, and password required")
		return
	}

	user, err := h.userService.Create(c.Request.Context(), services.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    dto.ToUserDTO(*user),
	})
}

// GetCurrentUser returns the authenticated user
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	h.respondUser(c, userID)
}

// GetUser returns the account named by :id
func (h *UserHandler) GetUser(c *gin.Context) {
	targetID, ok := middleware.GetTargetUserID(c)
	if !ok {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	h.respondUser(c, targetID)
}

func (h *UserHandler) respondUser(c *gin.Context, id uint64) {
	user, err := h.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": dto.ToUserDTO(*user)})
}

// UpdateUser applies a partial update. Only administrators may change roles.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	type UpdateUserRequest struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
		Role     *string `json:"role"`
		Password *string `json:"password"`
	}

	targetID, ok := middleware.GetTargetUserID(c)
	if !ok {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}
	identity, _ := middleware.GetIdentity(c)

	body, err := readBody(c)
	if err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}
	var req UpdateUserRequest
	if err := decodeStrict(body, &req); err != nil {
		apierrors.BadRequest(c, bodyErrorMessage(err))
		return
	}

	input := services.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}
	if req.Role != nil {
		if !identity.IsAdmin() {
			apierrors.Forbidden(c, "Only administrators can change roles")
			return
		}
		role := models.Role(*req.Role)
		input.Role = &role
	}

	user, err := h.userService.Update(c.Request.Context(), targetID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    dto.ToUserDTO(*user),
	})
}

// UpdatePassword resets the password of the account named by :id
func (h *UserHandler) UpdatePassword(c *gin.Context) {
	type UpdatePasswordRequest struct {
		Password string `json:"password" binding:"required"`
	}

	targetID, ok := middleware.GetTargetUserID(c)
	if !ok {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	body, err := readBody(c)
	if err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}
	var req UpdatePasswordRequest
	if err := decodeStrict(body, &req); err != nil {
		apierrors.BadRequest(c, bodyErrorMessage(err))
		return
	}

	if err := h.userService.UpdatePassword(c.Request.Context(), targetID, req.Password); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// DeleteUser removes an account no task refers to
func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID, ok := parseID(c)
	if !ok {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	if _, err := h.userService.Delete(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
