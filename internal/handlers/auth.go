package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yukikurage/task-assignment-api/internal/constants"
	"github.com/yukikurage/task-assignment-api/internal/dto"
	apierrors "github.com/yukikurage/task-assignment-api/internal/errors"
	"github.com/yukikurage/task-assignment-api/internal/models"
	"github.com/yukikurage/task-assignment-api/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	userService *services.UserService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
	}
}

type authRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Post dispatches on the action field: login, register or logout.
func (h *AuthHandler) Post(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	switch req.Action {
	case "login":
		h.login(c, req)
	case "register":
		h.register(c, req)
	case "logout":
		h.logout(c)
	default:
		apierrors.BadRequest(c, "Invalid action")
	}
}

func (h *AuthHandler) login(c *gin.Context, req authRequest) {
	if req.Email == "" || req.Password == "" {
		apierrors.BadRequest(c, "Email and password required")
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	if !startSession(c, user) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    dto.ToUserDTO(*user),
	})
}

func (h *AuthHandler) register(c *gin.Context, req authRequest) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		apierrors.BadRequest(c, "Username, email, and password required")
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	if !startSession(c, user) {
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful",
		"user":    dto.ToUserDTO(*user),
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to clear session")
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// Status reports whether the request carries a valid session.
func (h *AuthHandler) Status(c *gin.Context) {
	session := sessions.Default(c)
	userID, ok := session.Get(constants.ContextKeyUserID).(uint64)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if user == nil {
		session.Clear()
		_ = session.Save()
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          dto.ToUserDTO(*user),
	})
}

// startSession binds the session to the user. It writes the error response
// and returns false when the session cannot be saved.
func startSession(c *gin.Context, user *models.User) bool {
	session := sessions.Default(c)
	session.Clear()
	session.Set(constants.ContextKeyUserID, user.ID)
	if err := session.Save(); err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Uint64("user_id", user.ID).Msg("failed to save session")
		apierrors.InternalError(c, "")
		return false
	}
	return true
}
