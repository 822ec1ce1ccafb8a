package user

import (
	"errors"
	"net/http"

	"microblog/internal/auth"
	"microblog/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type UserController struct {
	userService UserServiceInterface
	sessions    *auth.SessionManager
}

func NewUserController(userService UserServiceInterface, sessions *auth.SessionManager) *UserController {
	return &UserController{
		userService: userService,
		sessions:    sessions,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Signup handles user registration and starts a session
func (a *UserController) Signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username+password required"})
		return
	}

	user, err := a.userService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		a.respondError(c, "signup", err)
		return
	}

	if err := a.sessions.StartSession(c, user.Username); err != nil {
		logrus.WithError(err).Error("Failed to issue session token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "user": user.Username})
}

// Login validates credentials and starts a session
func (a *UserController) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username+password required"})
		return
	}

	user, err := a.userService.Verify(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		a.respondError(c, "login", err)
		return
	}

	if err := a.sessions.StartSession(c, user.Username); err != nil {
		logrus.WithError(err).Error("Failed to issue session token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "user": user.Username})
}

// Logout clears the session cookie
func (a *UserController) Logout(c *gin.Context) {
	a.sessions.Revoke(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Me reports the current user. It never fails: the session middleware has
// already dropped missing, invalid and stale sessions, which show as null.
func (a *UserController) Me(c *gin.Context) {
	username, err := auth.GetUsernameFromContext(c)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": username})
}

func (a *UserController) respondError(c *gin.Context, action string, err error) {
	switch {
	case errors.Is(err, common.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": "username+password required"})
	case errors.Is(err, common.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username or password"})
	case errors.Is(err, common.ErrConflict):
		c.JSON(http.StatusBadRequest, gin.H{"error": "user exists"})
	case errors.Is(err, common.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	default:
		logrus.WithError(err).WithField("action", action).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
