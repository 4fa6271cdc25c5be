package transport

import (
	"net/http"
	"time"

	"github.com/ds124wfegd/courseportal/internal/auth"
	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/ds124wfegd/courseportal/internal/service"
	"github.com/ds124wfegd/courseportal/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

// SessionConfig describes the session cookie.
type SessionConfig struct {
	CookieName string
	Secure     bool
}

type UserHandler struct {
	userService       service.UserService
	enrollmentService service.EnrollmentService
	tokens            *auth.TokenManager
	session           SessionConfig
}

func NewUserHandler(
	userService service.UserService,
	enrollmentService service.EnrollmentService,
	tokens *auth.TokenManager,
	session SessionConfig,
) *UserHandler {
	return &UserHandler{
		userService:       userService,
		enrollmentService: enrollmentService,
		tokens:            tokens,
		session:           session,
	}
}

type RegisterResponse struct {
	User      *entity.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type DeleteAccountResponse struct {
	Status   string            `json:"status"`
	Promoted *entity.Promotion `json:"promoted,omitempty"`
}

// RegisterUser creates an account and starts a session for it.
func (h *UserHandler) RegisterUser(c *gin.Context) {
	var req service.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.userService.RegisterUser(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	token, exp, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	h.setSessionCookie(c, token, int(time.Until(exp).Seconds()))

	c.JSON(http.StatusCreated, RegisterResponse{User: user, Token: token, ExpiresAt: exp})
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	profile, err := h.userService.GetProfile(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// DeleteMe removes the account; a held seat goes to the waitlist.
func (h *UserHandler) DeleteMe(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	result, err := h.enrollmentService.DeleteAccount(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.setSessionCookie(c, "", -1)

	c.JSON(http.StatusOK, DeleteAccountResponse{Status: "deleted", Promoted: result.Promoted})
}

func (h *UserHandler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "logged out"})
}

func (h *UserHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	if h.session.CookieName == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.session.CookieName, value, maxAge, "/", "", h.session.Secure, true)
}
