package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	"github.com/warden-auth/warden/core"
	"github.com/warden-auth/warden/service"
)

// Handlers contains the HTTP handlers for the account endpoints
type Handlers struct {
	auth     *service.AuthService
	passkeys *service.PasskeyService
	cookies  *CookieWriter
	logger   *slog.Logger
}

// NewHandlers creates new account handlers
func NewHandlers(auth *service.AuthService, passkeys *service.PasskeyService, cookies *CookieWriter, logger *slog.Logger) *Handlers {
	return &Handlers{
		auth:     auth,
		passkeys: passkeys,
		cookies:  cookies,
		logger:   logger,
	}
}

// CreateAccount handles POST /accounts/new
func (h *Handlers) CreateAccount(c *gin.Context) {
	var req service.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.renderError(c, core.RequestNotCompleted("invalid request body").WithCause(err))
		return
	}

	result, err := h.auth.SignUp(c.Request.Context(), req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	if result.RegistrationOptions != nil {
		c.Data(http.StatusCreated, "application/json", result.RegistrationOptions)
		return
	}

	h.cookies.SetTokens(c, result.Token)
	c.JSON(http.StatusCreated, gin.H{
		"message": "account created",
		"token":   result.Token,
	})
}

// AuthenticationStrategy handles POST /accounts/authenticationStrategy
func (h *Handlers) AuthenticationStrategy(c *gin.Context) {
	req, ok := h.bindIdentifier(c)
	if !ok {
		return
	}

	strategy, err := h.auth.ResolveStrategy(c.Request.Context(), req.Identifier)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticationStrategy": strategy})
}

// Authenticate handles POST /accounts/authenticate
func (h *Handlers) Authenticate(c *gin.Context) {
	var req struct {
		Identifier string `json:"identifier" binding:"required"`
		Password   string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.renderError(c, core.RequestNotCompleted("invalid request body").WithCause(err))
		return
	}

	result, err := h.auth.Authenticate(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		h.renderError(c, err)
		return
	}

	if result.AssertionOptions != nil {
		c.Data(http.StatusOK, "application/json", result.AssertionOptions)
		return
	}

	h.cookies.SetTokens(c, result.Token)
	c.JSON(http.StatusOK, gin.H{
		"message": "authenticated",
		"token":   result.Token,
	})
}

// Refresh handles POST /accounts/refresh. The pair comes from the
// token cookies, or from the JSON body for non-browser clients.
func (h *Handlers) Refresh(c *gin.Context) {
	token := ReadTokens(c)
	if token.RefreshToken == "" {
		var req core.SecurityToken
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req
		}
	}

	rotated, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.cookies.SetTokens(c, rotated)
	c.JSON(http.StatusOK, gin.H{
		"message": "tokens rotated",
		"token":   rotated,
	})
}

// Details handles GET /accounts/details
func (h *Handlers) Details(c *gin.Context) {
	account, err := h.auth.Details(c.Request.Context(), authorizationToken(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// StartRegistration handles POST /accounts/passkeys/register
func (h *Handlers) StartRegistration(c *gin.Context) {
	req, ok := h.bindIdentifier(c)
	if !ok {
		return
	}

	options, err := h.passkeys.StartRegistration(c.Request.Context(), req.Identifier)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", options)
}

// ValidateRegistration handles POST /accounts/passkeys/validateRegistrationChallenge
func (h *Handlers) ValidateRegistration(c *gin.Context) {
	req, ok := h.bindCeremonyResponse(c)
	if !ok {
		return
	}

	if err := h.passkeys.ValidateRegistration(c.Request.Context(), req.Identifier, req.Credentials); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "passkey registered"})
}

// ValidateAssertion handles POST /accounts/passkeys/validatePasskeyChallenge
func (h *Handlers) ValidateAssertion(c *gin.Context) {
	req, ok := h.bindCeremonyResponse(c)
	if !ok {
		return
	}

	token, err := h.passkeys.ValidateAssertion(c.Request.Context(), req.Identifier, req.Credentials)
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.cookies.SetTokens(c, token)
	c.JSON(http.StatusOK, gin.H{
		"message": "authenticated",
		"token":   token,
	})
}

// Healthz handles GET /healthz
func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type identifierRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

func (h *Handlers) bindIdentifier(c *gin.Context) (identifierRequest, bool) {
	var req identifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.renderError(c, core.RequestNotCompleted("invalid request body").WithCause(err))
		return req, false
	}
	return req, true
}

type ceremonyResponseRequest struct {
	Identifier  string          `json:"identifier" binding:"required"`
	Credentials json.RawMessage `json:"credentials" binding:"required"`
}

func (h *Handlers) bindCeremonyResponse(c *gin.Context) (ceremonyResponseRequest, bool) {
	var req ceremonyResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.renderError(c, core.RequestNotCompleted("invalid request body").WithCause(err))
		return req, false
	}
	return req, true
}

// authorizationToken extracts the authorization token from the Bearer
// header or the token cookie.
func authorizationToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	token, _ := c.Cookie(CookieAuthorization)
	return token
}

// renderError maps a taxonomy error to its status and body.
// Unclassified errors become 500 and are reported to Sentry.
func (h *Handlers) renderError(c *gin.Context, err error) {
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		h.logger.Error("unclassified error", "path", c.Request.URL.Path, "error", err)
		sentry.CaptureException(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"errorCode": core.CodeRequestNotCompleted,
			"message":   "request could not be completed",
		})
		return
	}

	if coreErr.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.Request.URL.Path, "code", coreErr.Code, "error", err)
	}
	c.JSON(coreErr.Status, gin.H{
		"errorCode": coreErr.Code,
		"message":   coreErr.Message,
	})
}
