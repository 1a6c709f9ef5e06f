package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"hospital-followup-server/internal/config"
	"hospital-followup-server/internal/middleware"
	"hospital-followup-server/internal/models"
	"hospital-followup-server/internal/store"
	"hospital-followup-server/internal/utils"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Accounts store.AccountStore
	Tokens   *utils.TokenIssuer
	Cfg      *config.Config
	Now      func() time.Time
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts store.AccountStore, tokens *utils.TokenIssuer, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Tokens: tokens, Cfg: cfg, Now: time.Now}
}

// SignupRequest represents the request body for manager signup.
type SignupRequest struct {
	HospitalName    string `json:"hospitalName" binding:"required"`
	HospitalAddress string `json:"hospitalAddress" binding:"required"`
	FirstName       string `json:"firstName" binding:"required"`
	LastName        string `json:"lastName" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
}

// signupMessage reports the first failed rule the way the signup form expects.
func signupMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "All fields are required"
	}
	for _, e := range verrs {
		if e.Tag() == "required" {
			return "All fields are required"
		}
	}
	switch verrs[0].Tag() {
	case "email":
		return "Invalid email format"
	case "min":
		return "Password must be at least 8 characters long"
	}
	return "All fields are required"
}

// Signup handles manager registration.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, signupMessage(err))
		return
	}

	ctx := c.Request.Context()
	exists, err := h.Accounts.EmailExists(ctx, req.Email)
	if err != nil {
		utils.ServerError(c, "Server error during signup", err)
		return
	}
	if exists {
		utils.Conflict(c, "Email already registered")
		return
	}

	account := models.Account{
		HospitalName:    req.HospitalName,
		HospitalAddress: req.HospitalAddress,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Role:            models.RoleManager,
		IsActive:        true,
	}
	if err := account.SetPassword(req.Password); err != nil {
		utils.ServerError(c, "Server error during signup", err)
		return
	}

	if err := h.Accounts.CreateAccount(ctx, &account); err != nil {
		// Two signups can race past the pre-check; the unique index decides.
		if errors.Is(err, store.ErrDuplicate) {
			utils.Conflict(c, "Email already registered")
			return
		}
		utils.ServerError(c, "Server error during signup", err)
		return
	}

	if err := h.audit(c, account.ID, models.AuditSignup, false); err != nil {
		utils.ServerError(c, "Server error during signup", err)
		return
	}

	utils.Created(c, gin.H{
		"message": "Account created successfully",
		"userId":  account.ID,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	Message string                `json:"message"`
	Token   string                `json:"token"`
	User    models.AccountSummary `json:"user"`
}

// Login handles manager login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Email and password are required")
		return
	}

	ctx := c.Request.Context()
	account, err := h.Accounts.FindAccountByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Unauthorized(c, "Invalid email or password")
			return
		}
		utils.ServerError(c, "Server error during login", err)
		return
	}

	if !account.IsActive {
		utils.Forbidden(c, "Account is deactivated. Contact support.")
		return
	}

	if !account.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	token, _, err := h.Tokens.Issue(account)
	if err != nil {
		utils.ServerError(c, "Server error during login", err)
		return
	}

	now := h.Now().UTC()
	if err := h.Accounts.TouchLastLogin(ctx, account.ID, now); err != nil {
		utils.ServerError(c, "Server error during login", err)
		return
	}

	session := models.Session{
		AccountID: account.ID,
		Token:     token,
		ExpiresAt: now.Add(h.Cfg.SessionTTL),
	}
	if err := h.Accounts.CreateSession(ctx, &session); err != nil {
		utils.ServerError(c, "Server error during login", err)
		return
	}

	if err := h.audit(c, account.ID, models.AuditLogin, true); err != nil {
		utils.ServerError(c, "Server error during login", err)
		return
	}

	utils.Success(c, LoginResponse{
		Message: "Login successful",
		Token:   token,
		User:    account.Summary(),
	})
}

// Logout revokes the caller's session. It succeeds even if no session matches.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := middleware.GetTokenFromContext(c)
	if ok {
		ctx := c.Request.Context()
		if err := h.Accounts.DeleteSession(ctx, token); err != nil {
			utils.ServerError(c, "Server error during logout", err)
			return
		}
		if userID, ok := middleware.GetUserIDFromContext(c); ok {
			if err := h.audit(c, userID, models.AuditLogout, false); err != nil {
				utils.ServerError(c, "Server error during logout", err)
				return
			}
		}
	}

	utils.Message(c, "Logout successful")
}

// GetProfile retrieves the profile of the currently authenticated manager.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	account, err := h.Accounts.FindAccountByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.NotFound(c, "User not found")
			return
		}
		utils.ServerError(c, "Server error", err)
		return
	}

	utils.Success(c, gin.H{"user": account.Sanitize()})
}

func (h *AuthHandler) audit(c *gin.Context, accountID uint, action models.AuditAction, withUserAgent bool) error {
	entry := models.AuditLog{
		AccountID: accountID,
		Action:    action,
		IPAddress: c.ClientIP(),
	}
	if ua := c.Request.UserAgent(); withUserAgent && ua != "" {
		entry.UserAgent = &ua
	}
	return h.Accounts.RecordAudit(c.Request.Context(), &entry)
}
