package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/IPGenerator/internal/accounts"
	internalhttp "github.com/router-for-me/IPGenerator/internal/http"
)

// UserHandler manages user accounts. Every mutation answers with the
// re-fetched user list.
type UserHandler struct {
	accounts *accounts.Service
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(accountsSvc *accounts.Service) *UserHandler {
	return &UserHandler{accounts: accountsSvc}
}

// createUserRequest defines the request body for user creation.
type createUserRequest struct {
	Username   string `json:"username"`
	AccessKey  string `json:"access_key"`
	Role       string `json:"role"`
	DailyLimit *int   `json:"daily_limit"`
}

// updateUserRequest defines the request body for in-place edits.
type updateUserRequest struct {
	Username   *string `json:"username"`
	AccessKey  *string `json:"access_key"`
	Role       *string `json:"role"`
	DailyLimit *int    `json:"daily_limit"`
}

// dailyLimitRequest defines the request body for quota changes.
type dailyLimitRequest struct {
	DailyLimit *int `json:"daily_limit"`
}

// List returns users newest first.
func (h *UserHandler) List(c *gin.Context) {
	h.respondList(c, http.StatusOK)
}

// Create adds a user.
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if _, errCreate := h.accounts.Create(c.Request.Context(), accounts.CreateInput{
		Username:   body.Username,
		AccessKey:  body.AccessKey,
		Role:       body.Role,
		DailyLimit: body.DailyLimit,
	}); errCreate != nil {
		internalhttp.WriteError(c, "create_user", errCreate, "create user failed")
		return
	}
	h.respondList(c, http.StatusCreated)
}

// Update edits username, access key, role or daily limit.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if _, errUpdate := h.accounts.Update(c.Request.Context(), id, accounts.UpdateInput{
		Username:   body.Username,
		AccessKey:  body.AccessKey,
		Role:       body.Role,
		DailyLimit: body.DailyLimit,
	}); errUpdate != nil {
		internalhttp.WriteError(c, "update_user", errUpdate, "update user failed")
		return
	}
	h.respondList(c, http.StatusOK)
}

// SetDailyLimit changes a user's quota.
func (h *UserHandler) SetDailyLimit(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body dailyLimitRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.DailyLimit == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing daily_limit"})
		return
	}
	if _, errUpdate := h.accounts.SetDailyLimit(c.Request.Context(), id, *body.DailyLimit); errUpdate != nil {
		internalhttp.WriteError(c, "set_daily_limit", errUpdate, "update daily limit failed")
		return
	}
	h.respondList(c, http.StatusOK)
}

// ToggleActive enables or disables a user.
func (h *UserHandler) ToggleActive(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if _, errToggle := h.accounts.ToggleActive(c.Request.Context(), id); errToggle != nil {
		internalhttp.WriteError(c, "toggle_user", errToggle, "toggle user failed")
		return
	}
	h.respondList(c, http.StatusOK)
}

// RegenerateKey rotates a user's access key.
func (h *UserHandler) RegenerateKey(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if _, errRotate := h.accounts.RegenerateKey(c.Request.Context(), id); errRotate != nil {
		internalhttp.WriteError(c, "regenerate_key", errRotate, "regenerate key failed")
		return
	}
	h.respondList(c, http.StatusOK)
}

// Delete removes a user. Admin accounts are refused.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if errDelete := h.accounts.Delete(c.Request.Context(), id); errDelete != nil {
		internalhttp.WriteError(c, "delete_user", errDelete, "delete user failed")
		return
	}
	h.respondList(c, http.StatusOK)
}

func (h *UserHandler) respondList(c *gin.Context, status int) {
	rows, errList := h.accounts.List(c.Request.Context(), strings.TrimSpace(c.Query("username")))
	if errList != nil {
		internalhttp.WriteError(c, "list_users", errList, "list users failed")
		return
	}
	c.JSON(status, gin.H{"users": rows})
}
