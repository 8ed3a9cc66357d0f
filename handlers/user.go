package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"handyhub/middleware"
	userService "handyhub/services/user"
	"handyhub/utils"
)

// UserHandler exposes account signup and login.
type UserHandler struct {
	Service userService.UserService
}

func NewUserHandler(svc userService.UserService) *UserHandler {
	return &UserHandler{Service: svc}
}

// RegisterHandler creates a role-specific account and returns it with a token.
func (h *UserHandler) RegisterHandler(c *gin.Context) {
	var input userService.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	u, token, err := h.Service.Register(input)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "registration failed", err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u, "token": token})
}

// AuthenticateHandler verifies credentials for one role account.
func (h *UserHandler) AuthenticateHandler(c *gin.Context) {
	var input struct {
		Email    string `json:"email"`
		Role     string `json:"role"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	u, token, err := h.Service.Authenticate(input.Email, input.Role, input.Password)
	if err != nil {
		utils.JSONError(c, http.StatusUnauthorized, "authentication failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "token": token})
}

// MeHandler returns the acting account.
func (h *UserHandler) MeHandler(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		utils.JSONError(c, http.StatusUnauthorized, "unauthorized", "no authenticated actor")
		return
	}
	u, err := h.Service.GetUserByID(actor.ID)
	if err != nil {
		utils.JSONError(c, http.StatusNotFound, "account not found", err.Error())
		return
	}
	c.JSON(http.StatusOK, u)
}
