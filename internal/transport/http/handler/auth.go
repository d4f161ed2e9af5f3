package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docuchat/internal/app"
	"docuchat/internal/transport/http/middleware"
	"docuchat/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token    string `json:"token"`
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidParam, "invalid request body")
		return
	}

	result, err := h.authService.Register(app.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUsernameExists), errors.Is(err, app.ErrEmailExists):
			response.Error(c, http.StatusConflict, response.CodeInvalidParam, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidParam, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternal, "register failed")
		}
		return
	}

	response.OK(c, authResponse{
		Token:    result.Token,
		UserID:   result.User.ID,
		Username: result.User.Username,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidParam, "invalid request body")
		return
	}

	result, err := h.authService.Login(app.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, app.ErrInvalidCredential) || errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid username or password")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "login failed")
		return
	}

	response.OK(c, authResponse{
		Token:    result.Token,
		UserID:   result.User.ID,
		Username: result.User.Username,
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil || user == nil {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "user not found")
		return
	}

	response.OK(c, gin.H{
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}
