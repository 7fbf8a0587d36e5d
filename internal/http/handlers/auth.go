package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/usermgmt/internal/accounts"
	"github.com/geocoder89/usermgmt/internal/domain/user"
	"github.com/geocoder89/usermgmt/internal/storage"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	accounts      *accounts.Service
	maxImageBytes int64
}

func NewAuthHandler(svc *accounts.Service, maxImageBytes int64) *AuthHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = storage.DefaultMaxImageBytes
	}
	return &AuthHandler{accounts: svc, maxImageBytes: maxImageBytes}
}

type RegisterRequest struct {
	Name     string  `json:"name" form:"name" binding:"required,min=3,max=100,alphaspace"`
	Email    string  `json:"email" form:"email" binding:"required,email,max=150"`
	Phone    string  `json:"phone" form:"phone" binding:"required,min=10,max=15,digits"`
	Password string  `json:"password" form:"password" binding:"required,min=6,hasdigit"`
	Address  *string `json:"address" form:"address" binding:"omitempty,max=150"`
	State    string  `json:"state" form:"state" binding:"required,max=50"`
	City     string  `json:"city" form:"city" binding:"required,max=50"`
	Country  string  `json:"country" form:"country" binding:"required,max=50"`
	Pincode  string  `json:"pincode" form:"pincode" binding:"required,min=4,max=10,digits"`
}

type LoginRequest struct {
	LoginID  string `json:"loginId" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func requestContext(ctx *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), d)
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	fields, ok := bindWith(ctx, &req, bindingFor(ctx))
	if !ok {
		return
	}

	img, imgErr, err := readProfileImage(ctx, h.maxImageBytes)
	if err != nil {
		RespondBadRequest(ctx, "Invalid multipart body", gin.H{"reason": err.Error()})
		return
	}
	if imgErr != nil {
		fields = append(fields, *imgErr)
	}

	if len(fields) > 0 {
		RespondValidation(ctx, fields)
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	u, err := h.accounts.Register(cctx, accounts.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Address:  req.Address,
		State:    req.State,
		City:     req.City,
		Country:  req.Country,
		Pincode:  req.Pincode,
		Image:    img,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicate) {
			RespondConflict(ctx, "duplicate", "User with this email or phone already exists.")
			return
		}
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully.",
		"user":    u,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	u, pair, err := h.accounts.Login(cctx, req.LoginID, req.Password)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":      "Login successful.",
		"user":         u,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	var req RefreshRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	pair, err := h.accounts.Refresh(cctx, req.RefreshToken)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// Logout always answers 204, whether or not the token was known.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	var req LogoutRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.RefreshToken != "" {
		cctx, cancel := requestContext(ctx, 3*time.Second)
		defer cancel()

		if err := h.accounts.Logout(cctx, req.RefreshToken); err != nil {
			RespondServiceError(ctx, err)
			return
		}
	}

	ctx.Status(http.StatusNoContent)
}
