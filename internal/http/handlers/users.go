package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/usermgmt/internal/accounts"
	"github.com/geocoder89/usermgmt/internal/actorctx"
	"github.com/geocoder89/usermgmt/internal/authz"
	"github.com/geocoder89/usermgmt/internal/domain/user"
	"github.com/geocoder89/usermgmt/internal/storage"
	"github.com/gin-gonic/gin"
)

type UsersHandler struct {
	accounts      *accounts.Service
	maxImageBytes int64
}

func NewUsersHandler(svc *accounts.Service, maxImageBytes int64) *UsersHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = storage.DefaultMaxImageBytes
	}
	return &UsersHandler{accounts: svc, maxImageBytes: maxImageBytes}
}

// UpdateUserRequest fields are all optional; only sent fields change.
type UpdateUserRequest struct {
	Name     *string `json:"name" form:"name" binding:"omitempty,min=3,max=100,alphaspace"`
	Email    *string `json:"email" form:"email" binding:"omitempty,email,max=150"`
	Phone    *string `json:"phone" form:"phone" binding:"omitempty,min=10,max=15,digits"`
	Password *string `json:"password" form:"password" binding:"omitempty,min=6,hasdigit"`
	Address  *string `json:"address" form:"address" binding:"omitempty,max=150"`
	State    *string `json:"state" form:"state" binding:"omitempty,min=1,max=50"`
	City     *string `json:"city" form:"city" binding:"omitempty,min=1,max=50"`
	Country  *string `json:"country" form:"country" binding:"omitempty,min=1,max=50"`
	Pincode  *string `json:"pincode" form:"pincode" binding:"omitempty,min=4,max=10,digits"`
	Role     *string `json:"role" form:"role"`
}

func actorIdentity(ctx *gin.Context) (user.Identity, bool) {
	a, ok := actorctx.ActorFrom(ctx.Request.Context())
	if !ok {
		RespondUnAuthorized(ctx, "unauthenticated", "Authentication required.")
		return user.Identity{}, false
	}
	return a.Identity, true
}

func userIDParam(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(ctx, "Invalid user id.", nil)
		return 0, false
	}
	return id, true
}

func (h *UsersHandler) List(ctx *gin.Context) {
	actor, ok := actorIdentity(ctx)
	if !ok {
		return
	}

	filter := user.NewListFilter(
		ctx.Query("search"),
		ctx.Query("filterBy"),
		ctx.Query("value"),
	)

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	users, err := h.accounts.List(cctx, actor, filter)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	if users == nil {
		users = []user.User{}
	}

	RespondRevalidated(ctx, users)
}

func (h *UsersHandler) Get(ctx *gin.Context) {
	actor, ok := actorIdentity(ctx)
	if !ok {
		return
	}
	id, ok := userIDParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, 2*time.Second)
	defer cancel()

	u, err := h.accounts.Get(cctx, actor, id)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	RespondRevalidated(ctx, u)
}

func (h *UsersHandler) Update(ctx *gin.Context) {
	actor, ok := actorIdentity(ctx)
	if !ok {
		return
	}
	id, ok := userIDParam(ctx)
	if !ok {
		return
	}

	// a foreign id is refused before the body is looked at
	if err := authz.Authorize(actor, authz.ActionUpdate, id); err != nil {
		RespondServiceError(ctx, err)
		return
	}

	var req UpdateUserRequest

	fields, ok := bindWith(ctx, &req, bindingFor(ctx))
	if !ok {
		return
	}

	// role is only checked for admins; everyone else has it dropped later
	if req.Role != nil && actor.IsAdmin() && !user.Role(*req.Role).IsValid() {
		fields = append(fields, FieldError{
			Field:   "role",
			Rule:    "oneof",
			Param:   "user admin",
			Message: ruleMessage("oneof", "user admin"),
		})
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

	in := accounts.UpdateInput{
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
	}
	if req.Role != nil {
		role := user.Role(*req.Role)
		in.Role = &role
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	u, err := h.accounts.Update(cctx, actor, id, in)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully.",
		"user":    u,
	})
}

func (h *UsersHandler) Delete(ctx *gin.Context) {
	actor, ok := actorIdentity(ctx)
	if !ok {
		return
	}
	id, ok := userIDParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	if err := h.accounts.Delete(cctx, actor, id); err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "User deleted successfully."})
}
