package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

type UserHandler struct {
	auth          service.IAuthService
	users         service.IUserService
	subscriptions service.ISubscriptionService
	pagination    config.PaginationConfig
}

func NewUserHandler(auth service.IAuthService, users service.IUserService, subscriptions service.ISubscriptionService, pagination config.PaginationConfig) *UserHandler {
	return &UserHandler{auth: auth, users: users, subscriptions: subscriptions, pagination: pagination}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	required := middleware.AuthMiddleware(h.auth)
	optional := middleware.OptionalAuth(h.auth)

	users := router.Group("/users")
	{
		users.POST("/", h.Register)
		users.GET("/", optional, h.ListUsers)
		users.GET("/me/", required, h.Me)
		users.POST("/set_password/", required, h.SetPassword)
		users.GET("/subscriptions/", required, h.Subscriptions)
		users.GET("/:id/", optional, h.GetUser)
		users.POST("/:id/subscribe/", required, h.Subscribe)
		users.DELETE("/:id/subscribe/", required, h.Unsubscribe)
	}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req types.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	// registration responds without is_subscribed
	c.JSON(http.StatusCreated, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"username":   user.Username,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
	})
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	page, ok := pageRequest(c, h.pagination)
	if !ok {
		return
	}
	views, total, err := h.users.List(c.Request.Context(), middleware.UserID(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	writePage(c, page, total, mapSlice(views, func(v service.UserView) types.UserResponse {
		return toUserResponse(v.User, v.IsSubscribed)
	}))
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.writeUser(c, id)
}

func (h *UserHandler) Me(c *gin.Context) {
	h.writeUser(c, middleware.UserID(c))
}

func (h *UserHandler) writeUser(c *gin.Context, id uint) {
	view, err := h.users.Get(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(view.User, view.IsSubscribed))
}

func (h *UserHandler) SetPassword(c *gin.Context) {
	var req types.SetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.SetPassword(c.Request.Context(), middleware.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) Subscriptions(c *gin.Context) {
	limit, ok := recipesLimit(c)
	if !ok {
		return
	}
	page, ok := pageRequest(c, h.pagination)
	if !ok {
		return
	}
	views, total, err := h.subscriptions.List(c.Request.Context(), middleware.UserID(c), limit, page)
	if err != nil {
		respondError(c, err)
		return
	}
	writePage(c, page, total, mapSlice(views, toAuthorResponse))
}

func (h *UserHandler) Subscribe(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, ok := recipesLimit(c)
	if !ok {
		return
	}
	view, err := h.subscriptions.Subscribe(c.Request.Context(), middleware.UserID(c), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAuthorResponse(*view))
}

func (h *UserHandler) Unsubscribe(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := h.subscriptions.Unsubscribe(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		// an unknown author is a 404, a missing subscription a 400
		var se *service.Error
		if errors.As(err, &se) && errors.Is(se.Kind, service.ErrNotFound) {
			respondError(c, err)
			return
		}
		respondRemoveError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// recipesLimit parses ?recipes_limit=. Absent means no limit.
func recipesLimit(c *gin.Context) (int, bool) {
	raw := c.Query("recipes_limit")
	if raw == "" {
		return service.NoRecipesLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"recipes_limit": []string{"A valid non-negative integer is required."}})
		return 0, false
	}
	return n, true
}
