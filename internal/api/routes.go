package api

import (
	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/service"
)

// Services is everything the HTTP handlers depend on.
type Services struct {
	Auth          service.IAuthService
	Users         service.IUserService
	Catalog       service.ICatalogService
	Recipes       service.IRecipeService
	Favorites     service.IRecipeToggle
	ShoppingCart  service.IRecipeToggle
	ShoppingList  service.IShoppingListService
	Subscriptions service.ISubscriptionService
}

// RegisterRoutes mounts every API endpoint under /api. createLimit, when not
// nil, runs before recipe creation.
func RegisterRoutes(router *gin.Engine, svc Services, pagination config.PaginationConfig, createLimit gin.HandlerFunc) {
	api := router.Group("/api")

	NewAuthHandler(svc.Auth).RegisterRoutes(api)
	NewUserHandler(svc.Auth, svc.Users, svc.Subscriptions, pagination).RegisterRoutes(api)
	NewCatalogHandler(svc.Catalog).RegisterRoutes(api)
	NewRecipeHandler(svc.Recipes, svc.Favorites, svc.ShoppingCart, svc.ShoppingList, svc.Auth, createLimit, pagination).RegisterRoutes(api)
}
