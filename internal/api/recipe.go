package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

type RecipeHandler struct {
	recipes     service.IRecipeService
	favorites   service.IRecipeToggle
	cart        service.IRecipeToggle
	shopping    service.IShoppingListService
	auth        middleware.TokenValidator
	createLimit gin.HandlerFunc
	pagination  config.PaginationConfig
}

// NewRecipeHandler wires the recipe endpoints. createLimit may be nil.
func NewRecipeHandler(
	recipes service.IRecipeService,
	favorites, cart service.IRecipeToggle,
	shopping service.IShoppingListService,
	auth middleware.TokenValidator,
	createLimit gin.HandlerFunc,
	pagination config.PaginationConfig,
) *RecipeHandler {
	return &RecipeHandler{
		recipes:     recipes,
		favorites:   favorites,
		cart:        cart,
		shopping:    shopping,
		auth:        auth,
		createLimit: createLimit,
		pagination:  pagination,
	}
}

func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	required := middleware.AuthMiddleware(h.auth)
	optional := middleware.OptionalAuth(h.auth)

	create := []gin.HandlerFunc{required}
	if h.createLimit != nil {
		create = append(create, h.createLimit)
	}
	create = append(create, h.CreateRecipe)

	recipes := router.Group("/recipes")
	{
		recipes.GET("/", optional, h.ListRecipes)
		recipes.POST("/", create...)
		recipes.GET("/download_shopping_cart/", required, h.DownloadShoppingCart)
		recipes.GET("/:id/", optional, h.GetRecipe)
		recipes.PATCH("/:id/", required, h.UpdateRecipe)
		recipes.DELETE("/:id/", required, h.DeleteRecipe)
		recipes.POST("/:id/favorite/", required, h.toggleAdd(h.favorites))
		recipes.DELETE("/:id/favorite/", required, h.toggleRemove(h.favorites))
		recipes.POST("/:id/shopping_cart/", required, h.toggleAdd(h.cart))
		recipes.DELETE("/:id/shopping_cart/", required, h.toggleRemove(h.cart))
	}
}

func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	page, ok := pageRequest(c, h.pagination)
	if !ok {
		return
	}

	filter := service.RecipeFilter{
		Tags:             c.QueryArray("tags"),
		IsFavorited:      queryBool(c, "is_favorited"),
		IsInShoppingCart: queryBool(c, "is_in_shopping_cart"),
	}
	if raw := c.Query("author"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"author": []string{"Select a valid choice."}})
			return
		}
		filter.AuthorID = uint(id)
	}

	views, total, err := h.recipes.List(c.Request.Context(), middleware.UserID(c), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	writePage(c, page, total, mapSlice(views, toRecipeResponse))
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	view, err := h.recipes.Get(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRecipeResponse(*view))
}

func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	in, ok := recipeInput(c)
	if !ok {
		return
	}
	view, err := h.recipes.Create(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRecipeResponse(*view))
}

func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	in, ok := recipeInput(c)
	if !ok {
		return
	}
	view, err := h.recipes.Update(c.Request.Context(), id, middleware.UserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRecipeResponse(*view))
}

func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.recipes.Delete(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RecipeHandler) toggleAdd(toggle service.IRecipeToggle) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		recipe, err := toggle.Add(c.Request.Context(), middleware.UserID(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toRecipeSummary(*recipe))
	}
}

func (h *RecipeHandler) toggleRemove(toggle service.IRecipeToggle) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := toggle.Remove(c.Request.Context(), middleware.UserID(c), id); err != nil {
			respondRemoveError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *RecipeHandler) DownloadShoppingCart(c *gin.Context) {
	text, err := h.shopping.Build(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=shopping_cart.txt")
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// recipeInput binds a RecipeRequest and decodes its image.
func recipeInput(c *gin.Context) (service.RecipeInput, bool) {
	var req types.RecipeRequest
	if !bindJSON(c, &req) {
		return service.RecipeInput{}, false
	}

	in := service.RecipeInput{
		Name:        req.Name,
		Text:        req.Text,
		CookingTime: req.CookingTime,
		Tags:        req.Tags,
		Ingredients: make([]service.IngredientLine, len(req.Ingredients)),
	}
	for i, line := range req.Ingredients {
		in.Ingredients[i] = service.IngredientLine{IngredientID: line.ID, Amount: line.Amount}
	}
	if req.Image != nil {
		img, err := service.DecodeImage(*req.Image)
		if err != nil {
			respondError(c, err)
			return service.RecipeInput{}, false
		}
		in.Image = img
	}
	return in, true
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return uint(id), true
}

func queryBool(c *gin.Context, key string) bool {
	switch c.Query(key) {
	case "1", "true", "True":
		return true
	}
	return false
}
