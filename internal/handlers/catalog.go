package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vblendo1/koisando-green-alien/internal/feed"
	"github.com/vblendo1/koisando-green-alien/internal/models"
)

func (h HandlerSet) Feed(c *gin.Context) {
	scope, ok := feed.ParseNewScope(c.Query("new_scope"))
	if !ok {
		h.badRequest(c, "new_scope", "new_scope must be owned or all")
		return
	}
	view, err := h.feed.Home(c.Request.Context(), actorOf(c), scope)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFeed(view))
}

type productListItem struct {
	productResponse
	Owned bool `json:"owned"`
}

func (h HandlerSet) ListProducts(c *gin.Context) {
	filter := models.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("q"),
	}
	if raw := c.Query("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			h.badRequest(c, "featured", "featured must be a boolean")
			return
		}
		filter.FeaturedOnly = featured
	}

	ctx := c.Request.Context()
	products, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	owned, err := h.entitlements.AccessibleSet(ctx, actorOf(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]productListItem, 0, len(products))
	for _, p := range products {
		items = append(items, productListItem{productResponse: toProduct(p), Owned: owned[p.ID]})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type outlineModule struct {
	moduleResponse
	Lessons []lessonResponse `json:"lessons"`
}

type productDetailResponse struct {
	Product            productResponse    `json:"product"`
	Modules            []outlineModule    `json:"modules"`
	Progress           completionResponse `json:"progress"`
	CompletedLessonIDs []string           `json:"completed_lesson_ids"`
}

// GetProduct returns the outline of a product the caller may read, together
// with the caller's progress through it.
func (h HandlerSet) GetProduct(c *gin.Context) {
	ctx := c.Request.Context()
	actor := actorOf(c)

	outline, err := h.catalog.Outline(ctx, actor, c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	progress, err := h.progress.ProductProgress(ctx, actor.UserID, outline.Product.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := productDetailResponse{
		Product:            toProduct(outline.Product),
		Modules:            make([]outlineModule, 0, len(outline.Modules)),
		Progress:           toCompletion(progress.Completion),
		CompletedLessonIDs: progress.CompletedLessonIDs,
	}
	if resp.CompletedLessonIDs == nil {
		resp.CompletedLessonIDs = []string{}
	}
	for _, m := range outline.Modules {
		resp.Modules = append(resp.Modules, outlineModule{moduleResponse: toModule(m.Module), Lessons: toLessons(m.Lessons)})
	}
	c.JSON(http.StatusOK, resp)
}

func (h HandlerSet) ListProductModules(c *gin.Context) {
	ctx := c.Request.Context()
	product, err := h.catalog.GetProductBySlug(ctx, c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	modules, err := h.catalog.ListModules(ctx, actorOf(c), product.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toModules(modules)})
}

func (h HandlerSet) ListModuleLessons(c *gin.Context) {
	lessons, err := h.catalog.ListLessons(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toLessons(lessons)})
}

type lessonDetailResponse struct {
	lessonResponse
	ModuleTitle string `json:"module_title"`
	ProductID   string `json:"product_id"`
	ProductSlug string `json:"product_slug"`
}

func (h HandlerSet) GetLesson(c *gin.Context) {
	detail, err := h.catalog.GetLesson(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := lessonDetailResponse{
		lessonResponse: toLesson(detail.Location.Lesson),
		ModuleTitle:    detail.Location.ModuleTitle,
		ProductID:      detail.Location.ProductID,
		ProductSlug:    detail.Location.ProductSlug,
	}
	resp.EmbedURL = detail.EmbedURL
	c.JSON(http.StatusOK, resp)
}

func (h HandlerSet) MyEntitlements(c *gin.Context) {
	productIDs, err := h.entitlements.ListAccessibleProductIDs(c.Request.Context(), actorOf(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if productIDs == nil {
		productIDs = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"product_ids": productIDs})
}
