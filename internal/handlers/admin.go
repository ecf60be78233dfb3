package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vblendo1/koisando-green-alien/internal/service"
)

// bind decodes the JSON body into dst and answers 422 on malformed input.
// Field rules live in the service drafts.
func (h HandlerSet) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.badRequest(c, "body", "invalid JSON body")
		return false
	}
	return true
}

func (h HandlerSet) AdminListProducts(c *gin.Context) {
	products, err := h.admin.ListProducts(c.Request.Context(), actorOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]productResponse, 0, len(products))
	for _, p := range products {
		items = append(items, toProduct(p))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) AdminCreateProduct(c *gin.Context) {
	var draft service.ProductDraft
	if !h.bind(c, &draft) {
		return
	}
	product, err := h.admin.CreateProduct(c.Request.Context(), actorOf(c), draft)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProduct(product))
}

func (h HandlerSet) AdminUpdateProduct(c *gin.Context) {
	var draft service.ProductDraft
	if !h.bind(c, &draft) {
		return
	}
	product, err := h.admin.UpdateProduct(c.Request.Context(), actorOf(c), c.Param("id"), draft)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProduct(product))
}

func (h HandlerSet) AdminDeleteProduct(c *gin.Context) {
	if err := h.admin.DeleteProduct(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminListModules(c *gin.Context) {
	modules, err := h.admin.ListModules(c.Request.Context(), actorOf(c), c.Query("product_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toModules(modules)})
}

func (h HandlerSet) AdminCreateModule(c *gin.Context) {
	var draft service.ModuleDraft
	if !h.bind(c, &draft) {
		return
	}
	module, err := h.admin.CreateModule(c.Request.Context(), actorOf(c), draft)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toModule(module))
}

func (h HandlerSet) AdminUpdateModule(c *gin.Context) {
	var draft service.ModuleDraft
	if !h.bind(c, &draft) {
		return
	}
	module, err := h.admin.UpdateModule(c.Request.Context(), actorOf(c), c.Param("id"), draft)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toModule(module))
}

func (h HandlerSet) AdminDeleteModule(c *gin.Context) {
	if err := h.admin.DeleteModule(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminListLessons(c *gin.Context) {
	lessons, err := h.admin.ListLessons(c.Request.Context(), actorOf(c), c.Query("module_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toLessons(lessons)})
}

func (h HandlerSet) AdminCreateLesson(c *gin.Context) {
	var draft service.LessonDraft
	if !h.bind(c, &draft) {
		return
	}
	lesson, err := h.admin.CreateLesson(c.Request.Context(), actorOf(c), draft)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toLesson(lesson))
}

func (h HandlerSet) AdminUpdateLesson(c *gin.Context) {
	var draft service.LessonDraft
	if !h.bind(c, &draft) {
		return
	}
	lesson, err := h.admin.UpdateLesson(c.Request.Context(), actorOf(c), c.Param("id"), draft)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLesson(lesson))
}

func (h HandlerSet) AdminDeleteLesson(c *gin.Context) {
	if err := h.admin.DeleteLesson(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminListEntitlements(c *gin.Context) {
	views, err := h.entitlements.List(c.Request.Context(), actorOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]entitlementResponse, 0, len(views))
	for _, v := range views {
		items = append(items, entitlementResponse{
			ID:          v.ID,
			UserID:      v.UserID,
			ProductID:   v.ProductID,
			PurchasedAt: v.PurchasedAt,
			ProductName: v.ProductName,
			UserName:    v.UserName,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) AdminGrant(c *gin.Context) {
	var draft service.GrantDraft
	if !h.bind(c, &draft) {
		return
	}
	granted, err := h.entitlements.Grant(c.Request.Context(), actorOf(c), draft)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entitlementResponse{
		ID:          granted.ID,
		UserID:      granted.UserID,
		ProductID:   granted.ProductID,
		PurchasedAt: granted.PurchasedAt,
	})
}

func (h HandlerSet) AdminRevoke(c *gin.Context) {
	if err := h.entitlements.Revoke(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	users, err := h.admin.ListUsers(c.Request.Context(), actorOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, userResponse{
			ID:             u.ID,
			Name:           u.Name,
			ProfilePicture: u.ProfilePicture,
			Roles:          u.Roles,
			CreatedAt:      u.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// AdminAssignRole takes an optional {"role": "..."} body; without one the
// user is made admin.
func (h HandlerSet) AdminAssignRole(c *gin.Context) {
	var req service.RoleDraft
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	if err := h.admin.AssignRole(c.Request.Context(), actorOf(c), c.Param("id"), req); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AdminRevokeRole reads the role from ?role=, defaulting to admin.
func (h HandlerSet) AdminRevokeRole(c *gin.Context) {
	req := service.RoleDraft{Role: c.Query("role")}
	if err := h.admin.RevokeRole(c.Request.Context(), actorOf(c), c.Param("id"), req); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
