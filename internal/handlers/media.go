package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vblendo1/koisando-green-alien/internal/service"
)

// formOverhead is the room left for multipart framing above the file limit.
const formOverhead = 1 << 20

func (h HandlerSet) uploadInput(c *gin.Context) (service.UploadInput, bool) {
	if limit := h.cfg.HTTP.MaxUploadBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.badRequest(c, "file", "file is required")
		return service.UploadInput{}, false
	}
	return service.UploadInput{File: file, Header: header}, true
}

func (h HandlerSet) uploadProductImage(c *gin.Context, kind service.ImageKind) {
	input, ok := h.uploadInput(c)
	if !ok {
		return
	}
	defer input.File.Close()

	product, err := h.media.UploadProductImage(c.Request.Context(), actorOf(c), c.Param("id"), kind, input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProduct(product))
}

func (h HandlerSet) AdminUploadCover(c *gin.Context) {
	h.uploadProductImage(c, service.ImageCover)
}

func (h HandlerSet) AdminUploadProductThumbnail(c *gin.Context) {
	h.uploadProductImage(c, service.ImageThumbnail)
}

func (h HandlerSet) AdminUploadLessonThumbnail(c *gin.Context) {
	input, ok := h.uploadInput(c)
	if !ok {
		return
	}
	defer input.File.Close()

	lesson, err := h.media.UploadLessonThumbnail(c.Request.Context(), actorOf(c), c.Param("id"), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLesson(lesson))
}
