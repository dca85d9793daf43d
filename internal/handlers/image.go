package handlers

import (
	"log"
	"net/http"

	"cohortboard/internal/services"

	"github.com/gin-gonic/gin"
)

// ImageHandler stores uploads through the configured ImageStore.
type ImageHandler struct {
	store services.ImageStore
}

func NewImageHandler(store services.ImageStore) *ImageHandler {
	return &ImageHandler{store: store}
}

// Upload POST /api/upload, multipart field "image".
func (h *ImageHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxImageSize+1<<20)

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   services.KindInvalidFormat,
			"message": "업로드할 이미지를 선택해주세요.",
		})
		return
	}
	defer file.Close()

	if err := services.CheckImage(header.Header.Get("Content-Type"), header.Size); err != nil {
		respondError(c, err)
		return
	}

	url, err := h.store.Put(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		log.Printf("Image upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   services.KindStoreError,
			"message": "이미지 업로드에 실패했습니다.",
		})
		return
	}

	respondOK(c, gin.H{"url": url})
}
