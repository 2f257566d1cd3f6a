package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowmail/flowmail/interfaces"
)

type AttachmentsHandler struct {
	attachments interfaces.AttachmentService
}

func NewAttachmentsHandler(attachments interfaces.AttachmentService) *AttachmentsHandler {
	return &AttachmentsHandler{attachments: attachments}
}

// Upload accepts a multipart form with a single "file" field and returns the
// attachment reference to use when sending.
func (h *AttachmentsHandler) Upload() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}

		ref, err := h.attachments.Upload(ctx, content, fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, ref)
	}
}

func (h *AttachmentsHandler) Download() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		content, record, err := h.attachments.GetContent(ctx, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.Header("Content-Disposition", `attachment; filename="`+record.OriginalFilename+`"`)
		c.Data(http.StatusOK, record.ContentType, content)
	}
}

func (h *AttachmentsHandler) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if err := h.attachments.Delete(ctx, c.Param("id")); err != nil {
			respondError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
