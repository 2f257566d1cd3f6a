package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/internal/enum"
	"github.com/flowmail/flowmail/internal/models"
	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/internal/utils"
)

type EmailsHandler struct {
	selector interfaces.ProviderSelector
}

func NewEmailsHandler(selector interfaces.ProviderSelector) *EmailsHandler {
	return &EmailsHandler{selector: selector}
}

type sendEmailRequest struct {
	From          string   `json:"from"`
	To            string   `json:"to" binding:"required"`
	Cc            []string `json:"cc"`
	Bcc           []string `json:"bcc"`
	Subject       string   `json:"subject"`
	BodyText      string   `json:"bodyText"`
	BodyHTML      string   `json:"bodyHtml"`
	AttachmentIDs []string `json:"attachmentIds"`
}

type replyEmailRequest struct {
	From          string   `json:"from"`
	BodyText      string   `json:"bodyText"`
	BodyHTML      string   `json:"bodyHtml"`
	ReplyAll      bool     `json:"replyAll"`
	AttachmentIDs []string `json:"attachmentIds"`
}

type markReadRequest struct {
	IsRead *bool `json:"isRead" binding:"required"`
}

type moveFolderRequest struct {
	Folder string `json:"folder" binding:"required"`
}

type bulkRequest struct {
	EmailIDs []string `json:"emailIds" binding:"required"`
	IsRead   *bool    `json:"isRead"`
}

func (h *EmailsHandler) ListMailboxes() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := utils.GetAccountIDFromContext(ctx)

		provider := h.selector.GetProvider(ctx, accountID)
		mailboxes, err := provider.GetMailboxes(ctx, accountID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"mailboxes": mailboxes, "provider": provider.Provider()})
	}
}

func (h *EmailsHandler) ListEmails() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := utils.GetAccountIDFromContext(ctx)

		folder := enum.Folder(c.DefaultQuery("folder", enum.FolderInbox.String()))
		if !folder.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown folder"})
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		provider := h.selector.GetProvider(ctx, accountID)
		response, err := provider.GetEmailsByFolder(ctx, accountID, folder, page, limit)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, response)
	}
}

func (h *EmailsHandler) GetEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := utils.GetAccountIDFromContext(ctx)

		provider := h.selector.GetProvider(ctx, accountID)
		detail, err := provider.GetEmailByID(ctx, accountID, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, detail)
	}
}

func (h *EmailsHandler) Send() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := utils.GetAccountIDFromContext(ctx)

		var request sendEmailRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		provider := h.selector.GetProvider(ctx, accountID)
		result, err := provider.SendEmail(ctx, accountID, interfaces.SendEmailRequest{
			FromAddress:   request.From,
			To:            request.To,
			Cc:            request.Cc,
			Bcc:           request.Bcc,
			Subject:       request.Subject,
			BodyText:      request.BodyText,
			BodyHTML:      request.BodyHTML,
			AttachmentIDs: request.AttachmentIDs,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func (h *EmailsHandler) Reply() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := utils.GetAccountIDFromContext(ctx)

		var request replyEmailRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		provider := h.selector.GetProvider(ctx, accountID)
		result, err := provider.ReplyToEmail(ctx, accountID, c.Param("id"), interfaces.ReplyEmailRequest{
			FromAddress:   request.From,
			BodyText:      request.BodyText,
			BodyHTML:      request.BodyHTML,
			ReplyAll:      request.ReplyAll,
			AttachmentIDs: request.AttachmentIDs,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func (h *EmailsHandler) MarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := utils.GetAccountIDFromContext(ctx)

		var request markReadRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		provider := h.selector.GetProvider(ctx, accountID)
		if err := provider.MarkAsRead(ctx, accountID, c.Param("id"), *request.IsRead); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "isRead": *request.IsRead})
	}
}

func (h *EmailsHandler) ToggleStar() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := utils.GetAccountIDFromContext(ctx)

		provider := h.selector.GetProvider(ctx, accountID)
		starred, err := provider.ToggleStar(ctx, accountID, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "isStarred": starred})
	}
}

func (h *EmailsHandler) MoveToFolder() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := utils.GetAccountIDFromContext(ctx)

		var request moveFolderRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		provider := h.selector.GetProvider(ctx, accountID)
		if err := provider.MoveToFolder(ctx, accountID, c.Param("id"), enum.Folder(request.Folder)); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "folder": request.Folder})
	}
}

func (h *EmailsHandler) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := utils.GetAccountIDFromContext(ctx)

		provider := h.selector.GetProvider(ctx, accountID)
		if err := provider.DeleteEmail(ctx, accountID, c.Param("id")); err != nil {
			respondError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// BulkRead applies the read flag to each id sequentially; one failure never
// stops the rest.
func (h *EmailsHandler) BulkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := utils.GetAccountIDFromContext(ctx)

		var request bulkRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		isRead := true
		if request.IsRead != nil {
			isRead = *request.IsRead
		}

		provider := h.selector.GetProvider(ctx, accountID)
		result := h.bulkApply(c, request.EmailIDs, func(id string) error {
			return provider.MarkAsRead(ctx, accountID, id, isRead)
		})
		c.JSON(http.StatusOK, result)
	}
}

func (h *EmailsHandler) BulkStar() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := utils.GetAccountIDFromContext(ctx)

		var request bulkRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		provider := h.selector.GetProvider(ctx, accountID)
		result := h.bulkApply(c, request.EmailIDs, func(id string) error {
			_, err := provider.ToggleStar(ctx, accountID, id)
			return err
		})
		c.JSON(http.StatusOK, result)
	}
}

func (h *EmailsHandler) BulkDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := utils.GetAccountIDFromContext(ctx)

		var request bulkRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		provider := h.selector.GetProvider(ctx, accountID)
		result := h.bulkApply(c, request.EmailIDs, func(id string) error {
			return provider.DeleteEmail(ctx, accountID, id)
		})
		c.JSON(http.StatusOK, result)
	}
}

func (h *EmailsHandler) bulkApply(c *gin.Context, emailIDs []string, apply func(id string) error) *models.BulkResult {
	span := opentracing.SpanFromContext(c.Request.Context())

	result := &models.BulkResult{Requested: len(emailIDs)}
	for _, id := range emailIDs {
		if err := apply(id); err != nil {
			tracing.TraceErr(span, err)
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	return result
}
