package portal

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cascadebuilt/sitebooks_backend/config"
	"github.com/cascadebuilt/sitebooks_backend/models"
	"github.com/cascadebuilt/sitebooks_backend/sitesync"
	"github.com/cascadebuilt/sitebooks_backend/utils"
)

const signedURLTTL = 15 * time.Minute

type AccessLinkRequest struct {
	ClientCode string `json:"client_code" binding:"required"`
	Hours      int    `json:"hours" binding:"omitempty,min=1,max=168"`
}

type AccessLinkResponse struct {
	URL       string `json:"url"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// AccessLinkHandler issues a time-limited portal link scoped to one client.
// Staff-only; the rate limiter in front of it throttles link minting.
func AccessLinkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req AccessLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		ttl := 24 * time.Hour
		if req.Hours > 0 {
			ttl = time.Duration(req.Hours) * time.Hour
		}

		token, expiresAt, err := IssueAccessToken(strings.TrimSpace(req.ClientCode), ttl)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("PORTAL_BASE_URL")), "/")
		c.JSON(http.StatusOK, AccessLinkResponse{
			URL:       fmt.Sprintf("%s/portal?token=%s", baseURL, token),
			Token:     token,
			ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		})
	}
}

type portalProject struct {
	models.Project
	Documents []portalDocument `json:"documents"`
}

type portalDocument struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// DocumentsHandler redeems a portal token: the client's invoices plus their
// projects with signed read URLs for each attachment.
func DocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientCode, err := ValidateAccessToken(strings.TrimSpace(c.Query("token")))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired link"})
			return
		}

		ctx := c.Request.Context()
		db := config.GetDB()

		resolver, err := sitesync.LoadClientResolver(ctx, db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var projects []models.Project
		if err := db.WithContext(ctx).Where("client_code = ? AND is_bid = ?", clientCode, false).Find(&projects).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		out := make([]portalProject, 0, len(projects))
		for _, p := range projects {
			entry := portalProject{Project: p}

			var attachments []models.ProjectAttachment
			if err := db.WithContext(ctx).Where("project_id = ?", p.ID).Find(&attachments).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			for _, a := range attachments {
				url, err := utils.SignedGetURL(ctx, a.ObjectName, signedURLTTL)
				if err != nil {
					config.LogError(config.GetLogger(), "portal", "DocumentsHandler", "sign url", map[string]interface{}{
						"attachmentId": a.ID,
					}, err)
					continue
				}
				entry.Documents = append(entry.Documents, portalDocument{
					FileName:    a.FileName,
					ContentType: a.ContentType,
					URL:         url,
				})
			}
			out = append(out, entry)
		}

		// Invoices carry the raw accounting counterparty name; match them
		// through the alias table the same way the auto-matcher does.
		var allInvoices []models.Invoice
		if err := db.WithContext(ctx).Find(&allInvoices).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		invoices := make([]models.Invoice, 0)
		for _, inv := range allInvoices {
			if strings.EqualFold(resolver.ResolveCode(inv.ClientName), clientCode) {
				invoices = append(invoices, inv)
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"client_code": clientCode,
			"projects":    out,
			"invoices":    invoices,
		})
	}
}

// UploadAttachmentHandler stores one multipart file for a project and records
// it so the portal can serve it later.
func UploadAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := utils.GetUsernameFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		projectId, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
			return
		}

		ctx := c.Request.Context()
		db := config.GetDB()

		var project models.Project
		if err := db.WithContext(ctx).Where("id = ?", projectId).Take(&project).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		objectName := fmt.Sprintf("projects/%d/%s%s", project.ID, uuid.New().String(), filepath.Ext(fileHeader.Filename))
		if err := utils.UploadFileToGCS(ctx, objectName, file); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		attachment := models.ProjectAttachment{
			ProjectId:   project.ID,
			ObjectName:  objectName,
			FileName:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			SizeBytes:   fileHeader.Size,
			UploadedBy:  username,
		}
		if err := db.WithContext(ctx).Create(&attachment).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, attachment)
	}
}

// DeleteAttachmentHandler removes the blob first, then the row.
func DeleteAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		attachmentId, err := strconv.ParseUint(c.Param("attachmentId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment id"})
			return
		}

		ctx := c.Request.Context()
		db := config.GetDB()

		var attachment models.ProjectAttachment
		if err := db.WithContext(ctx).Where("id = ?", attachmentId).Take(&attachment).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
			return
		}

		if err := utils.DeleteFromGCS(ctx, attachment.ObjectName); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := db.WithContext(ctx).Delete(&attachment).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Status(http.StatusNoContent)
	}
}
