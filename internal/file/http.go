package file

import (
	"errors"
	"net/http"

	"github.com/aruzhan/gostash/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegisterRoutes mounts file operations under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/files", handler.uploadFile)
	group.GET("/files/usage", handler.usageSummary)
	group.GET("/files/search", handler.searchFiles)
	group.GET("/files/browse/:group", handler.browseFiles)
	group.GET("/files/:fileID", handler.fileDetails)
	group.GET("/files/:fileID/download-url", handler.downloadURL)
	group.PATCH("/files/:fileID/name", handler.renameFile)
	group.PUT("/files/:fileID/shares", handler.shareFile)
	group.DELETE("/files/:fileID/shares/:email", handler.unshareFile)
	group.DELETE("/files/:fileID", handler.deleteFile)
}

type httpHandler struct {
	service *Service
}

func (h *httpHandler) uploadFile(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	rec, err := h.service.Upload(c.Request.Context(), owner, fileHeader)
	if err != nil {
		writeError(c, err, "failed to upload file")
		return
	}

	c.JSON(http.StatusCreated, rec)
}

func (h *httpHandler) browseFiles(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	filters := Filters{
		Types:      ParseBrowseGroup(c.Param("group")),
		SearchText: c.Query("query"),
		Sort:       SortKey(c.DefaultQuery("sort", string(SortCreatedDesc))),
		Owner:      owner,
	}

	list, err := h.service.Engine().QueryFiles(c.Request.Context(), filters)
	if err != nil {
		writeError(c, err, "failed to list files")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents":   list.Documents,
		"total":       list.Total,
		"total_bytes": TotalSize(list),
	})
}

func (h *httpHandler) searchFiles(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	list, err := h.service.Engine().QueryFiles(c.Request.Context(), Filters{
		SearchText: c.Query("query"),
		Owner:      owner,
	})
	if err != nil {
		writeError(c, err, "search failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": list.Documents, "total": list.Total})
}

func (h *httpHandler) fileDetails(c *gin.Context) {
	h.runAction(c, ActionDetails, func(c *gin.Context) (Draft, bool) {
		return Draft{}, true
	}, func(c *gin.Context, out Outcome) {
		c.JSON(http.StatusOK, out.Record)
	})
}

func (h *httpHandler) downloadURL(c *gin.Context) {
	h.runAction(c, ActionDownload, func(c *gin.Context) (Draft, bool) {
		return Draft{}, true
	}, func(c *gin.Context, out Outcome) {
		c.JSON(http.StatusOK, gin.H{"url": out.URL, "name": out.Record.Name})
	})
}

type renameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *httpHandler) renameFile(c *gin.Context) {
	h.runAction(c, ActionRename, func(c *gin.Context) (Draft, bool) {
		var req renameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return Draft{}, false
		}
		return Draft{NewName: req.Name}, true
	}, func(c *gin.Context, out Outcome) {
		c.JSON(http.StatusOK, out.Record)
	})
}

type shareRequest struct {
	Emails []string `json:"emails" binding:"required"`
}

func (h *httpHandler) shareFile(c *gin.Context) {
	h.runAction(c, ActionShare, func(c *gin.Context) (Draft, bool) {
		var req shareRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return Draft{}, false
		}
		return Draft{Emails: req.Emails}, true
	}, func(c *gin.Context, out Outcome) {
		c.JSON(http.StatusOK, out.Record)
	})
}

func (h *httpHandler) unshareFile(c *gin.Context) {
	h.runAction(c, ActionUnshare, func(c *gin.Context) (Draft, bool) {
		return Draft{Emails: []string{c.Param("email")}}, true
	}, func(c *gin.Context, out Outcome) {
		c.JSON(http.StatusOK, out.Record)
	})
}

func (h *httpHandler) deleteFile(c *gin.Context) {
	h.runAction(c, ActionDelete, func(c *gin.Context) (Draft, bool) {
		return Draft{}, true
	}, func(c *gin.Context, out Outcome) {
		resp := gin.H{"status": "deleted"}
		if out.Warning != nil {
			resp["warning"] = out.Warning.Error()
		}
		c.JSON(http.StatusOK, resp)
	})
}

func (h *httpHandler) usageSummary(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	usage, err := h.service.Usage(c.Request.Context(), owner)
	if err != nil {
		writeError(c, err, "failed to aggregate usage")
		return
	}

	c.JSON(http.StatusOK, gin.H{"usage": usage})
}

// runAction routes one HTTP request through the per-file dispatcher.
func (h *httpHandler) runAction(c *gin.Context, kind ActionKind, bind func(*gin.Context) (Draft, bool), respond func(*gin.Context, Outcome)) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	draft, ok := bind(c)
	if !ok {
		return
	}

	d, err := h.service.Dispatcher(c.Request.Context(), owner, fileID)
	if err != nil {
		writeError(c, err, "failed to resolve file")
		return
	}

	if err := d.Select(kind); err != nil {
		writeError(c, err, "failed to select action")
		return
	}

	out, err := d.ConfirmAndExecute(c.Request.Context(), kind, draft)
	if err != nil {
		// a Failed machine keeps its draft; the next Select for the
		// same file may retry or pick a different action
		writeError(c, err, "action failed")
		return
	}

	if kind == ActionDelete {
		h.service.Release(fileID)
	}
	respond(c, out)
}

func requireOwner(c *gin.Context) (OwnerScope, bool) {
	userID, user, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return OwnerScope{}, false
	}
	return OwnerScope{UserID: userID, Email: user.Email}, true
}

func writeError(c *gin.Context, err error, fallback string) {
	var vErr *ValidationError
	var gwErr *GatewayError

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	case errors.Is(err, ErrActionInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "another action is in flight"})
	case errors.Is(err, ErrSelectionChanged):
		c.JSON(http.StatusConflict, gin.H{"error": "action selection changed, re-select and retry"})
	case errors.As(err, &gwErr) && gwErr.Retryable:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
