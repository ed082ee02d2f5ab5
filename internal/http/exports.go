package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) exportTasks(c *gin.Context) {
	export, err := h.exports.Export(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ExportResponse{
		Key:         export.Key,
		Location:    export.Location,
		Count:       export.Count,
		DownloadURL: export.DownloadURL,
		CreatedAt:   export.CreatedAt.Format(time.RFC3339),
	})
}

func (h *Handler) listExports(c *gin.Context) {
	objects, err := h.exports.ListExports(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, gin.H{"exports": resp})
}
