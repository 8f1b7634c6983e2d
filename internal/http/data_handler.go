package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bay-catalog/internal/service"
)

// DataHandler expone el documento del catalogo y su historial.
type DataHandler struct {
	logger    *zap.Logger
	documents *service.DocumentService
	maxBytes  int64
}

// NewDataHandler crea el handler. maxBytes limita el tamaño del body en POST /api/data.
func NewDataHandler(logger *zap.Logger, documents *service.DocumentService, maxBytes int64) *DataHandler {
	return &DataHandler{
		logger:    logger,
		documents: documents,
		maxBytes:  maxBytes,
	}
}

// GetData maneja GET /api/data.
func (h *DataHandler) GetData(c *gin.Context) {
	doc, err := h.documents.GetCurrent(c.Request.Context())
	if err != nil {
		h.logger.Error("read document failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not read data"})
		return
	}
	// Se devuelven los bytes guardados sin decodificar para no perder precisión numérica.
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}

// UpdateData maneja POST /api/data. Requiere sesión admin.
func (h *DataHandler) UpdateData(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("document too large", zap.Int64("limit", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "document too large"})
			return
		}
		h.logger.Warn("read request body failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
		return
	}

	snap, err := h.documents.Replace(c.Request.Context(), body)
	if err != nil {
		if errors.Is(err, service.ErrInvalidFormat) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid format"})
			return
		}
		h.logger.Error("save document failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not save data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "data saved", "snapshot_id": snap.ID})
}

// History maneja GET /api/history.
func (h *DataHandler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid limit"})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	infos, err := h.documents.History(ctx, limit)
	if err != nil {
		h.logger.Error("list history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not read history"})
		return
	}
	count, err := h.documents.Count(ctx)
	if err != nil {
		h.logger.Error("count history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not read history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": count, "snapshots": infos})
}

// Snapshot maneja GET /api/history/:id.
func (h *DataHandler) Snapshot(c *gin.Context) {
	id, ok := h.snapshotID(c)
	if !ok {
		return
	}
	snap, err := h.documents.Snapshot(c.Request.Context(), id)
	if err != nil {
		h.historyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "snapshot": snap})
}

// Diff maneja GET /api/history/:id/diff.
func (h *DataHandler) Diff(c *gin.Context) {
	id, ok := h.snapshotID(c)
	if !ok {
		return
	}
	patch, err := h.documents.Diff(c.Request.Context(), id)
	if err != nil {
		h.historyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "patch": patch})
}

func (h *DataHandler) snapshotID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid snapshot id"})
		return 0, false
	}
	return id, true
}

func (h *DataHandler) historyError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrSnapshotNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "snapshot not found"})
		return
	}
	h.logger.Error("read snapshot failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not read history"})
}
