// handlers_files.go - Stored crash log handlers
package api

import (
	"encoding/base64"
	"net/http"

	"github.com/crashscan/backend/internal/models"
	"github.com/crashscan/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

const recentFilesLimit = 20

// FilesHandlerImpl implements the FilesHandler interface
type FilesHandlerImpl struct {
	store   storage.Store
	reports *reportCache
}

// NewFilesHandler creates a new files handler instance. Deleted reports are
// dropped from reports, which may be nil.
func NewFilesHandler(store storage.Store, reports *reportCache) FilesHandler {
	return &FilesHandlerImpl{store: store, reports: reports}
}

// HandleUploadFile accepts a crash log as base64 JSON and saves it to storage
func (h *FilesHandlerImpl) HandleUploadFile(c echo.Context) error {
	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.SaveBytes(req.Name, storage.StatusUploaded, decoded)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleGetRecentFiles returns the most recently stored crash logs
func (h *FilesHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	files, err := h.store.List(0)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	logFiles := filterByStatus(files, func(status string) bool {
		return status != storage.StatusReport
	})
	if len(logFiles) > recentFilesLimit {
		logFiles = logFiles[:recentFilesLimit]
	}

	return c.JSON(http.StatusOK, logFiles)
}

// HandleGetFile returns metadata for a specific file
func (h *FilesHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes a crash log or report
func (h *FilesHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("file", id)
	}
	h.reports.remove(id)

	return c.NoContent(http.StatusNoContent)
}

type uploadFileRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

func filterByStatus(files []*models.FileInfo, keep func(string) bool) []*models.FileInfo {
	out := make([]*models.FileInfo, 0, len(files))
	for _, f := range files {
		if keep(f.Status) {
			out = append(out, f)
		}
	}
	return out
}
