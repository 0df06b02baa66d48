// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// FilesHandler handles stored crash log operations
type FilesHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
}

// ScanHandler handles scanning crash logs and serving their reports
type ScanHandler interface {
	HandleScan(c echo.Context) error
	HandleScanFile(c echo.Context) error
	HandleListReports(c echo.Context) error
	HandleGetReport(c echo.Context) error
}

// LookupHandler answers questions about the loaded rule tables and the
// record database
type LookupHandler interface {
	HandleGetRules(c echo.Context) error
	HandleLookupRecord(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}
