// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/crashscan/backend/internal/models"
	"github.com/crashscan/backend/internal/records"
	"github.com/crashscan/backend/internal/report"
	"github.com/crashscan/backend/internal/scanner"
	"github.com/crashscan/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store     storage.Store
	Env       *scanner.Env
	Assembler *report.Assembler
	Resolver  *records.Resolver
	Rules     models.RulesInfo
	Version   string
	Log       logrus.FieldLogger
	// ReportCacheSize bounds the report values kept for structured
	// downloads. Zero means DefaultReportCacheSize.
	ReportCacheSize int
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Files  FilesHandler
	Scan   ScanHandler
	Lookup LookupHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	reports := newReportCache(deps.ReportCacheSize)
	return &Handlers{
		Health: NewHealthHandler(deps.Version),
		Files:  NewFilesHandler(deps.Store, reports),
		Scan:   NewScanHandler(deps.Store, deps.Env, deps.Assembler, reports, deps.Log),
		Lookup: NewLookupHandler(deps.Rules, deps.Resolver),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Stored crash logs
	filesGroup := apiGroup.Group("/files")
	filesGroup.POST("/upload", handlers.Files.HandleUploadFile)
	filesGroup.GET("/recent", handlers.Files.HandleGetRecentFiles)
	filesGroup.GET("/:id", handlers.Files.HandleGetFile)
	filesGroup.DELETE("/:id", handlers.Files.HandleDeleteFile)
	filesGroup.POST("/:id/scan", handlers.Scan.HandleScanFile)

	// Scans and reports
	apiGroup.POST("/scan", handlers.Scan.HandleScan)
	apiGroup.GET("/reports", handlers.Scan.HandleListReports)
	apiGroup.GET("/reports/:id", handlers.Scan.HandleGetReport)

	// Rule tables and records
	apiGroup.GET("/rules", handlers.Lookup.HandleGetRules)
	apiGroup.GET("/records", handlers.Lookup.HandleLookupRecord)
}

// MiddlewareOptions configures SetupMiddleware.
type MiddlewareOptions struct {
	// RequestLogging logs every request except health checks.
	RequestLogging bool
	// BodyLimit caps request bodies, e.g. "50M". Empty means no limit.
	BodyLimit string
	// Timeout bounds handler time. Zero disables it.
	Timeout      time.Duration
	EnableCORS   bool
	AllowOrigins []string
	Log          logrus.FieldLogger
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	e.HTTPErrorHandler = ErrorHandler

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	if opts.RequestLogging {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			Skipper: func(c echo.Context) bool {
				return c.Request().URL.Path == "/api/health"
			},
			LogMethod:   true,
			LogURI:      true,
			LogStatus:   true,
			LogLatency:  true,
			LogError:    true,
			HandleError: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				entry := log.WithFields(logrus.Fields{
					"method":  v.Method,
					"uri":     v.URI,
					"status":  v.Status,
					"latency": v.Latency,
				})
				if v.Error != nil {
					entry.WithError(v.Error).Warn("request failed")
					return nil
				}
				entry.Info("request")
				return nil
			},
		}))
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if opts.Timeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout:      opts.Timeout,
			ErrorMessage: "Request timeout - scan took too long",
		}))
	}

	e.Use(middleware.Gzip())

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	if opts.EnableCORS {
		origins := make([]string, 0, len(opts.AllowOrigins))
		for _, o := range opts.AllowOrigins {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			ExposeHeaders: []string{HeaderReportID},
		}))
	}
}
