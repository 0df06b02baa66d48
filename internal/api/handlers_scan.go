// handlers_scan.go - Crash log scan and report handlers
package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/crashscan/backend/internal/models"
	"github.com/crashscan/backend/internal/parser"
	"github.com/crashscan/backend/internal/report"
	"github.com/crashscan/backend/internal/scanner"
	"github.com/crashscan/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// DefaultUploadName names crash logs posted as a raw body without ?name=.
const DefaultUploadName = "crash-upload.log"

// HeaderReportID carries the stored report id on binary responses.
const HeaderReportID = "X-Report-Id"

const mimeMarkdown = "text/markdown; charset=utf-8"

// ScanHandlerImpl implements the ScanHandler interface
type ScanHandlerImpl struct {
	store     storage.Store
	env       *scanner.Env
	assembler *report.Assembler
	log       logrus.FieldLogger
	reports   *reportCache
}

// NewScanHandler creates a new scan handler instance. Report values of
// recent scans are kept in reports for structured downloads.
func NewScanHandler(store storage.Store, env *scanner.Env, assembler *report.Assembler, reports *reportCache, log logrus.FieldLogger) ScanHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ScanHandlerImpl{
		store:     store,
		env:       env,
		assembler: assembler,
		log:       log.WithField("component", "api"),
		reports:   reports,
	}
}

type scanResponse struct {
	LogID    string         `json:"logId"`
	ReportID string         `json:"reportId"`
	Report   *models.Report `json:"report"`
}

// HandleScan stores an uploaded crash log and scans it. The log is either a
// multipart "file" field or the raw request body named by ?name=.
func (h *ScanHandlerImpl) HandleScan(c echo.Context) error {
	name, data, err := readCrashLog(c)
	if err != nil {
		return err
	}

	info, err := h.store.SaveBytes(name, storage.StatusUploaded, data)
	if err != nil {
		return NewInternalError("failed to save crash log", err)
	}

	return h.scanStored(c, info, data)
}

// HandleScanFile scans a crash log that was uploaded earlier
func (h *ScanHandlerImpl) HandleScanFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	if info.Status == storage.StatusReport {
		return NewConflictError("file is a report, not a crash log")
	}

	rc, err := h.store.Open(id)
	if err != nil {
		return NewInternalError("failed to open crash log", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return NewInternalError("failed to read crash log", err)
	}

	return h.scanStored(c, info, data)
}

func (h *ScanHandlerImpl) scanStored(c echo.Context, info *models.FileInfo, data []byte) error {
	ctx := c.Request().Context()
	log := h.log.WithFields(logrus.Fields{"file": info.Name, "id": info.ID})

	rep, err := scanner.ScanReader(ctx, info.Name, bytes.NewReader(data), h.env)
	if err != nil {
		if _, serr := h.store.SetStatus(info.ID, storage.StatusFailed, ""); serr != nil {
			log.WithError(serr).Warn("failed to mark crash log as failed")
		}
		if errors.Is(err, parser.ErrMalformedLog) {
			return NewUnprocessableError("crash log is incomplete", err)
		}
		return NewInternalError("scan failed", err)
	}

	saved, err := h.store.SaveBytes(report.FileName(info.Name), storage.StatusReport, []byte(h.assembler.Render(rep)))
	if err != nil {
		return NewInternalError("failed to save report", err)
	}
	if _, err := h.store.SetStatus(info.ID, storage.StatusScanned, saved.ID); err != nil {
		log.WithError(err).Warn("failed to link report")
	}

	h.reports.add(saved.ID, rep)

	log.WithFields(logrus.Fields{
		"report":   saved.ID,
		"suspects": len(rep.Suspects),
	}).Info("crash log scanned")

	if format := c.QueryParam("format"); format == report.FormatMsgpack {
		c.Response().Header().Set(HeaderReportID, saved.ID)
		return writeExport(c, http.StatusCreated, rep, format)
	}

	return c.JSON(http.StatusCreated, scanResponse{
		LogID:    info.ID,
		ReportID: saved.ID,
		Report:   rep,
	})
}

// HandleListReports returns stored reports, newest first
func (h *ScanHandlerImpl) HandleListReports(c echo.Context) error {
	files, err := h.store.List(0)
	if err != nil {
		return NewInternalError("failed to list reports", err)
	}

	return c.JSON(http.StatusOK, filterByStatus(files, func(status string) bool {
		return status == storage.StatusReport
	}))
}

// HandleGetReport returns a stored report. The default is the markdown
// text; ?format=json and ?format=msgpack return the report value for
// recent reports scanned by this server process.
func (h *ScanHandlerImpl) HandleGetReport(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil || info.Status != storage.StatusReport {
		return NewNotFoundError("report", id)
	}

	format := strings.ToLower(c.QueryParam("format"))
	switch format {
	case "", "md", "markdown":
		rc, err := h.store.Open(id)
		if err != nil {
			return NewInternalError("failed to open report", err)
		}
		defer rc.Close()
		c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+info.Name+`"`)
		return c.Stream(http.StatusOK, mimeMarkdown, rc)
	case report.FormatJSON, report.FormatMsgpack:
		rep, ok := h.reports.get(id)
		if !ok {
			return NewNotFoundError("report data", id)
		}
		return writeExport(c, http.StatusOK, rep, format)
	default:
		return NewBadRequestError("unsupported format: "+format, nil)
	}
}

func writeExport(c echo.Context, status int, rep *models.Report, format string) error {
	var buf bytes.Buffer
	if err := report.Export(&buf, rep, format); err != nil {
		return NewInternalError("failed to encode report", err)
	}
	mime := echo.MIMEApplicationJSONCharsetUTF8
	if format == report.FormatMsgpack {
		mime = echo.MIMEApplicationMsgpack
	}
	return c.Blob(status, mime, buf.Bytes())
}

func readCrashLog(c echo.Context) (string, []byte, error) {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return "", nil, NewValidationError("file")
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, NewBadRequestError("failed to open uploaded file", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", nil, NewBadRequestError("failed to read uploaded file", err)
		}
		if len(data) == 0 {
			return "", nil, NewValidationError("file")
		}
		return fh.Filename, data, nil
	}

	data, err := io.ReadAll(req.Body)
	if err != nil {
		return "", nil, NewBadRequestError("failed to read request body", err)
	}
	if len(data) == 0 {
		return "", nil, NewValidationError("body")
	}
	name := c.QueryParam("name")
	if name == "" {
		name = DefaultUploadName
	}
	return name, data, nil
}
