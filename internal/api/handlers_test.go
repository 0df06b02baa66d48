package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crashscan/backend/internal/config"
	"github.com/crashscan/backend/internal/models"
	"github.com/crashscan/backend/internal/records"
	"github.com/crashscan/backend/internal/report"
	"github.com/crashscan/backend/internal/scanner"
	"github.com/crashscan/backend/internal/storage"
	"github.com/crashscan/backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type testServer struct {
	e     *echo.Echo
	store *testutil.MockStorage
}

// newTestServer wires the API against the bundled databases and a mock store.
func newTestServer(t *testing.T, resolverEnabled bool) *testServer {
	t.Helper()
	dir := t.TempDir()

	cfg, err := config.Load(config.Options{
		SettingsFile: filepath.Join(dir, config.DefaultSettingsFile),
		WorkDir:      dir,
	})
	require.NoError(t, err)

	refFile := filepath.Join(dir, "records.txt")
	require.NoError(t, os.WriteFile(refFile, []byte("ModA.esp | 001A2B | Rusty Sword (WEAP)\n"), 0644))

	logger, _ := test.NewNullLogger()
	resolver, err := records.NewResolver(records.ResolverOptions{
		Enabled:        resolverEnabled,
		ReferenceFiles: []string{refFile},
		Log:            logger,
	})
	require.NoError(t, err)

	env, err := scanner.NewEnv(cfg, resolver, "")
	require.NoError(t, err)

	store := testutil.NewMockStorage()
	e := echo.New()
	SetupMiddleware(e, MiddlewareOptions{Log: logger})
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Store:     store,
		Env:       env,
		Assembler: report.NewAssembler(cfg.ReportTexts()),
		Resolver:  resolver,
		Rules:     cfg.RulesInfo(),
		Version:   "test",
		Log:       logger,
	}))

	return &testServer{e: e, store: store}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func multipartLog(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
}

func TestScan_Multipart(t *testing.T) {
	s := newTestServer(t, true)

	body, contentType := multipartLog(t, "crash-2024-01-01-12-00-00.log", testutil.SampleCrashLog)
	req := httptest.NewRequest(http.MethodPost, "/api/scan", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := s.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		LogID    string        `json:"logId"`
		ReportID string        `json:"reportId"`
		Report   models.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Report.MainError, "EXCEPTION_ACCESS_VIOLATION")
	assert.True(t, resp.Report.PluginsLoaded)
	require.NotEmpty(t, resp.Report.RecordSuspects)
	assert.Equal(t, "Rusty Sword (WEAP)", resp.Report.RecordSuspects[0].Description)

	logInfo, err := s.store.Get(resp.LogID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusScanned, logInfo.Status)
	assert.Equal(t, resp.ReportID, logInfo.ReportID)

	reportInfo, err := s.store.Get(resp.ReportID)
	require.NoError(t, err)
	assert.Equal(t, "crash-2024-01-01-12-00-00-AUTOSCAN.md", reportInfo.Name)
	assert.Equal(t, storage.StatusReport, reportInfo.Status)
}

func TestScan_RawBody(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/scan?format=msgpack", strings.NewReader(testutil.SampleCrashLog))
	req.Header.Set(echo.HeaderContentType, "text/plain")
	rec := s.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, echo.MIMEApplicationMsgpack, rec.Header().Get(echo.HeaderContentType))

	reportID := rec.Header().Get(HeaderReportID)
	require.NotEmpty(t, reportID)
	info, err := s.store.Get(reportID)
	require.NoError(t, err)
	assert.Equal(t, "crash-upload-AUTOSCAN.md", info.Name)

	rep, err := report.Decode(rec.Body, report.FormatMsgpack)
	require.NoError(t, err)
	assert.Contains(t, rep.MainError, "EXCEPTION_ACCESS_VIOLATION")
	// lookups are off, so records carry no description
	for _, r := range rep.RecordSuspects {
		assert.Empty(t, r.Description)
	}
}

func TestScan_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		contentTyp string
		failSave   bool
		wantStatus int
		wantCode   string
	}{
		{
			name:       "empty body",
			body:       "",
			contentTyp: "text/plain",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "truncated log",
			body:       "Fallout 4 v1.10.163\nBuffout 4 v1.28.6\n",
			contentTyp: "text/plain",
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "UNPROCESSABLE",
		},
		{
			name:       "storage failure",
			body:       testutil.SampleCrashLog,
			contentTyp: "text/plain",
			failSave:   true,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, false)
			s.store.FailSave = tt.failSave

			req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, tt.contentTyp)
			rec := s.do(req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestScan_TruncatedLogMarkedFailed(t *testing.T) {
	s := newTestServer(t, false)
	info := s.store.AddFile("log-1", "crash-short.log", []byte("Fallout 4 v1.10.163\n"))

	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/files/"+info.ID+"/scan", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	got, err := s.store.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusFailed, got.Status)
}

func TestScanFile(t *testing.T) {
	s := newTestServer(t, false)
	info := s.store.AddFile("log-1", "crash-2024-02-02.log", []byte(testutil.SampleCrashLog))

	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/files/"+info.ID+"/scan", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodPost, "/api/files/missing/scan", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReports(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/scan?name=crash-2024-03-03.log", strings.NewReader(testutil.SampleCrashLog))
	req.Header.Set(echo.HeaderContentType, "text/plain")
	rec := s.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var scanned scanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scanned))

	t.Run("list", func(t *testing.T) {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/reports", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var files []models.FileInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
		require.Len(t, files, 1)
		assert.Equal(t, scanned.ReportID, files[0].ID)
	})

	t.Run("markdown", func(t *testing.T) {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+scanned.ReportID, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/markdown"))
		assert.Contains(t, rec.Body.String(), "crash-2024-03-03.log")
	})

	t.Run("json", func(t *testing.T) {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+scanned.ReportID+"?format=json", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var rep models.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
		assert.Equal(t, "crash-2024-03-03.log", rep.LogName)
	})

	t.Run("msgpack", func(t *testing.T) {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+scanned.ReportID+"?format=msgpack", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var raw map[string]interface{}
		require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &raw))
		assert.Equal(t, "crash-2024-03-03.log", raw["logName"])
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+scanned.ReportID+"?format=xml", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("crash log is not a report", func(t *testing.T) {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+scanned.LogID, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("report value only kept for scans of this process", func(t *testing.T) {
		old := s.store.AddFile("old-report", "crash-old-AUTOSCAN.md", []byte("# old"))
		_, err := s.store.SetStatus(old.ID, storage.StatusReport, "")
		require.NoError(t, err)

		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+old.ID+"?format=json", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+old.ID, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "# old", rec.Body.String())
	})
}

func TestReports_DeleteDropsReportValue(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/scan?name=crash-2024-06-06.log", strings.NewReader(testutil.SampleCrashLog))
	req.Header.Set(echo.HeaderContentType, "text/plain")
	rec := s.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var scanned scanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scanned))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+scanned.ReportID+"?format=json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/files/"+scanned.ReportID, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	// a report stored again under the same id must not pick up the old value
	s.store.AddFile(scanned.ReportID, "crash-2024-06-06-AUTOSCAN.md", []byte("# replaced"))
	_, err := s.store.SetStatus(scanned.ReportID, storage.StatusReport, "")
	require.NoError(t, err)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+scanned.ReportID+"?format=json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportCache(t *testing.T) {
	c := newReportCache(2)
	c.add("a", &models.Report{LogName: "a.log"})
	c.add("b", &models.Report{LogName: "b.log"})

	// touching a keeps it over b
	_, ok := c.get("a")
	require.True(t, ok)
	c.add("c", &models.Report{LogName: "c.log"})

	assert.Equal(t, 2, c.len())
	_, ok = c.get("b")
	assert.False(t, ok, "least recently used report is evicted")
	rep, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, "a.log", rep.LogName)

	c.remove("a")
	_, ok = c.get("a")
	assert.False(t, ok)

	assert.NotNil(t, newReportCache(0), "zero size falls back to the default")

	var none *reportCache
	none.add("x", &models.Report{})
	none.remove("x")
	_, ok = none.get("x")
	assert.False(t, ok)
	assert.Zero(t, none.len())
}

func TestFiles(t *testing.T) {
	s := newTestServer(t, false)

	body, _ := json.Marshal(uploadFileRequest{
		Name: "crash-2024-04-04.log",
		Data: base64.StdEncoding.EncodeToString([]byte(testutil.SampleCrashLog)),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := s.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, storage.StatusUploaded, info.Status)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/files/"+info.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/files/recent", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var recent []models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recent))
	assert.Len(t, recent, 1)

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/files/"+info.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/files/"+info.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadFile_MarkdownNamedLog(t *testing.T) {
	s := newTestServer(t, false)

	body, _ := json.Marshal(uploadFileRequest{
		Name: "crash-2024-05-05.md",
		Data: base64.StdEncoding.EncodeToString([]byte(testutil.SampleCrashLog)),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := s.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, storage.StatusUploaded, info.Status)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var reports []models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	assert.Empty(t, reports, "an uploaded log is never listed as a report")

	rec = s.do(httptest.NewRequest(http.MethodPost, "/api/files/"+info.ID+"/scan", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var scanned scanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scanned))
	got, err := s.store.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusScanned, got.Status)
	assert.Equal(t, scanned.ReportID, got.ReportID)

	saved, err := s.store.Get(scanned.ReportID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusReport, saved.Status)
}

func TestUploadFile_Validation(t *testing.T) {
	tests := []struct {
		name     string
		request  uploadFileRequest
		wantCode string
	}{
		{"empty name", uploadFileRequest{Data: "YQ=="}, "VALIDATION_ERROR"},
		{"empty data", uploadFileRequest{Name: "crash-a.log"}, "VALIDATION_ERROR"},
		{"invalid base64", uploadFileRequest{Name: "crash-a.log", Data: "not-valid-base64!!!"}, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewFilesHandler(testutil.NewMockStorage(), nil)

			e := echo.New()
			body, _ := json.Marshal(tt.request)
			req := httptest.NewRequest(http.MethodPost, "/api/files/upload", bytes.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			c := e.NewContext(req, httptest.NewRecorder())

			err := handler.HandleUploadFile(c)
			apiErr, ok := err.(*APIError)
			if !ok {
				t.Fatalf("expected APIError, got %T", err)
			}
			if apiErr.Status != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, apiErr.Status)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("expected error code %s, got %s", tt.wantCode, apiErr.Code)
			}
		})
	}
}

func TestRules(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/rules", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info models.RulesInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "Fallout4", info.Game)
	assert.Positive(t, info.ErrorRuleCount)
	assert.Positive(t, info.StackRuleCount)
}

func TestLookupRecord(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, false)
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/records?plugin=ModA.esp&id=001A2B", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	s := newTestServer(t, true)
	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"found", "plugin=ModA.esp&id=001A2B", http.StatusOK},
		{"hex prefix and case", "plugin=moda.esp&id=0x001a2b", http.StatusOK},
		{"unknown record", "plugin=ModA.esp&id=FFFFFF", http.StatusNotFound},
		{"missing plugin", "id=001A2B", http.StatusBadRequest},
		{"missing id", "plugin=ModA.esp", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(httptest.NewRequest(http.MethodGet, "/api/records?"+tt.query, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				var resp recordResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, "Rusty Sword (WEAP)", resp.Description)
				assert.Equal(t, "001A2B", resp.FormID)
			}
		})
	}
}

func TestErrorHandler_HidesDetails(t *testing.T) {
	e := echo.New()
	logger, hook := test.NewNullLogger()
	SetupMiddleware(e, MiddlewareOptions{RequestLogging: true, Log: logger})
	e.GET("/boom", func(c echo.Context) error {
		return assert.AnError
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, decodeError(t, rec).Details)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestErrorHandler_RendersAPIError(t *testing.T) {
	e := echo.New()
	logger, _ := test.NewNullLogger()
	SetupMiddleware(e, MiddlewareOptions{Log: logger})
	e.GET("/taken", func(c echo.Context) error {
		return NewConflictError("already scanned")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/taken", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, "CONFLICT", apiErr.Code)
	assert.Equal(t, "already scanned", apiErr.Message)
}
