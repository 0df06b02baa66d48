// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/crashscan/backend/internal/models"
	"github.com/crashscan/backend/internal/storage"
)

// ErrMockSave is returned by Save when FailSave is set.
var ErrMockSave = errors.New("mock save failure")

// MockStorage implements storage.Store in memory for testing
type MockStorage struct {
	files    map[string]*models.FileInfo
	fileData map[string][]byte
	mu       sync.RWMutex

	// FailSave makes every save fail with ErrMockSave.
	FailSave bool
}

// NewMockStorage creates a new empty mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.FileInfo),
		fileData: make(map[string][]byte),
	}
}

func (m *MockStorage) Save(name, status string, r io.Reader) (*models.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.SaveBytes(name, status, data)
}

func (m *MockStorage) SaveBytes(name, status string, data []byte) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSave {
		return nil, ErrMockSave
	}

	id := generateTestID()
	file := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     status,
	}

	m.files[id] = file
	m.fileData[id] = data
	cp := *file
	return &cp, nil
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	cp := *file
	return &cp, nil
}

func (m *MockStorage) List(limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []*models.FileInfo
	for _, file := range m.files {
		cp := *file
		files = append(files, &cp)
		if limit > 0 && len(files) >= limit {
			break
		}
	}
	return files, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[id]; !exists {
		return errors.New("file not found")
	}

	delete(m.files, id)
	delete(m.fileData, id)
	return nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	return "/mock/path/" + id, nil
}

func (m *MockStorage) Open(id string) (io.ReadCloser, error) {
	data, err := m.GetFileData(id)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockStorage) SetStatus(id, status, reportID string) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	file.Status = status
	if reportID != "" {
		file.ReportID = reportID
	}
	cp := *file
	return &cp, nil
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// Test Helper Methods

// AddFile adds a file directly to the mock
func (m *MockStorage) AddFile(id string, name string, data []byte) *models.FileInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	file := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     storage.StatusUploaded,
	}
	m.files[id] = file
	m.fileData[id] = data
	return file
}

// GetFileData returns the file content
func (m *MockStorage) GetFileData(id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.fileData[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

// GetFileCount returns the number of stored files
func (m *MockStorage) GetFileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// generateTestID generates a simple test ID
var testIDCounter int
var testIDMutex sync.Mutex

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}
