package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/crashscan/backend/internal/models"
	"github.com/google/uuid"
)

// File statuses.
const (
	StatusUploaded = "uploaded"
	StatusScanned  = "scanned"
	StatusFailed   = "failed"
	StatusReport   = "report"
)

// Store keeps uploaded crash logs and the reports rendered from them.
type Store interface {
	// Save stores r under a new id with the given status.
	Save(name, status string, r io.Reader) (*models.FileInfo, error)
	SaveBytes(name, status string, data []byte) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	GetFilePath(id string) (string, error)
	Open(id string) (io.ReadCloser, error)
	// SetStatus updates a file's status and, when reportID is not empty,
	// links it to its report.
	SetStatus(id, status, reportID string) (*models.FileInfo, error)
}

// LocalStore implements Store using the local filesystem. Metadata is kept
// in memory.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
	}, nil
}

// Save saves a file to the local filesystem.
func (s *LocalStore) Save(name, status string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		UploadedAt: time.Now(),
		Status:     status,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	return info, nil
}

// SaveBytes saves data under a new id.
func (s *LocalStore) SaveBytes(name, status string, data []byte) (*models.FileInfo, error) {
	return s.Save(name, status, bytes.NewReader(data))
}

// Get retrieves file metadata by ID. The returned value is a copy.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}

	cp := *info
	return &cp, nil
}

// List returns the most recent files.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		cp := *info
		list = append(list, &cp)
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].UploadedAt.Equal(list[j].UploadedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("file not found: %s", id)
	}

	path := filepath.Join(s.uploadDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// GetFilePath returns the absolute path to a file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("file not found: %s", id)
	}

	return filepath.Join(s.uploadDir, id), nil
}

// Open opens a stored file for reading.
func (s *LocalStore) Open(id string) (io.ReadCloser, error) {
	path, err := s.GetFilePath(id)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// SetStatus implements Store.
func (s *LocalStore) SetStatus(id, status, reportID string) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}

	info.Status = status
	if reportID != "" {
		info.ReportID = reportID
	}
	cp := *info
	return &cp, nil
}
