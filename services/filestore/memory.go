package filestore

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/schooldesk/core"
)

const chunkSize = 32 << 10

// Memory is a FileStore keeping files in memory, for tests and local development.
type Memory struct {
	mu         sync.RWMutex
	baseURL    string
	files      map[string]memFile
	healthErr  error
	failAfter  int
	failErr    error
	uploadsRun int
}

type memFile struct {
	core.StoredFile
	content []byte
}

var _ core.FileStore = (*Memory)(nil) // interface compliance check

func NewMemory(baseURL string) *Memory {
	return &Memory{baseURL: baseURL, files: make(map[string]memFile), failAfter: -1}
}

// SetHealth makes Health report `err`.
func (m *Memory) SetHealth(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthErr = err
}

// FailUploadsAfter lets `n` more uploads succeed, then fails every upload with `err`.
// A negative `n` turns failures off.
func (m *Memory) FailUploadsAfter(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter, m.failErr, m.uploadsRun = n, err, 0
}

func (m *Memory) Upload(ctx context.Context, up core.Upload, progress core.ProgressFunc) (core.StoredFile, error) {
	const op = "filestore.Upload"

	m.mu.Lock()
	if m.failAfter >= 0 && m.uploadsRun >= m.failAfter {
		err := m.failErr
		m.mu.Unlock()
		return core.StoredFile{}, err
	}
	m.uploadsRun++
	m.mu.Unlock()

	var content []byte
	if up.Content != nil {
		buf := make([]byte, chunkSize)
		for {
			if err := ctx.Err(); err != nil {
				return core.StoredFile{}, core.E(core.KindNetwork, op, err)
			}
			n, err := up.Content.Read(buf)
			content = append(content, buf[:n]...)
			if n > 0 && progress != nil {
				progress(int64(len(content)), up.Size)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return core.StoredFile{}, core.E(core.KindUploadFailed, op, err)
			}
		}
	}

	id := path.Join(up.Folder, uuid.New().String()+"-"+path.Base(up.Name))
	file := core.StoredFile{
		ID:       id,
		URL:      m.baseURL + "/" + id,
		Name:     up.Name,
		Size:     int64(len(content)),
		MimeType: core.ContentTypeOf(up.Name, up.ContentType),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id] = memFile{StoredFile: file, content: content}
	return file, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; !ok {
		return core.Ef(core.KindNotFound, "filestore.Delete", "file %s not found", id)
	}
	delete(m.files, id)
	return nil
}

func (m *Memory) Health(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthErr
}

// Files returns the stored files ordered by id.
func (m *Memory) Files() []core.StoredFile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]core.StoredFile, 0, len(m.files))
	for _, f := range m.files {
		files = append(files, f.StoredFile)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files
}

// Content returns the bytes of a stored file.
func (m *Memory) Content(id string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[id]
	return f.content, ok
}
