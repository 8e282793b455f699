package core

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
)

// DefaultAllowedFileTypes are the MIME types accepted for uploads unless configured otherwise.
var DefaultAllowedFileTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/zip",
	"text/plain",
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

type (
	// Upload is a file about to be sent to the FileStore.
	Upload struct {
		Name        string
		Size        int64
		ContentType string
		Folder      string
		Content     io.Reader
	}

	// StoredFile describes a file held by the FileStore.
	StoredFile struct {
		ID           string `json:"id"`
		URL          string `json:"url"`
		Name         string `json:"name"`
		Size         int64  `json:"size"`
		MimeType     string `json:"mime_type"`
		ThumbnailURL string `json:"thumbnail_url,omitempty"`
	}

	// ProgressFunc is called while an upload is in flight with the bytes sent so far.
	ProgressFunc func(sent, total int64)

	// FileStore is any remote file storage.
	// Implementations return *Error values with KindUploadFailed, KindQuotaExceeded,
	// KindPermission or KindNetwork.
	FileStore interface {
		Upload(ctx context.Context, up Upload, progress ProgressFunc) (StoredFile, error)
		Delete(ctx context.Context, id string) error
		Health(ctx context.Context) error
	}

	// UploadPolicy holds the synchronous checks applied before any upload.
	UploadPolicy struct {
		MaxFileSize  int64
		MaxFiles     int
		AllowedTypes []string
	}
)

func NewUploadPolicy(conf StorageConfig) UploadPolicy {
	return UploadPolicy{
		MaxFileSize:  conf.MaxFileSize,
		MaxFiles:     conf.MaxFiles,
		AllowedTypes: conf.AllowedTypes,
	}
}

// ContentTypeOf returns the declared content type of `up`, guessed from its name when missing.
func ContentTypeOf(name, declared string) string {
	if ct, _, err := mime.ParseMediaType(declared); err == nil && ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}

// Check validates `uploads` against the policy. It never touches the network.
func (p UploadPolicy) Check(op string, uploads ...Upload) error {
	if p.MaxFiles > 0 && len(uploads) > p.MaxFiles {
		return NewValidationError(nil, FieldError{Field: "files", Error: fmt.Sprintf("at most %d files are allowed", p.MaxFiles)})
	}
	for _, up := range uploads {
		if CleanString(up.Name) == "" {
			return NewValidationError(nil, FieldError{Field: "files", Error: "file name is required"})
		}
		if up.Size <= 0 {
			return NewValidationError(nil, FieldError{Field: "files", Error: fmt.Sprintf("%s is empty", up.Name)})
		}
		if p.MaxFileSize > 0 && up.Size > p.MaxFileSize {
			return NewValidationError(nil, FieldError{
				Field: "files",
				Error: fmt.Sprintf("%s exceeds the maximum size of %d MB", up.Name, p.MaxFileSize>>20),
			})
		}
		if len(p.AllowedTypes) > 0 && !ContainsString(p.AllowedTypes, ContentTypeOf(up.Name, up.ContentType)) {
			return NewValidationError(nil, FieldError{Field: "files", Error: fmt.Sprintf("%s: file type not allowed", up.Name)})
		}
	}
	return nil
}
