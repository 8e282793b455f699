// Package filestore holds the FileStore implementations: Backblaze B2 and in-memory.
package filestore

import (
	"context"
	"errors"
	"io"
	"net"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/kurin/blazer/b2"

	"github.com/trezcool/schooldesk/core"
)

// B2 stores files in a Backblaze B2 bucket. File ids are the object keys.
type B2 struct {
	client *b2.Client
	bucket *b2.Bucket
}

var _ core.FileStore = (*B2)(nil) // interface compliance check

func NewB2(ctx context.Context, conf core.StorageConfig) (*B2, error) {
	const op = "filestore.NewB2"

	client, err := b2.NewClient(ctx, conf.B2AccountID, conf.B2AppKey)
	if err != nil {
		return nil, classify(op, err)
	}
	bucket, err := client.Bucket(ctx, conf.B2Bucket)
	if err != nil {
		return nil, classify(op, err)
	}
	return &B2{client: client, bucket: bucket}, nil
}

func (s *B2) Upload(ctx context.Context, up core.Upload, progress core.ProgressFunc) (core.StoredFile, error) {
	const op = "filestore.Upload"

	key := path.Join(up.Folder, uuid.New().String()+"-"+path.Base(up.Name))
	mimeType := core.ContentTypeOf(up.Name, up.ContentType)

	obj := s.bucket.Object(key)
	w := obj.NewWriter(ctx).WithAttrs(&b2.Attrs{ContentType: mimeType})
	r := &progressReader{r: up.Content, total: up.Size, progress: progress}
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return core.StoredFile{}, classify(op, err)
	}
	if err = w.Close(); err != nil {
		return core.StoredFile{}, classify(op, err)
	}

	return core.StoredFile{
		ID:       key,
		URL:      obj.URL(),
		Name:     up.Name,
		Size:     n,
		MimeType: mimeType,
	}, nil
}

func (s *B2) Delete(ctx context.Context, id string) error {
	if err := s.bucket.Object(id).Delete(ctx); err != nil {
		return classify("filestore.Delete", err)
	}
	return nil
}

// Health checks that the account credentials still work.
func (s *B2) Health(ctx context.Context) error {
	if _, err := s.client.ListBuckets(ctx); err != nil {
		return classify("filestore.Health", err)
	}
	return nil
}

// classify gives B2 failures their kind. B2 reports caps and auth problems through its error codes only.
func classify(op string, err error) error {
	var netErr net.Error
	msg := strings.ToLower(err.Error())
	switch {
	case b2.IsNotExist(err):
		return core.E(core.KindNotFound, op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.As(err, &netErr):
		return core.E(core.KindNetwork, op, err)
	case strings.Contains(msg, "cap_exceeded"), strings.Contains(msg, "too_many_requests"):
		return core.E(core.KindQuotaExceeded, op, err)
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "bad_auth_token"),
		strings.Contains(msg, "expired_auth_token"), strings.Contains(msg, "access_denied"):
		return core.E(core.KindPermission, op, err)
	default:
		return core.E(core.KindUploadFailed, op, err)
	}
}

type progressReader struct {
	r        io.Reader
	sent     int64
	total    int64
	progress core.ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.sent += int64(n)
		if pr.progress != nil {
			pr.progress(pr.sent, pr.total)
		}
	}
	return n, err
}
