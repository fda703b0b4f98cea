package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/qenty/academy/config"
)

// Covers and receipts stay well below this, so they go up in one request
// instead of a resumable session.
const gcsSingleRequestLimit = 8 << 20

type GCSClient struct {
	handle  *storage.BucketHandle
	name    string
	project string
}

func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSClient{handle: client.Bucket(name), name: name, project: strings.TrimSpace(cfg.ProjectID)}, nil
}

// EnsureBucket needs GCS_PROJECT_ID only when the bucket has to be created.
func (g *GCSClient) EnsureBucket(ctx context.Context) error {
	if _, err := g.handle.Attrs(ctx); !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if g.project == "" {
		return errors.New("gcs project id is required to create bucket " + g.name)
	}
	return g.handle.Create(ctx, g.project, nil)
}

func (g *GCSClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.handle.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = cacheControl(key)
	if size >= 0 && size < gcsSingleRequestLimit {
		w.ChunkSize = 0
	}
	if _, err := io.Copy(w, r); err != nil {
		// a cancelled context discards the partial upload
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *GCSClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := g.handle.Object(key).NewReader(ctx)
	switch {
	case errors.Is(err, storage.ErrObjectNotExist):
		return nil, ErrObjectNotFound
	case err != nil:
		return nil, err
	}
	return reader, nil
}

func (g *GCSClient) Delete(ctx context.Context, key string) error {
	if err := g.handle.Object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

func (g *GCSClient) Bucket() string { return g.name }
