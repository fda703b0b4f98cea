package storage

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/qenty/academy/config"
)

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.StorageConfig{Backend: "none"})
	require.NoError(t, err)
	require.Nil(t, s)

	s, err = New(ctx, config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	require.Equal(t, "memory", s.Bucket())

	_, err = New(ctx, config.StorageConfig{Backend: "ftp"})
	require.ErrorContains(t, err, "unknown storage backend")

	_, err = New(ctx, config.StorageConfig{Backend: "minio"})
	require.ErrorContains(t, err, "minio config incomplete: missing access key, bucket, endpoint, secret key")
}

func TestNewMinioClientReportsMissingSettings(t *testing.T) {
	_, err := NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "minioadmin", Bucket: "qenty"})
	require.EqualError(t, err, "minio config incomplete: missing secret key")

	client, err := NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "minioadmin", SecretKey: "minioadmin", Bucket: "qenty"})
	require.NoError(t, err)
	require.Equal(t, "qenty", client.Bucket())
}

func TestNewGCSClientRequiresBucket(t *testing.T) {
	_, err := NewGCSClient(context.Background(), config.GCSConfig{Bucket: "  "})
	require.EqualError(t, err, "gcs bucket is required")
}

func TestCacheControl(t *testing.T) {
	require.Equal(t, "private, no-store", cacheControl("receipts/2/evt-1.json"))
	require.Equal(t, "public, max-age=86400", cacheControl("courses/covers/abc.png"))
}

func TestPutJSONAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(NewMemoryBackend())

	require.NoError(t, s.PutJSON(ctx, "receipts/1/e.json", map[string]int{"price": 45000}))

	rc, err := s.Get(ctx, "receipts/1/e.json")
	require.NoError(t, err)
	defer rc.Close()
	var out map[string]int
	require.NoError(t, json.NewDecoder(rc).Decode(&out))
	require.Equal(t, 45000, out["price"])

	require.NoError(t, s.Delete(ctx, "receipts/1/e.json"))
	_, err = s.Get(ctx, "receipts/1/e.json")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestMemoryBackendPut(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	require.NoError(t, backend.Put(ctx, "courses/covers/a.png", strings.NewReader("png"), 3, "image/png"))
	require.Equal(t, []string{"courses/covers/a.png"}, backend.Keys())

	rc, err := backend.Get(ctx, "courses/covers/a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "png", string(data))
}

func TestNewS3ClientAppliesConfig(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		require.Equal(t, "sa-east-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	client, err := NewS3Client(context.Background(), config.S3Config{
		Region:       "sa-east-1",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		Bucket:       "qenty",
		BaseEndpoint: "http://127.0.0.1:9000",
	})
	require.NoError(t, err)
	require.Equal(t, "qenty", client.Bucket())
	require.NotNil(t, opts.BaseEndpoint)
	require.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	require.True(t, opts.UsePathStyle)
}

func TestNewS3ClientRequiresBucket(t *testing.T) {
	_, err := NewS3Client(context.Background(), config.S3Config{Region: "us-east-1"})
	require.ErrorContains(t, err, "s3 bucket is required")
}
