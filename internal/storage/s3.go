package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"github.com/rmgsl/mapa-od/internal/survey"
)

var log = logrus.WithField("module", "storage")

// Options configures the S3-compatible endpoint
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Service is a client for S3-compatible storage
type S3Service struct {
	client *minio.Client
}

// NewS3Service connects to the MinIO endpoint in opts
func NewS3Service(opts Options) (*S3Service, error) {
	if opts.Endpoint == "" || opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("missing one or more required settings: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	log.Infof("Using MinIO endpoint: %s", opts.Endpoint)
	return &S3Service{client: client}, nil
}

// EnsureBucket creates bucket when it does not exist
func (s *S3Service) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		log.Infof("Created bucket %s", bucket)
	}
	return nil
}

// Upload stores a survey file under bucket/key
func (s *S3Service) Upload(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	if err := s.EnsureBucket(ctx, bucket); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}
	log.Infof("Uploaded survey to s3://%s/%s", bucket, key)
	return nil
}

func contentType(key string) string {
	format, err := survey.FormatFromPath(key)
	if err != nil {
		return "application/octet-stream"
	}
	if format == survey.FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// ParseURL splits s3://bucket/key
func ParseURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 url %q: %w", raw, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: want s3://bucket/key", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: missing object key", raw)
	}
	return u.Host, key, nil
}

// S3Source loads a CSV or XLSX survey object
type S3Source struct {
	id     string
	svc    *S3Service
	bucket string
	key    string
	schema survey.Schema
}

// NewS3Source reads bucket/key through svc
func NewS3Source(id string, svc *S3Service, bucket, key string) *S3Source {
	return &S3Source{id: id, svc: svc, bucket: bucket, key: key, schema: survey.DefaultSchema()}
}

func (s *S3Source) ID() string       { return s.id }
func (s *S3Source) Location() string { return "s3://" + s.bucket + "/" + s.key }

// Load downloads and maps the object
func (s *S3Source) Load(ctx context.Context) (*survey.Table, error) {
	format, err := survey.FormatFromPath(s.key)
	if err != nil {
		return nil, &survey.LoadError{Source: s.id, Err: err}
	}

	obj, err := s.svc.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &survey.LoadError{Source: s.id, Err: fmt.Errorf("failed to get object: %w", err)}
	}
	defer obj.Close()

	// GetObject is lazy; Stat surfaces a missing key or bucket
	if _, err := obj.Stat(); err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, &survey.LoadError{Source: s.id, Err: fmt.Errorf("object not found: %s", s.Location())}
		}
		return nil, &survey.LoadError{Source: s.id, Err: fmt.Errorf("failed to stat object: %w", err)}
	}

	table, err := survey.Parse(s.id, obj, format, s.schema)
	if err != nil {
		return nil, err
	}

	log.Infof("Loaded %d survey records from %s", table.Len(), s.Location())
	return table, nil
}
