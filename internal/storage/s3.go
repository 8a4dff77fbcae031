package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"clustermap/internal/models"
)

// S3Service stores map styles and dataset snapshots in S3-compatible storage.
type S3Service struct {
	client *minio.Client
}

// NewS3Service connects to the MinIO server at endpoint.
func NewS3Service(endpoint, accessKey, secretKey string, useSSL bool) (*S3Service, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("minio endpoint, access key and secret key are required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	log.Println("Using MinIO endpoint:", endpoint)
	return &S3Service{client: client}, nil
}

// CreateBucket makes bucketName unless it already exists.
func (s *S3Service) CreateBucket(ctx context.Context, bucketName, location string) error {
	exists, err := s.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("make bucket %s: %w", bucketName, err)
	}
	return nil
}

// Exists reports whether the object is present.
func (s *S3Service) Exists(ctx context.Context, bucketName, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucketName, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat %s/%s: %w", bucketName, key, err)
}

// PutJSON stores v as a JSON object, replacing any previous version.
func (s *S3Service) PutJSON(ctx context.Context, bucketName, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.put(ctx, bucketName, key, data, "application/json")
}

// GetObjectBytes reads a whole object.
func (s *S3Service) GetObjectBytes(ctx context.Context, bucketName, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucketName, key, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", bucketName, key, err)
	}
	return data, nil
}

// PutSnapshot stores a compressed item snapshot. A snapshot already stored under
// key is left alone, since keys are derived from the dataset parameters.
func (s *S3Service) PutSnapshot(ctx context.Context, bucketName, key string, items []models.Item) error {
	exists, err := s.Exists(ctx, bucketName, key)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("Snapshot %s already exists in bucket '%s'. Ignoring write operation.", key, bucketName)
		return nil
	}

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, items); err != nil {
		return err
	}
	if err := s.put(ctx, bucketName, key, buf.Bytes(), "application/zstd"); err != nil {
		return err
	}
	log.Printf("Stored snapshot of %d items in bucket '%s' with key '%s'", len(items), bucketName, key)
	return nil
}

// GetSnapshot loads a snapshot stored by PutSnapshot.
func (s *S3Service) GetSnapshot(ctx context.Context, bucketName, key string) ([]models.Item, error) {
	object, err := s.client.GetObject(ctx, bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s/%s: %w", bucketName, key, err)
	}
	defer object.Close()
	return ReadSnapshot(object)
}

func (s *S3Service) put(ctx context.Context, bucketName, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucketName, key, err)
	}
	return nil
}
