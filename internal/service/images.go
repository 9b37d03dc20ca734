package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/metrics"
)

// MaxImageSize bounds a decoded recipe image.
const MaxImageSize = 5 << 20

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Image is a decoded upload.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

// DecodeImage parses a base64 data URI such as "data:image/png;base64,iVBO...".
// The declared type must agree with the sniffed content.
func DecodeImage(uri string) (*Image, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, invalid("image", "Upload a valid image: expected a base64 data URI.")
	}
	declared := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, invalid("image", "Upload a valid image: malformed base64 content.")
	}
	if len(data) == 0 {
		return nil, invalid("image", "The submitted file is empty.")
	}
	if len(data) > MaxImageSize {
		return nil, invalid("image", "Image exceeds %d bytes.", MaxImageSize)
	}

	sniffed := http.DetectContentType(data)
	ext, known := imageExtensions[sniffed]
	if !known || sniffed != declared {
		return nil, invalid("image", "Upload a valid image. The file is not a supported image type.")
	}

	return &Image{Data: data, ContentType: sniffed, Ext: ext}, nil
}

// ImageStore persists recipe images and returns their public URL.
type ImageStore interface {
	Save(ctx context.Context, img *Image) (string, error)
	// Delete removes an image previously returned by Save. Unknown URLs are ignored.
	Delete(ctx context.Context, url string) error
}

func newImageKey(img *Image) string {
	return path.Join("recipes", uuid.NewString()+"."+img.Ext)
}

// S3API is the subset of the S3 client used by S3ImageStore.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3ImageStore writes images to a bucket. Uploads go through a circuit
// breaker so an unavailable bucket fails fast instead of stalling requests.
type S3ImageStore struct {
	client  S3API
	cfg     config.StorageConfig
	breaker *gobreaker.CircuitBreaker[*s3.PutObjectOutput]
}

func NewS3ImageStore(client S3API, cfg config.StorageConfig) *S3ImageStore {
	settings := gobreaker.Settings{
		Name:        "s3-images",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
	return &S3ImageStore{
		client:  client,
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[*s3.PutObjectOutput](settings),
	}
}

func (s *S3ImageStore) Save(ctx context.Context, img *Image) (string, error) {
	start := time.Now()
	key := newImageKey(img)

	_, err := s.breaker.Execute(func() (*s3.PutObjectOutput, error) {
		return s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.cfg.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(img.Data),
			ContentType: aws.String(img.ContentType),
		})
	})
	metrics.ImageUploadDuration.WithLabelValues("s3", metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("upload image to s3: %w", err)
	}

	return s.cfg.PublicURL(key), nil
}

func (s *S3ImageStore) Delete(ctx context.Context, url string) error {
	prefix := s.cfg.PublicURL("")
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(strings.TrimPrefix(url, prefix)),
	})
	if err != nil {
		return fmt.Errorf("delete image from s3: %w", err)
	}
	return nil
}

// LocalImageStore writes images under a directory served at baseURL.
type LocalImageStore struct {
	dir     string
	baseURL string
}

func NewLocalImageStore(dir, baseURL string) (*LocalImageStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "recipes"), 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalImageStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *LocalImageStore) Save(ctx context.Context, img *Image) (string, error) {
	start := time.Now()
	key := newImageKey(img)
	err := os.WriteFile(filepath.Join(s.dir, filepath.FromSlash(key)), img.Data, 0o644)
	metrics.ImageUploadDuration.WithLabelValues("local", metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

func (s *LocalImageStore) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || strings.Contains(key, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
