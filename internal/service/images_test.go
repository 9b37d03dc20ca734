package service_test

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

func TestDecodeImage(t *testing.T) {
	img, err := service.DecodeImage(testhelpers.PNG)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, "png", img.Ext)
	assert.NotEmpty(t, img.Data)

	text := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("just some text"))
	bad := []string{
		"",
		"iVBORw0KGgo=",
		"data:image/png,iVBORw0KGgo=",
		"data:image/png;base64,!!!",
		"data:image/png;base64,",
		text,
		strings.Replace(testhelpers.PNG, "image/png", "image/jpeg", 1),
	}
	for _, uri := range bad {
		_, err := service.DecodeImage(uri)
		assertKind(t, err, service.ErrValidation, "image")
	}
}

func TestLocalImageStore(t *testing.T) {
	dir := t.TempDir()
	store, err := service.NewLocalImageStore(dir, "/media/")
	require.NoError(t, err)
	ctx := context.Background()

	img, err := service.DecodeImage(testhelpers.PNG)
	require.NoError(t, err)

	url, err := store.Save(ctx, img)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/media/recipes/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	path := filepath.Join(dir, strings.TrimPrefix(url, "/media/"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, img.Data, data)

	require.NoError(t, store.Delete(ctx, url))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(ctx, url), "deleting twice is not an error")
	assert.NoError(t, store.Delete(ctx, "https://elsewhere.test/x.png"))
	assert.NoError(t, store.Delete(ctx, "/media/../etc/passwd"))
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
	puts    int
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3ImageStore(t *testing.T) {
	client := &fakeS3{}
	cfg := config.StorageConfig{Bucket: "images", Region: "eu-west-1"}
	store := service.NewS3ImageStore(client, cfg)
	ctx := context.Background()

	img, err := service.DecodeImage(testhelpers.PNG)
	require.NoError(t, err)

	url, err := store.Save(ctx, img)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://images.s3.eu-west-1.amazonaws.com/recipes/"))

	key := strings.TrimPrefix(url, "https://images.s3.eu-west-1.amazonaws.com/")
	assert.Equal(t, img.Data, client.objects[key])

	require.NoError(t, store.Delete(ctx, url))
	assert.Equal(t, []string{key}, client.deleted)

	require.NoError(t, store.Delete(ctx, "/media/recipes/local.png"))
	assert.Len(t, client.deleted, 1, "foreign urls are ignored")
}

func TestS3ImageStoreBreakerOpens(t *testing.T) {
	client := &fakeS3{putErr: errors.New("connection refused")}
	store := service.NewS3ImageStore(client, config.StorageConfig{Bucket: "images", Region: "us-east-1"})
	ctx := context.Background()

	img, err := service.DecodeImage(testhelpers.PNG)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := store.Save(ctx, img)
		require.Error(t, err)
	}
	assert.Equal(t, 5, client.puts)

	_, err = store.Save(ctx, img)
	require.Error(t, err)
	assert.Equal(t, 5, client.puts, "open breaker fails fast without calling s3")
}
