package s3

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/config"
)

type mockPutter struct {
	PutObjectFunc func(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func (m *mockPutter) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return m.PutObjectFunc(ctx, in, optFns...)
}

func TestPublisher_Publish(t *testing.T) {
	t.Parallel()

	var got *s3.PutObjectInput
	var body []byte
	client := &mockPutter{PutObjectFunc: func(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		got = in
		var err error
		body, err = io.ReadAll(in.Body)
		return &s3.PutObjectOutput{}, err
	}}

	p := newPublisher(slog.Default(), client, "food-map", "/serving/")
	require.NoError(t, p.Publish(context.Background(), "restaurants_index.json", []byte(`{"restaurants":[]}`)))

	require.NotNil(t, got)
	assert.Equal(t, "food-map", aws.ToString(got.Bucket))
	assert.Equal(t, "serving/restaurants_index.json", aws.ToString(got.Key))
	assert.Equal(t, "application/json", aws.ToString(got.ContentType))
	assert.Equal(t, int64(18), aws.ToInt64(got.ContentLength))
	assert.Equal(t, `{"restaurants":[]}`, string(body))
}

func TestPublisher_Key(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix, name, want string
	}{
		{"", "a.json", "a.json"},
		{"", "/a.json", "a.json"},
		{"public", "a.json", "public/a.json"},
		{"public/v1/", "x/a.json", "public/v1/x/a.json"},
	}
	for _, tt := range tests {
		p := newPublisher(slog.Default(), nil, "b", tt.prefix)
		assert.Equal(t, tt.want, p.Key(tt.name))
	}
}

func TestPublisher_PublishError(t *testing.T) {
	t.Parallel()

	boom := errors.New("access denied")
	client := &mockPutter{PutObjectFunc: func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, boom
	}}

	err := newPublisher(slog.Default(), client, "b", "").Publish(context.Background(), "a.json", nil)
	assert.ErrorIs(t, err, boom)
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), slog.Default(), config.S3Config{})
	assert.Error(t, err)

	p, err := New(context.Background(), slog.Default(), config.S3Config{
		Bucket:       "food-map",
		Prefix:       "idx",
		Endpoint:     "localhost:9000",
		AccessKey:    "minio",
		SecretKey:    "minio123",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "idx/a.json", p.Key("a.json"))
}

func TestNormalizeEndpoint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://s3.example.com", normalizeEndpoint("s3.example.com"))
	assert.Equal(t, "http://localhost:9000", normalizeEndpoint("http://localhost:9000"))
}
