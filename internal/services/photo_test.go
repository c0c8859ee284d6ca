package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"spark-backend/internal/apperr"
	appconfig "spark-backend/internal/config"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	input       *s3.PutObjectInput
	body        []byte
	hadDeadline bool
	err         error
	block       bool
}

func (f *fakeObjects) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	_, f.hadDeadline = ctx.Deadline()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

type fakePresigner struct {
	input   *s3.PutObjectInput
	expires time.Duration
}

func (f *fakePresigner) PresignPutObject(_ context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.input = params
	opts := &s3.PresignOptions{}
	for _, fn := range optFns {
		fn(opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://signed.test/" + *params.Key, Method: "PUT"}, nil
}

func photoConfig() appconfig.AWSConfig {
	return appconfig.AWSConfig{
		Region:        "eu-west-1",
		S3Bucket:      "spark-photos",
		UploadTimeout: time.Second,
		MaxPhotoBytes: 16,
	}
}

func TestUploadStoresObject(t *testing.T) {
	objects := &fakeObjects{}
	svc := NewPhotoService(objects, &fakePresigner{}, photoConfig())

	url, err := svc.Upload(context.Background(), "u1", PhotoFile{Filename: "me.PNG", ContentType: "image/png", Data: []byte("png")})
	require.NoError(t, err)

	key := *objects.input.Key
	assert.True(t, strings.HasPrefix(key, "users/u1/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.Equal(t, "spark-photos", *objects.input.Bucket)
	assert.Equal(t, "image/png", *objects.input.ContentType)
	assert.Equal(t, []byte("png"), objects.body)
	assert.True(t, objects.hadDeadline)
	assert.Equal(t, "https://spark-photos.s3.eu-west-1.amazonaws.com/"+key, url)
}

func TestUploadUsesPublicBaseURL(t *testing.T) {
	cfg := photoConfig()
	cfg.PublicBaseURL = "https://cdn.example.com/"
	svc := NewPhotoService(&fakeObjects{}, &fakePresigner{}, cfg)

	url, err := svc.Upload(context.Background(), "u1", PhotoFile{Filename: "a.jpg", Data: []byte("x")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/users/u1/"))
}

func TestUploadRejectsBadInput(t *testing.T) {
	svc := NewPhotoService(&fakeObjects{}, &fakePresigner{}, photoConfig())
	ctx := context.Background()

	_, err := svc.Upload(ctx, "u1", PhotoFile{Filename: "a.jpg"})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	_, err = svc.Upload(ctx, "u1", PhotoFile{Filename: "a.jpg", Data: []byte(strings.Repeat("x", 17))})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	_, err = svc.Upload(ctx, "u1", PhotoFile{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("x")})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}

func TestUploadFailureCarriesDetail(t *testing.T) {
	objects := &fakeObjects{err: errors.New("access denied")}
	svc := NewPhotoService(objects, &fakePresigner{}, photoConfig())

	_, err := svc.Upload(context.Background(), "u1", PhotoFile{Filename: "a.jpg", Data: []byte("x")})
	assert.True(t, apperr.Is(err, apperr.UploadFailed))
	assert.Contains(t, apperr.PublicMessage(err), "access denied")
}

func TestUploadTimesOut(t *testing.T) {
	cfg := photoConfig()
	cfg.UploadTimeout = 20 * time.Millisecond
	svc := NewPhotoService(&fakeObjects{block: true}, &fakePresigner{}, cfg)

	_, err := svc.Upload(context.Background(), "u1", PhotoFile{Filename: "a.jpg", Data: []byte("x")})
	assert.True(t, apperr.Is(err, apperr.UploadFailed))
	assert.Equal(t, "photo upload failed: timed out", apperr.PublicMessage(err))
}

func TestGetPreSignedURL(t *testing.T) {
	presigner := &fakePresigner{}
	svc := NewPhotoService(&fakeObjects{}, presigner, photoConfig())

	res, err := svc.GetPreSignedURL(context.Background(), "u1", "x.jpeg", "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, 300, res.ExpiresIn)
	assert.Equal(t, 5*time.Minute, presigner.expires)
	assert.True(t, strings.HasPrefix(res.UploadURL, "https://signed.test/users/u1/"))
	assert.True(t, strings.HasSuffix(res.PhotoURL, ".jpeg"))

	_, err = svc.GetPreSignedURL(context.Background(), "u1", "x.exe", "application/octet-stream")
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}
