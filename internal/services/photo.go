package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"spark-backend/internal/apperr"
	appconfig "spark-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const presignExpiry = 5 * time.Minute

// ObjectStore is the part of the S3 client used for uploads
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner is the part of the S3 presign client used for direct uploads
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// PhotoUploader stores one photo and returns its public URL
type PhotoUploader interface {
	Upload(ctx context.Context, userID string, photo PhotoFile) (string, error)
}

// PhotoFile is an uploaded image held in memory
type PhotoFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PhotoService uploads profile photos to an S3-compatible bucket
type PhotoService struct {
	objects       ObjectStore
	presigner     Presigner
	bucket        string
	region        string
	publicBaseURL string
	timeout       time.Duration
	maxBytes      int64
}

// NewS3Client builds an S3 client from config. Static credentials and a
// custom endpoint are optional.
func NewS3Client(ctx context.Context, cfg appconfig.AWSConfig) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewPhotoService creates a new photo service
func NewPhotoService(objects ObjectStore, presigner Presigner, cfg appconfig.AWSConfig) *PhotoService {
	return &PhotoService{
		objects:       objects,
		presigner:     presigner,
		bucket:        cfg.S3Bucket,
		region:        cfg.Region,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		timeout:       cfg.UploadTimeout,
		maxBytes:      cfg.MaxPhotoBytes,
	}
}

// Upload stores the photo under the user's prefix. The call is bounded by
// the configured timeout and is not retried.
func (s *PhotoService) Upload(ctx context.Context, userID string, photo PhotoFile) (string, error) {
	if len(photo.Data) == 0 {
		return "", apperr.Invalid("photo is empty")
	}
	if s.maxBytes > 0 && int64(len(photo.Data)) > s.maxBytes {
		return "", apperr.Invalid(fmt.Sprintf("photo exceeds %d bytes", s.maxBytes))
	}
	contentType := photo.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(photo.Filename))
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperr.Invalid("photo must be an image")
	}

	key := s.objectKey(userID, photo.Filename, contentType)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(photo.Data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(photo.Data))),
	})
	if err != nil {
		detail := uploadFailureDetail(err)
		log.Error().Err(err).Str("user_id", userID).Str("key", key).Msg("Photo upload failed")
		return "", apperr.New(apperr.UploadFailed, "photo upload failed: "+detail, err)
	}

	log.Info().Str("user_id", userID).Str("key", key).Msg("Photo uploaded")
	return s.PublicURL(key), nil
}

// UploadResponse represents the response with pre-signed URL
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	PhotoURL  string `json:"photo_url"`
	ExpiresIn int    `json:"expires_in"`
}

// GetPreSignedURL generates a pre-signed URL for uploading a photo directly
func (s *PhotoService) GetPreSignedURL(ctx context.Context, userID, filename, contentType string) (*UploadResponse, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperr.Invalid("content_type must be an image type")
	}

	key := s.objectKey(userID, filename, contentType)

	request, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignExpiry
	})
	if err != nil {
		return nil, apperr.New(apperr.UploadFailed, "failed to generate pre-signed URL", err)
	}

	return &UploadResponse{
		UploadURL: request.URL,
		PhotoURL:  s.PublicURL(key),
		ExpiresIn: int(presignExpiry.Seconds()),
	}, nil
}

// PublicURL returns the URL a stored object is served from
func (s *PhotoService) PublicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func (s *PhotoService) objectKey(userID, filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		} else {
			ext = ".jpg"
		}
	}
	return fmt.Sprintf("users/%s/%s%s", userID, uuid.New().String(), ext)
}

// uploadFailureDetail describes why a PutObject call failed, with the HTTP
// status when the bucket answered.
func uploadFailureDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return fmt.Sprintf("status %d: %s", respErr.HTTPStatusCode(), respErr.Err)
	}
	return err.Error()
}
