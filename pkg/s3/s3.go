package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

var ErrBucketNotConfigured = errors.New("s3: AWS_BUCKET_NAME is not set")

type ItfS3 interface {
	UploadFrame(ctx context.Context, key string, data []byte) (string, error)
	PresignURL(key string) (string, error)
}

type s3Client struct {
	client     s3iface.S3API
	uploader   s3manageriface.UploaderAPI
	bucketName string
	presignTTL time.Duration
}

func New(sess *session.Session) (ItfS3, error) {
	bucket := os.Getenv("AWS_BUCKET_NAME")
	if bucket == "" {
		return nil, ErrBucketNotConfigured
	}

	return &s3Client{
		client:     s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		bucketName: bucket,
		presignTTL: 15 * time.Minute,
	}, nil
}

// UploadFrame stores an archived frame and returns its key.
func (s *s3Client) UploadFrame(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(http.DetectContentType(data)),
	})
	if err != nil {
		return "", fmt.Errorf("upload frame %s: %w", key, err)
	}

	return key, nil
}

func (s *s3Client) PresignURL(key string) (string, error) {
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})

	urlStr, err := req.Presign(s.presignTTL)
	if err != nil {
		return "", err
	}

	return urlStr, nil
}

// FrameKey lays frames out per user and session.
func FrameKey(userID, sessionID, eventID string) string {
	return fmt.Sprintf("frames/%s/%s/%s.jpg", userID, sessionID, eventID)
}
