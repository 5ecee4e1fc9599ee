package filestorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"

	"github.com/Brownie44l1/ripeness-api/internal/config"
)

type S3FileStorage struct {
	client *s3.Client
	cfg    config.S3Config
}

func NewS3FileStorage(ctx context.Context, cfg config.S3Config) (*S3FileStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not set")
	}

	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointUrl != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointUrl)
			o.UsePathStyle = true
		}
	})

	return &S3FileStorage{client: client, cfg: cfg}, nil
}

func (s *S3FileStorage) key(name string) string {
	folder := strings.Trim(s.cfg.Folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

func (s *S3FileStorage) Upload(ctx context.Context, file FileInfo) (string, error) {
	key := s.key(file.Filename())

	mtype := file.ContentType
	if mtype == "" {
		mtype = mimetype.Detect(file.Content).String()
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(mtype),
		Body:        bytes.NewReader(file.Content),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return key, nil
}

func (s *S3FileStorage) GetFile(ctx context.Context, key string) (*FileInfo, error) {
	body, _, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	ext := filepath.Ext(key)
	return &FileInfo{
		Name:        strings.TrimSuffix(filepath.Base(key), ext),
		Extension:   ext,
		ContentType: mimetype.Detect(content).String(),
		Content:     content,
	}, nil
}

func (s *S3FileStorage) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	object, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, 0, fmt.Errorf("%w: %s", ErrFileNotFound, key)
		}
		return nil, 0, fmt.Errorf("failed to get %s: %w", key, err)
	}

	size := int64(-1)
	if object.ContentLength != nil {
		size = *object.ContentLength
	}
	return object.Body, size, nil
}
