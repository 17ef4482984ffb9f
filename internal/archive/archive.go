// Package archive writes committed snapshots to S3-compatible object
// storage as JSON documents. The archive is a by-product for offline
// analysis and replay; nothing in the serving path reads it, so failures
// are logged and never fatal.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/onnwee/currents/internal/snapshot"
)

// S3Archiver stores one JSON document per snapshot under
// snapshots/{date}/{hour}.json.
type S3Archiver struct {
	s3Client   *s3.Client
	bucketName string
	logger     *slog.Logger
}

// Config holds configuration for the snapshot archiver.
type Config struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Logger          *slog.Logger
}

// New creates an S3-backed snapshot archiver.
func New(cfg Config) (*S3Archiver, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// R2-compatible configuration: auto region, path-style addressing.
	s3Client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &S3Archiver{
		s3Client:   s3Client,
		bucketName: cfg.BucketName,
		logger:     cfg.Logger,
	}, nil
}

// Key returns the object key for a (date, hour) snapshot.
func Key(date string, hour int) string {
	return fmt.Sprintf("snapshots/%s/%02d.json", date, hour)
}

// Archive writes a snapshot as a JSON object. Re-archiving the same hour
// overwrites the previous document.
func (a *S3Archiver) Archive(ctx context.Context, snap *snapshot.Snapshot) error {
	if err := snapshot.ValidateKey(snap.Date, snap.Hour); err != nil {
		return err
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for archive: %w", err)
	}

	key := Key(snap.Date, snap.Hour)
	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive snapshot %s: %w", key, err)
	}

	a.logger.Debug("snapshot archived",
		"key", key,
		"items", len(snap.Items),
		"bytes", len(body))
	return nil
}
