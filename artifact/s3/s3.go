// Package s3 provides an S3-backed ArtifactStore for durable artifact
// persistence across process restarts. Artifacts are stored one object per
// artifact under "<prefix>/<sessionID>/<artifactID>".
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fincoach/fincoach/artifact"
)

// Client is the subset of the S3 API the store uses. *s3.Client satisfies it;
// tests can supply a fake.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds bucket wiring for the store.
type Config struct {
	// Bucket is the target S3 bucket (required).
	Bucket string
	// Prefix namespaces all keys, useful when the bucket is shared.
	// Defaults to "artifacts".
	Prefix string
}

// Store implements core.ArtifactStore on top of S3.
type Store struct {
	client Client
	bucket string
	prefix string
}

// New creates a Store using the provided client.
func New(client Client, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 artifact store: bucket is required")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "artifacts"
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// NewFromDefaultConfig creates a Store with a client built from the default
// AWS configuration chain (env vars, shared config, instance role).
func NewFromDefaultConfig(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 artifact store: load aws config: %w", err)
	}

	return New(s3.NewFromConfig(awsCfg), cfg)
}

// Save uploads artifact data, overwriting any existing object.
func (s *Store) Save(sessionID, artifactID string, data []byte) error {
	_, err := s.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID, artifactID)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", artifactID, err)
	}

	return nil
}

// Get downloads artifact data. Returns artifact.ErrNotFound when the object
// does not exist.
func (s *Store) Get(sessionID, artifactID string) ([]byte, error) {
	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID, artifactID)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, artifact.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get artifact %s: %w", artifactID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", artifactID, err)
	}

	return data, nil
}

// List returns the artifact IDs stored under the session.
func (s *Store) List(sessionID string) ([]string, error) {
	sessionPrefix := s.prefix + "/" + sessionID + "/"

	ids := []string{}
	var continuation *string
	for {
		out, err := s.client.ListObjectsV2(context.Background(), &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(sessionPrefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list artifacts: %w", err)
		}

		for _, obj := range out.Contents {
			if obj.Key == nil {
				continue
			}
			ids = append(ids, strings.TrimPrefix(*obj.Key, sessionPrefix))
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuation = out.NextContinuationToken
	}

	return ids, nil
}

// Delete removes an artifact object. Deleting a missing artifact is not an
// error; S3 delete is idempotent.
func (s *Store) Delete(sessionID, artifactID string) error {
	_, err := s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID, artifactID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete artifact %s: %w", artifactID, err)
	}

	return nil
}

func (s *Store) key(sessionID, artifactID string) string {
	return s.prefix + "/" + sessionID + "/" + artifactID
}

func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound")
}
