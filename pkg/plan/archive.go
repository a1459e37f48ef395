package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

type objectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Archiver writes a JSON copy of every saved plan to a bucket.
type S3Archiver struct {
	client    objectStore
	bucket    string
	attempts  int
	baseDelay time.Duration
}

func NewS3Archiver(ctx context.Context, bucket, region string) (*S3Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newS3Archiver(s3.NewFromConfig(cfg), bucket), nil
}

func newS3Archiver(client objectStore, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, attempts: 3, baseDelay: 200 * time.Millisecond}
}

func (a *S3Archiver) Archive(ctx context.Context, p models.Plan) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	key := ObjectKey(p)
	err = retry(ctx, a.attempts, a.baseDelay, func() error {
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			logger.Log.WithError(err).WithField("key", key).Warn("plan archive upload failed")
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload plan to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// Remove deletes the archive copy of p. Deleting a missing object succeeds.
func (a *S3Archiver) Remove(ctx context.Context, p models.Plan) error {
	key := ObjectKey(p)
	err := retry(ctx, a.attempts, a.baseDelay, func() error {
		_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete plan archive %s: %w", key, err)
	}
	return nil
}

func ObjectKey(p models.Plan) string {
	return fmt.Sprintf("plans/%s/%d/%s/%s.json", p.RegionID, p.Year, p.Scenario, p.ID)
}

// retry runs fn with exponential backoff capped at two seconds.
func retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts <= 1 {
		return fn()
	}

	var err error
	delay := baseDelay
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > 2*time.Second {
			delay = 2 * time.Second
		}
	}
	return err
}
