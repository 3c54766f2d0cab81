package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/solarb/engine/internal/arb"
)

// Archiver uploads a LearnedModel snapshot to S3 on shutdown, as a
// best-effort backup layer beyond the Postgres-resident copy.
type Archiver struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewArchiver builds an S3 uploader from the ambient AWS config chain
// (environment, shared config, or IAM role), matching the SDK's default
// credential resolution.
func NewArchiver(ctx context.Context, bucket, prefix string) (*Archiver, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &Archiver{uploader: manager.NewUploader(client), bucket: bucket, prefix: prefix}, nil
}

// UploadModelSnapshot archives one LearnedModel snapshot under a
// timestamp-derived key.
func (a *Archiver) UploadModelSnapshot(ctx context.Context, model arb.LearnedModel, now time.Time) error {
	payload, err := msgpack.Marshal(model)
	if err != nil {
		return fmt.Errorf("encode model snapshot: %w", err)
	}

	key := fmt.Sprintf("%s/learned-model-%s.msgpack", a.prefix, now.UTC().Format("20060102T150405Z"))
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return fmt.Errorf("upload model snapshot to s3://%s/%s: %w", a.bucket, key, err)
	}
	return nil
}
