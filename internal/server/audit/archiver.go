// Package audit выгружает журнал конфликтов из SQLite в S3 (JSON Lines).
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"

	"github.com/iudanet/agrisync/internal/config"
	"github.com/iudanet/agrisync/internal/models"
)

const (
	// DefaultBatchSize число конфликтов в одном объекте
	DefaultBatchSize = 500

	putRetries = 3
	putBackoff = 200 * time.Millisecond
)

// ObjectPutter подмножество *s3.Client, нужное архиватору
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ConflictSource источник неархивированных конфликтов
type ConflictSource interface {
	ListUnarchivedConflicts(ctx context.Context, limit int) ([]*models.Conflict, error)
	MarkConflictsArchived(ctx context.Context, ids []string) error
}

// NewS3Client создает S3 клиент по настройкам аудита
func NewS3Client(ctx context.Context, cfg config.AuditConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// Archiver периодически выгружает конфликты в S3 и помечает их архивированными
type Archiver struct {
	client    ObjectPutter
	source    ConflictSource
	logger    *slog.Logger
	now       func() time.Time
	backoff   func() retry.Backoff
	bucket    string
	prefix    string
	interval  time.Duration
	batchSize int
}

// NewArchiver creates a new conflict archiver
func NewArchiver(client ObjectPutter, source ConflictSource, cfg config.AuditConfig, logger *slog.Logger) *Archiver {
	return &Archiver{
		client:    client,
		source:    source,
		logger:    logger,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		interval:  cfg.FlushInterval,
		batchSize: DefaultBatchSize,
		now:       time.Now,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(putRetries, retry.NewExponential(putBackoff))
		},
	}
}

// Run выгружает конфликты каждые interval до отмены контекста
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := a.Flush(ctx)
			if err != nil {
				a.logger.Error("Conflict archival failed", "error", err, "archived", n)
				continue
			}
			if n > 0 {
				a.logger.Info("Conflicts archived", "count", n)
			}
		}
	}
}

// Flush выгружает все неархивированные конфликты пачками и возвращает их число
func (a *Archiver) Flush(ctx context.Context) (int, error) {
	total := 0
	for {
		conflicts, err := a.source.ListUnarchivedConflicts(ctx, a.batchSize)
		if err != nil {
			return total, fmt.Errorf("failed to list conflicts: %w", err)
		}
		if len(conflicts) == 0 {
			return total, nil
		}

		if err := a.upload(ctx, conflicts); err != nil {
			return total, err
		}

		ids := make([]string, len(conflicts))
		for i, c := range conflicts {
			ids[i] = c.ID
		}
		// Выгруженная пачка помечается даже после отмены ctx
		if err := a.source.MarkConflictsArchived(context.WithoutCancel(ctx), ids); err != nil {
			return total, fmt.Errorf("failed to mark conflicts archived: %w", err)
		}
		total += len(conflicts)

		if len(conflicts) < a.batchSize {
			return total, nil
		}
	}
}

func (a *Archiver) upload(ctx context.Context, conflicts []*models.Conflict) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, c := range conflicts {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to encode conflict %s: %w", c.ID, err)
		}
	}
	body := buf.Bytes()
	key := a.objectKey(conflicts[0])

	err := retry.Do(ctx, a.backoff(), func(ctx context.Context) error {
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("application/x-ndjson"),
		})
		if err != nil {
			a.logger.Warn("S3 put object failed", "key", key, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// objectKey строит ключ вида <prefix>YYYY/MM/DD/<unix>-<first conflict id>.jsonl
func (a *Archiver) objectKey(first *models.Conflict) string {
	now := a.now().UTC()
	name := fmt.Sprintf("%d-%s.jsonl", now.Unix(), first.ID)
	return a.prefix + path.Join(now.Format("2006/01/02"), name)
}
