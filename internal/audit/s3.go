package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"orion-sentinel/internal/playbook"
)

// S3Config holds settings for the action archive bucket.
type S3Config struct {
	Region          string        `yaml:"region"`
	Bucket          string        `yaml:"bucket"`
	Prefix          string        `yaml:"prefix"`
	Endpoint        string        `yaml:"endpoint,omitempty"`
	AccessKeyID     string        `yaml:"access_key_id,omitempty"`
	SecretAccessKey string        `yaml:"secret_access_key,omitempty"`
	UsePathStyle    bool          `yaml:"use_path_style"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
}

// DefaultS3Config returns default archive settings.
func DefaultS3Config() S3Config {
	return S3Config{
		Region:        "us-east-1",
		Bucket:        "soar-action-archive",
		Prefix:        "actions/",
		FlushInterval: 5 * time.Minute,
	}
}

// objectPutter is the slice of the S3 API the archiver needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver accumulates triggered action records and periodically
// writes them to S3 as timestamped JSONL objects. It complements the
// queryable sinks with cheap long-term storage.
type S3Archiver struct {
	client objectPutter
	config S3Config
	logger *slog.Logger

	mu     sync.Mutex
	buffer bytes.Buffer
	count  int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewS3Archiver creates an archiver with a real S3 client.
func NewS3Archiver(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 archive bucket is required")
	}

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
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newS3Archiver(s3.NewFromConfig(awsCfg, s3Opts...), cfg, logger), nil
}

func newS3Archiver(client objectPutter, cfg S3Config, logger *slog.Logger) *S3Archiver {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultS3Config().FlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Archiver{
		client: client,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins the periodic flush loop.
func (a *S3Archiver) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.config.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				if err := a.Flush(context.Background()); err != nil {
					a.logger.Error("archive flush failed", "error", err)
				}
			}
		}
	}()
}

// Record appends one triggered action to the pending archive object.
func (a *S3Archiver) Record(_ context.Context, ta *playbook.TriggeredAction) error {
	line, err := json.Marshal(ta)
	if err != nil {
		return fmt.Errorf("failed to marshal triggered action: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffer.Write(line)
	a.buffer.WriteByte('\n')
	a.count++
	return nil
}

// Flush writes buffered records as one JSONL object.
func (a *S3Archiver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.count == 0 {
		a.mu.Unlock()
		return nil
	}
	data := make([]byte, a.buffer.Len())
	copy(data, a.buffer.Bytes())
	count := a.count
	a.buffer.Reset()
	a.count = 0
	a.mu.Unlock()

	key := fmt.Sprintf("%s%s.jsonl", a.config.Prefix, time.Now().UTC().Format("2006/01/02/150405.000000000"))

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("failed to put archive object: %w", err)
	}

	a.logger.Debug("archive object written", "key", key, "records", count)
	return nil
}

// Close stops the flush loop and writes any remaining records.
func (a *S3Archiver) Close() error {
	close(a.stopCh)
	a.wg.Wait()
	return a.Flush(context.Background())
}
