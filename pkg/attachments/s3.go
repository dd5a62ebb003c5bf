package attachments

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hashicorp/go-hclog"
)

// S3Config configures the S3-compatible attachment store.
type S3Config struct {
	Endpoint  string `hcl:"endpoint,optional"`   // S3 endpoint URL (e.g., MinIO); empty for AWS
	Region    string `hcl:"region"`              // AWS region (e.g., "us-west-2")
	Bucket    string `hcl:"bucket"`              // S3 bucket name
	Prefix    string `hcl:"prefix,optional"`     // Optional key prefix (e.g., "attachments/")
	AccessKey string `hcl:"access_key,optional"` // Access key ID
	SecretKey string `hcl:"secret_key,optional"` // Secret access key

	// PublicURL is the base URL objects are served from. Defaults to the
	// endpoint (path-style) or the AWS virtual-hosted bucket URL.
	PublicURL string `hcl:"public_url,optional"`

	RequestTimeoutSeconds int  `hcl:"request_timeout_seconds,optional"` // Request timeout (default: 30)
	InsecureSkipVerify    bool `hcl:"insecure_skip_verify,optional"`    // Skip TLS verification (for testing only)
	VerifyBucket          bool `hcl:"verify_bucket,optional"`           // HEAD the bucket on startup
}

// Validate validates the S3 configuration.
func (c *S3Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("access_key and secret_key must be set together")
	}
	return nil
}

// SetDefaults sets default values for optional configuration fields.
func (c *S3Config) SetDefaults() {
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = 30
	}
	if c.PublicURL == "" {
		if c.Endpoint != "" {
			c.PublicURL = strings.TrimSuffix(c.Endpoint, "/") + "/" + c.Bucket
		} else {
			c.PublicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
		}
	}
}

// S3Store stores attachments in an S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	cfg    *S3Config
	logger hclog.Logger
}

// NewS3Store creates an S3 attachment store.
func NewS3Store(cfg *S3Config, logger hclog.Logger) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid S3 configuration: %w", err)
	}
	cfg.SetDefaults()

	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	awsCfg, err := createAWSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Custom endpoint for MinIO or other S3-compatible services
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	store := &S3Store{
		client: client,
		cfg:    cfg,
		logger: logger.Named("s3-store"),
	}

	if cfg.VerifyBucket {
		if _, err := client.HeadBucket(context.Background(), &s3.HeadBucketInput{
			Bucket: aws.String(cfg.Bucket),
		}); err != nil {
			return nil, fmt.Errorf("bucket %s is not accessible: %w", cfg.Bucket, err)
		}
	}

	store.logger.Info("S3 attachment store initialized",
		"bucket", cfg.Bucket,
		"prefix", cfg.Prefix,
		"endpoint", cfg.Endpoint)

	return store, nil
}

// createAWSConfig creates AWS SDK configuration from S3 config.
func createAWSConfig(cfg *S3Config) (aws.Config, error) {
	httpClient := &http.Client{
		Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify,
			},
		},
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	return config.LoadDefaultConfig(context.Background(), opts...)
}

// objectKey applies the configured prefix.
func (s *S3Store) objectKey(key string) string {
	if s.cfg.Prefix == "" {
		return key
	}
	return path.Join(s.cfg.Prefix, key)
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	objectKey := s.objectKey(key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(objectKey),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object to S3: %w", err)
	}

	s.logger.Debug("uploaded attachment", "key", objectKey, "size", size, "content_type", contentType)
	return strings.TrimSuffix(s.cfg.PublicURL, "/") + "/" + objectKey, nil
}
