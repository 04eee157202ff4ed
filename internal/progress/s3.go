package progress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds the settings of an S3 (or S3-compatible) snapshot bucket.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // optional, for S3-compatible services
	AccessKeyID     string // optional
	SecretAccessKey string // optional
}

// objectAPI is the subset of the S3 client used by S3Store.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps snapshots as objects under a bucket prefix.
type S3Store struct {
	client objectAPI
	bucket string
	prefix string
	options
}

// NewS3Store builds an S3 client from cfg. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg S3Config, opts ...Option) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 progress store: bucket is required")
	}

	var configOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		configOpts = append(configOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return newS3Store(s3.NewFromConfig(awsCfg, clientOpts...), cfg.Bucket, cfg.Prefix, opts...), nil
}

func newS3Store(client objectAPI, bucket, prefix string, opts ...Option) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix, options: newOptions(opts)}
}

func (s *S3Store) key(sourcePath string) string {
	return path.Join(s.prefix, FileName(sourcePath))
}

// Location returns the s3:// URI of the snapshot for sourcePath.
func (s *S3Store) Location(sourcePath string) string {
	return "s3://" + s.bucket + "/" + s.key(sourcePath)
}

// Save uploads snap.
func (s *S3Store) Save(ctx context.Context, snap Snapshot) error {
	snap.Metadata.Timestamp = s.now().UTC()
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(snap.AudioInfo.Path)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload progress to S3: %w", err)
	}
	s.logger.Info("progress saved", "location", s.Location(snap.AudioInfo.Path), "stage", string(snap.Stage))
	return nil
}

// Load downloads the snapshot for sourcePath. A missing object is a cold start.
func (s *S3Store) Load(ctx context.Context, sourcePath string) (Snapshot, bool) {
	loc := s.Location(sourcePath)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sourcePath)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			s.logger.Debug("no progress snapshot", "location", loc)
		} else {
			s.logger.Warn("cannot fetch progress snapshot", "location", loc, "error", err)
		}
		return Snapshot{}, false
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		s.logger.Warn("cannot read progress snapshot", "location", loc, "error", err)
		return Snapshot{}, false
	}
	return decodeOrReject(s.logger, data, sourcePath, loc)
}
