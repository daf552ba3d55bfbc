// internal/adapters/out/s3store/blob_store.go
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

const backendName = "s3"

// putObjectAPI は *s3.Client の PutObject 部分。
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options は S3 互換ストレージ（Cloudflare R2 など）の接続設定。
type Options struct {
	Endpoint        string // R2: https://<account>.r2.cloudflarestorage.com
	Region          string // R2 は "auto"
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	PublicBaseURL   string // CDN / r2.dev の公開 URL
}

// BlobStoreS3 は S3 互換バケットに content-addressed で保存する。
type BlobStoreS3 struct {
	api    putObjectAPI
	bucket string
	prefix string
	public string
}

// NewBlobStoreS3 builds the aws client from opts.
func NewBlobStoreS3(ctx context.Context, opts Options) (*BlobStoreS3, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("s3: bucket is empty")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "auto"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	public := strings.TrimSpace(opts.PublicBaseURL)
	if public == "" {
		if endpoint != "" {
			public = strings.TrimRight(endpoint, "/") + "/" + opts.Bucket
		} else {
			public = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, region)
		}
	}
	return newBlobStore(client, opts.Bucket, opts.Prefix, public), nil
}

func newBlobStore(api putObjectAPI, bucket, prefix, public string) *BlobStoreS3 {
	return &BlobStoreS3{
		api:    api,
		bucket: strings.TrimSpace(bucket),
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
		public: strings.TrimRight(strings.TrimSpace(public), "/") + "/",
	}
}

func (s *BlobStoreS3) Name() string         { return backendName }
func (s *BlobStoreS3) PublicPrefix() string { return s.public }

func (s *BlobStoreS3) Put(ctx context.Context, data []byte, contentType, contentHash string) (string, error) {
	if strings.TrimSpace(contentHash) == "" {
		return "", &mintdom.PermanentStorageError{Backend: backendName, Err: errors.New("content hash is empty")}
	}
	key := s.key(contentHash)

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
		Metadata:     map[string]string{"content-sha256": contentHash},
	})
	if err != nil {
		log.Printf("[s3] upload FAILED bucket=%s key=%s err=%v", s.bucket, key, err)
		return "", classifyS3Error(err)
	}

	url := s.public + key
	log.Printf("[s3] upload OK type=%s size=%d url=%s", contentType, len(data), url)
	return url, nil
}

func (s *BlobStoreS3) key(contentHash string) string {
	if s.prefix == "" {
		return contentHash
	}
	return s.prefix + "/" + contentHash
}

func classifyS3Error(err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return mintdom.StorageStatusError(backendName, re.HTTPStatusCode(), re.Error())
	}
	return &mintdom.TransientStorageError{Backend: backendName, Err: err}
}
