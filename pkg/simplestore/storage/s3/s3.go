package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-store/pkg/simplestore"
)

const backendName = "s3"

// headConcurrency bounds the HeadObject calls issued while listing
const headConcurrency = 8

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services (R2, MinIO)
	UsePathStyle    bool   // Use path-style addressing (default: false)

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Client is the subset of the S3 API the backend calls
type Client interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Backend is an S3-compatible implementation of the simplestore.ObjectStore interface
type Backend struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
	config   Config
}

// New creates a new S3-compatible storage backend
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	backend := NewWithClient(s3.NewFromConfig(awsCfg, s3Options...), config)

	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(ctx); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return backend, nil
}

// NewWithClient wraps an existing client
func NewWithClient(client Client, config Config) *Backend {
	return &Backend{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   config.Bucket,
		config:   config,
	}
}

func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}

	// MinIO answers a missing bucket with BadRequest in some versions
	if !hasErrorCode(err, "NotFound", "NoSuchBucket", "BadRequest") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	if _, err := b.client.CreateBucket(ctx, createInput); err != nil {
		if hasErrorCode(err, "BucketAlreadyExists", "BucketAlreadyOwnedByYou") {
			return nil
		}
		return err
	}
	return nil
}

// Put uploads the reader with the object's content type and custom metadata
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, opts simplestore.PutOptions) (*simplestore.ObjectInfo, error) {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = simplestore.DefaultContentType
	}

	body := &countingReader{r: reader}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		Metadata:    opts.CustomMetadata,
	}
	b.applySSE(input)

	out, err := b.uploader.Upload(ctx, input)
	if err != nil {
		return nil, b.storageError(key, "put", err)
	}

	return &simplestore.ObjectInfo{
		Key:            key,
		Size:           body.n,
		ContentType:    contentType,
		ETag:           trimETag(out.ETag),
		UploadedAt:     time.Now().UTC(),
		CustomMetadata: opts.CustomMetadata,
	}, nil
}

func (b *Backend) applySSE(input *s3.PutObjectInput) {
	if !b.config.EnableSSE {
		return
	}
	switch b.config.SSEAlgorithm {
	case "AES256":
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if b.config.SSEKMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
		}
	}
}

// Get streams the object body from S3
func (b *Backend) Get(ctx context.Context, key string) (*simplestore.Object, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, simplestore.ErrObjectNotFound
		}
		return nil, b.storageError(key, "get", err)
	}

	return &simplestore.Object{
		ObjectInfo: simplestore.ObjectInfo{
			Key:            key,
			Size:           aws.ToInt64(result.ContentLength),
			ContentType:    contentTypeOrDefault(result.ContentType),
			ETag:           trimETag(result.ETag),
			UploadedAt:     aws.ToTime(result.LastModified),
			CustomMetadata: restoreMetadata(result.Metadata),
		},
		Body: result.Body,
	}, nil
}

// Head retrieves metadata for an object in S3
func (b *Backend) Head(ctx context.Context, key string) (*simplestore.ObjectInfo, error) {
	result, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, simplestore.ErrObjectNotFound
		}
		return nil, b.storageError(key, "head", err)
	}

	return &simplestore.ObjectInfo{
		Key:            key,
		Size:           aws.ToInt64(result.ContentLength),
		ContentType:    contentTypeOrDefault(result.ContentType),
		ETag:           trimETag(result.ETag),
		UploadedAt:     aws.ToTime(result.LastModified),
		CustomMetadata: restoreMetadata(result.Metadata),
	}, nil
}

// Delete deletes content from S3
func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return b.storageError(key, "delete", err)
	}
	return nil
}

// List pages through the bucket with ListObjectsV2. The continuation token
// is passed through as the cursor. Custom metadata is not part of a listing,
// so each listed key is headed concurrently.
func (b *Backend) List(ctx context.Context, opts simplestore.ListOptions) (*simplestore.ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = simplestore.DefaultListLimit
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		MaxKeys: aws.Int32(int32(limit)),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.Cursor != "" {
		input.ContinuationToken = aws.String(opts.Cursor)
	}

	out, err := b.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, b.storageError(opts.Prefix, "list", err)
	}

	objects := make([]simplestore.ObjectInfo, len(out.Contents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(headConcurrency)
	for i, item := range out.Contents {
		i := i
		objects[i] = simplestore.ObjectInfo{
			Key:        aws.ToString(item.Key),
			Size:       aws.ToInt64(item.Size),
			ETag:       trimETag(item.ETag),
			UploadedAt: aws.ToTime(item.LastModified),
		}
		g.Go(func() error {
			info, err := b.Head(gctx, objects[i].Key)
			if errors.Is(err, simplestore.ErrObjectNotFound) {
				// deleted between list and head
				return nil
			}
			if err != nil {
				return err
			}
			objects[i].ContentType = info.ContentType
			objects[i].CustomMetadata = info.CustomMetadata
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &simplestore.ListResult{
		Objects:   objects,
		Truncated: aws.ToBool(out.IsTruncated),
	}
	if result.Truncated {
		result.Cursor = aws.ToString(out.NextContinuationToken)
	}
	return result, nil
}

func (b *Backend) storageError(key, op string, err error) error {
	return &simplestore.StorageError{Backend: backendName, Key: key, Op: op, Err: err}
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	return hasErrorCode(err, "NoSuchKey", "NotFound")
}

func hasErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}

func trimETag(etag *string) string {
	return strings.Trim(aws.ToString(etag), "\"")
}

func contentTypeOrDefault(contentType *string) string {
	if ct := aws.ToString(contentType); ct != "" {
		return ct
	}
	return simplestore.DefaultContentType
}

// restoreMetadata undoes the lowercasing S3 applies to user metadata keys
// for the keys this module writes.
func restoreMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if strings.EqualFold(k, simplestore.MetadataUploadedAt) {
			k = simplestore.MetadataUploadedAt
		}
		out[k] = v
	}
	return out
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
