package report

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const (
	defaultRegionConstant          = "us-east-1"
	contentTypeJSONConstant        = "application/json"
	contentTypeMarkdownConstant    = "text/markdown; charset=utf-8"
	contentTypeHTMLConstant        = "text/html; charset=utf-8"
	contentTypeDefaultConstant     = "application/octet-stream"
	endpointMissingMessageConstant = "object store endpoint is required"
	keysMissingMessageConstant     = "object store access key and secret key are required"
	bucketMissingMessageConstant   = "object store bucket is required"
	uploaderMissingMessageConstant = "object uploader not configured"
	clientInitErrorTemplate        = "unable to initialize object store client: %w"
	ensureBucketErrorTemplate      = "unable to ensure bucket %s: %w"
	uploadErrorTemplate            = "unable to upload %s: %w"
	logMessageArtifactPublished    = "artifact published"
	logFieldBucketConstant         = "bucket"
	logFieldObjectConstant         = "object"
)

var (
	// ErrObjectStoreEndpointMissing indicates a publisher configuration without an endpoint.
	ErrObjectStoreEndpointMissing = errors.New(endpointMissingMessageConstant)
	// ErrObjectStoreKeysMissing indicates a publisher configuration without credentials.
	ErrObjectStoreKeysMissing = errors.New(keysMissingMessageConstant)
	// ErrObjectStoreBucketMissing indicates a publisher configuration without a bucket.
	ErrObjectStoreBucketMissing = errors.New(bucketMissingMessageConstant)
	// ErrObjectUploaderNotConfigured indicates a publisher without an uploader.
	ErrObjectUploaderNotConfigured = errors.New(uploaderMissingMessageConstant)
)

// ObjectUploader is the subset of the S3 client used to mirror artifacts.
type ObjectUploader interface {
	BucketExists(executionContext context.Context, bucketName string) (bool, error)
	MakeBucket(executionContext context.Context, bucketName string, options minio.MakeBucketOptions) error
	FPutObject(executionContext context.Context, bucketName string, objectName string, filePath string, options minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectStoreConfiguration describes the S3-compatible bucket receiving run artifacts.
type ObjectStoreConfiguration struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Enabled reports whether an endpoint was configured.
func (configuration ObjectStoreConfiguration) Enabled() bool {
	return len(strings.TrimSpace(configuration.Endpoint)) > 0
}

// ObjectStorePublisher mirrors run artifacts to an S3-compatible bucket.
type ObjectStorePublisher struct {
	logger      *zap.Logger
	uploader    ObjectUploader
	bucket      string
	region      string
	prefix      string
	bucketOnce  sync.Once
	bucketError error
}

// NewObjectStorePublisher builds a publisher backed by a MinIO client.
func NewObjectStorePublisher(logger *zap.Logger, configuration ObjectStoreConfiguration) (*ObjectStorePublisher, error) {
	endpoint := strings.TrimSpace(configuration.Endpoint)
	if len(endpoint) == 0 {
		return nil, ErrObjectStoreEndpointMissing
	}
	accessKey := strings.TrimSpace(configuration.AccessKey)
	secretKey := strings.TrimSpace(configuration.SecretKey)
	if len(accessKey) == 0 || len(secretKey) == 0 {
		return nil, ErrObjectStoreKeysMissing
	}
	region := strings.TrimSpace(configuration.Region)
	if len(region) == 0 {
		region = defaultRegionConstant
	}

	client, clientError := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: configuration.UseSSL,
		Region: region,
	})
	if clientError != nil {
		return nil, fmt.Errorf(clientInitErrorTemplate, clientError)
	}
	return NewObjectStorePublisherWithUploader(logger, client, configuration.Bucket, region, configuration.Prefix)
}

// NewObjectStorePublisherWithUploader builds a publisher around an existing uploader.
func NewObjectStorePublisherWithUploader(logger *zap.Logger, uploader ObjectUploader, bucket string, region string, prefix string) (*ObjectStorePublisher, error) {
	if uploader == nil {
		return nil, ErrObjectUploaderNotConfigured
	}
	trimmedBucket := strings.TrimSpace(bucket)
	if len(trimmedBucket) == 0 {
		return nil, ErrObjectStoreBucketMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectStorePublisher{
		logger:   logger,
		uploader: uploader,
		bucket:   trimmedBucket,
		region:   region,
		prefix:   strings.Trim(strings.TrimSpace(prefix), "/"),
	}, nil
}

// Publish uploads each file to <prefix>/<runID>/<file name> and returns the object keys.
func (publisher *ObjectStorePublisher) Publish(executionContext context.Context, runID string, filePaths []string) ([]string, error) {
	if len(strings.TrimSpace(runID)) == 0 {
		return nil, ErrRunIDMissing
	}
	if bucketError := publisher.ensureBucket(executionContext); bucketError != nil {
		return nil, fmt.Errorf(ensureBucketErrorTemplate, publisher.bucket, bucketError)
	}

	objectKeys := make([]string, 0, len(filePaths))
	for _, filePath := range filePaths {
		objectKey := publisher.objectKey(runID, filepath.Base(filePath))
		if _, uploadError := publisher.uploader.FPutObject(executionContext, publisher.bucket, objectKey, filePath, minio.PutObjectOptions{ContentType: contentTypeFor(filePath)}); uploadError != nil {
			return objectKeys, fmt.Errorf(uploadErrorTemplate, filePath, uploadError)
		}
		publisher.logger.Info(logMessageArtifactPublished, zap.String(logFieldBucketConstant, publisher.bucket), zap.String(logFieldObjectConstant, objectKey))
		objectKeys = append(objectKeys, objectKey)
	}
	return objectKeys, nil
}

func (publisher *ObjectStorePublisher) ensureBucket(executionContext context.Context) error {
	publisher.bucketOnce.Do(func() {
		exists, existsError := publisher.uploader.BucketExists(executionContext, publisher.bucket)
		if existsError != nil {
			publisher.bucketError = existsError
			return
		}
		if exists {
			return
		}
		publisher.bucketError = publisher.uploader.MakeBucket(executionContext, publisher.bucket, minio.MakeBucketOptions{Region: publisher.region})
	})
	return publisher.bucketError
}

func (publisher *ObjectStorePublisher) objectKey(runID string, fileName string) string {
	if len(publisher.prefix) == 0 {
		return path.Join(runID, fileName)
	}
	return path.Join(publisher.prefix, runID, fileName)
}

func contentTypeFor(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		return contentTypeJSONConstant
	case ".md":
		return contentTypeMarkdownConstant
	case ".html":
		return contentTypeHTMLConstant
	default:
		return contentTypeDefaultConstant
	}
}
