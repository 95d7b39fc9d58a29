// Writes blobs to AWS S3 (or an S3-compatible service when an endpoint override is
// given). Destination config is a comma-separated key=value list, e.g.
//
//	access=AKID,secret=s3cr3t,region=eu-west-3,bucket=myassets,folder=prod
package s3blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	stdmime "mime"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/aitta/pkg/amsutils"
	"github.com/function61/aitta/pkg/blobprovider"
	"github.com/function61/gokit/logex"
)

const TypeName = "AmazonS3"

// S3 DeleteObjects accepts at most this many keys per call
const deleteBatchSize = 1000

type Config struct {
	AccessKeyID string // access= (required)
	Secret      string // secret= (required)
	Region      string // region= (required)
	Bucket      string // bucket= (required)
	Endpoint    string // endpoint= (optional, for S3-compatible services)
	Folder      string // folder= (optional key prefix)
}

func ParseConfig(serialized string) (*Config, error) {
	options := map[string]string{}

	for _, entry := range strings.Split(serialized, ",") {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			return nil, amserrors.S3ConfigMalformed(serialized, fmt.Errorf("entry %q not in key=value format", entry))
		}

		options[key] = value
	}

	for _, required := range []string{"access", "secret", "region", "bucket"} {
		if options[required] == "" {
			return nil, amserrors.S3ConfigKeyMissing(required)
		}
	}

	return &Config{
		AccessKeyID: options["access"],
		Secret:      options["secret"],
		Region:      options["region"],
		Bucket:      options["bucket"],
		Endpoint:    options["endpoint"],
		Folder:      strings.Trim(options["folder"], "/"),
	}, nil
}

type s3BlobStore struct {
	conf   *Config
	client *s3.S3
	logl   *logex.Leveled
}

func New(config string, logger *log.Logger) (blobprovider.Provider, error) {
	conf, err := ParseConfig(config)
	if err != nil {
		return nil, err
	}

	if conf.Endpoint != "" {
		if _, err := url.Parse(conf.Endpoint); err != nil {
			return nil, amserrors.S3InvalidEndpoint(err)
		}
	}

	awsConf := &aws.Config{
		Region:      aws.String(conf.Region),
		Credentials: credentials.NewStaticCredentials(conf.AccessKeyID, conf.Secret, ""),
	}

	if conf.Endpoint != "" {
		awsConf.Endpoint = aws.String(conf.Endpoint)
		// S3-compatible services (Minio etc.) usually don't do virtual-host -style buckets
		awsConf.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConf)
	if err != nil {
		return nil, amserrors.S3InvalidEndpoint(err)
	}

	return &s3BlobStore{
		conf:   conf,
		client: s3.New(sess),
		logl:   logex.Levels(logex.NonNil(logger)),
	}, nil
}

func (g *s3BlobStore) Put(ctx context.Context, content io.Reader, filename string, mimetype string) (string, error) {
	// S3 internally requires retry support (io.ReadSeeker), so we're forced to buffer
	buf, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}

	mediaID := generateKey(filename, mimetype)

	if _, err := g.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.conf.Bucket),
		Key:         aws.String(g.fullKey(mediaID)),
		Body:        bytes.NewReader(buf),
		ContentType: aws.String(mimetype),
	}); err != nil {
		return "", g.translateError(err, mediaID)
	}

	return mediaID, nil
}

func (g *s3BlobStore) Get(ctx context.Context, mediaID string) (io.ReadCloser, error) {
	res, err := g.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.conf.Bucket),
		Key:    aws.String(g.fullKey(mediaID)),
	})
	if err != nil {
		return nil, g.translateError(err, mediaID)
	}

	return res.Body, nil
}

func (g *s3BlobStore) Delete(ctx context.Context, mediaID string) error {
	// S3 DeleteObject on a missing key succeeds, i.e. best-effort comes for free
	if _, err := g.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.conf.Bucket),
		Key:    aws.String(g.fullKey(mediaID)),
	}); err != nil {
		return g.translateError(err, mediaID)
	}

	return nil
}

func (g *s3BlobStore) Exists(ctx context.Context, mediaID string) (bool, error) {
	if _, err := g.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.conf.Bucket),
		Key:    aws.String(g.fullKey(mediaID)),
	}); err != nil {
		translated := g.translateError(err, mediaID)
		if amserrors.IsNotFound(translated) {
			return false, nil
		}

		return false, translated
	}

	return true, nil
}

func (g *s3BlobStore) Drop(ctx context.Context) error {
	listInput := &s3.ListObjectsInput{
		Bucket:  aws.String(g.conf.Bucket),
		MaxKeys: aws.Int64(deleteBatchSize),
	}

	if g.conf.Folder != "" {
		listInput.Prefix = aws.String(g.conf.Folder)
	}

	for {
		objects, err := g.client.ListObjectsWithContext(ctx, listInput)
		if err != nil {
			return g.translateError(err, "")
		}

		if len(objects.Contents) == 0 {
			return nil
		}

		batch := []*s3.ObjectIdentifier{}
		for _, obj := range objects.Contents {
			batch = append(batch, &s3.ObjectIdentifier{Key: obj.Key})
		}

		if _, err := g.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(g.conf.Bucket),
			Delete: &s3.Delete{Objects: batch},
		}); err != nil {
			return g.translateError(err, "")
		}

		listInput.Marker = objects.Contents[len(objects.Contents)-1].Key
	}
}

// prefixes the media ID with the configured folder, if any
func (g *s3BlobStore) fullKey(mediaID string) string {
	if g.conf.Folder != "" {
		return g.conf.Folder + "/" + mediaID
	}

	return mediaID
}

// "<sanitized base>-<random suffix><extension>". extension is guessed from the
// mimetype when the filename doesn't have one.
func generateKey(filename string, mimetype string) string {
	ext := path.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	if ext == "" && mimetype != "" {
		if exts, err := stdmime.ExtensionsByType(mimetype); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}

	return makeS3Safe(base) + "-" + amsutils.NewMediaID() + ext
}

// characters that may cause issues when used in an S3 object key.
// https://docs.aws.amazon.com/AmazonS3/latest/dev/UsingMetadata.html
func makeS3Safe(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\\', '{', '^', '}', '%', '`', ']', '>', '[', '~', '<', '#', '|', '\'', '"':
			return -1
		default:
			return r
		}
	}, key)
}

// maps AWS SDK errors to our own taxonomy so callers never see SDK error types
func (g *s3BlobStore) translateError(err error, mediaID string) error {
	var awsErr awserr.Error
	if !errors.As(err, &awsErr) {
		return amserrors.UnknownBackendError(err)
	}

	switch awsErr.Code() {
	case "InvalidAccessKeyId":
		return amserrors.S3InvalidAccessKeyID(err)
	case "SignatureDoesNotMatch":
		return amserrors.S3InvalidSecret(err)
	case s3.ErrCodeNoSuchBucket:
		return amserrors.S3BucketNotFound(g.conf.Bucket, err)
	case s3.ErrCodeBucketAlreadyOwnedByYou:
		return amserrors.S3BucketAlreadyExists(g.conf.Bucket, err)
	case "InvalidBucketName":
		return amserrors.S3InvalidBucketName(g.conf.Bucket, err)
	case s3.ErrCodeNoSuchKey, "NotFound":
		return amserrors.AssetNotFound(mediaID)
	default:
		return amserrors.UnknownBackendError(err)
	}
}
