package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrInvalidURL is returned for a location that is not s3://bucket[/prefix]
var ErrInvalidURL = errors.New("invalid object storage url")

// Location is a bucket and key prefix
type Location struct {
	Bucket string
	Prefix string
}

// String returns the location as an s3:// url
func (l Location) String() string {
	return "s3://" + path.Join(l.Bucket, l.Prefix)
}

// ParseURL parses an s3://bucket/prefix url
func ParseURL(raw string) (Location, error) {

	u, err := url.Parse(raw)

	if err != nil {
		return Location{}, fmt.Errorf("%w: %s: %v", ErrInvalidURL, raw, err)
	}

	if u.Scheme != "s3" || u.Host == "" {
		return Location{}, fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}

	return Location{
		Bucket: u.Host,
		Prefix: strings.TrimPrefix(u.Path, "/"),
	}, nil
}

// IsURL reports whether s names an object storage location rather than a
// local path
func IsURL(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

// ObjectAPI is the subset of the S3 client the copier uses
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput,
		optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options configures the S3 client created by NewS3Copier
type Options struct {
	// Region overrides the region from the environment
	Region string `yaml:"region"`
	// Endpoint is an S3 compatible endpoint such as MinIO, empty for AWS
	Endpoint string `yaml:"endpoint"`
	// Workers is the number of parallel downloads
	Workers int `yaml:"workers"`
}

// NewS3Copier creates a copier using the default AWS credential chain
func NewS3Copier(ctx context.Context, opts Options) (*Copier, error) {

	var loadOpts []func(*awsconfig.LoadOptions) error

	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)

	if err != nil {
		return nil, fmt.Errorf("error loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewCopier(client, opts.Workers), nil
}
