package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
)

// Copier downloads every object under a prefix into a local directory
type Copier struct {
	client  ObjectAPI
	workers int
}

// NewCopier returns a copier running up to workers downloads at once
func NewCopier(client ObjectAPI, workers int) *Copier {

	if workers < 1 {
		workers = 8
	}

	return &Copier{
		client:  client,
		workers: workers,
	}
}

// CopyPrefix copies all objects below the url's prefix into dir, keeping
// their path relative to the prefix.  It returns the number of files
// written.
func (c *Copier) CopyPrefix(ctx context.Context, rawURL, dir string) (int, error) {

	loc, err := ParseURL(rawURL)

	if err != nil {
		return 0, err
	}

	keys, err := c.list(ctx, loc)

	if err != nil {
		return 0, err
	}

	// resolve every destination before the first download starts
	dsts := make([]string, len(keys))

	for i, key := range keys {
		if dsts[i], err = localPath(dir, loc.Prefix, key); err != nil {
			return 0, err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, key := range keys {
		key, dst := key, dsts[i]

		g.Go(func() error {
			return c.download(ctx, loc.Bucket, key, dst)
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	return len(keys), nil
}

// list returns every object key under the location, skipping directory
// markers
func (c *Copier) list(ctx context.Context, loc Location) ([]string, error) {

	var keys []string

	p := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(loc.Bucket),
		Prefix: aws.String(loc.Prefix),
	})

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)

		if err != nil {
			return nil, fmt.Errorf("error listing %s: %w", loc, err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)

			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}

			// S3 prefixes match on bytes, "data" also lists "data2/..."
			if _, ok := relativeKey(loc.Prefix, key); !ok {
				continue
			}

			keys = append(keys, key)
		}
	}

	return keys, nil
}

// download writes one object to dst
func (c *Copier) download(ctx context.Context, bucket, key, dst string) error {

	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		return fmt.Errorf("error fetching %s: %w", key, err)
	}

	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("error creating directory for %s: %w", key, err)
	}

	f, err := os.Create(dst)

	if err != nil {
		return fmt.Errorf("error creating %s: %w", dst, err)
	}

	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", dst, err)
	}

	return f.Close()
}

// relativeKey returns key relative to prefix.  A prefix not ending in "/"
// names either a single object or a directory, so the key must equal it or
// continue with a "/".
func relativeKey(prefix, key string) (string, bool) {

	switch {
	case prefix == "":
		return key, true
	case strings.HasSuffix(prefix, "/"):
		if !strings.HasPrefix(key, prefix) {
			return "", false
		}
		return key[len(prefix):], true
	case key == prefix:
		// the prefix named a single object
		return path.Base(key), true
	case strings.HasPrefix(key, prefix+"/"):
		return key[len(prefix)+1:], true
	}

	return "", false
}

// localPath maps an object key to its destination under dir.  Keys outside
// the prefix or that would resolve outside dir are rejected.
func localPath(dir, prefix, key string) (string, error) {

	rel, ok := relativeKey(prefix, key)

	if !ok || rel == "" {
		return "", fmt.Errorf("object key %q is not under prefix %q", key, prefix)
	}

	dst := filepath.Join(dir, filepath.FromSlash(rel))
	root := filepath.Clean(dir)

	if dst != root && !strings.HasPrefix(dst, root+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes destination %s", key, dir)
	}

	return dst, nil
}
