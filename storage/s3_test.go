package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBucket serves objects from memory, two keys per list page
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	keys    []string
	gets    int
}

func (f *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input,
	_ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {

	var keys []string

	for _, k := range f.keys {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}

	start := 0

	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}

	out := &s3.ListObjectsV2Output{}

	for i := start; i < len(keys) && i < start+2; i++ {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(keys[i])})
	}

	if start+2 < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[start+2])
	}

	return out, nil
}

func (f *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput,
	_ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.gets++
	data, ok := f.objects[*in.Key]

	if !ok {
		return nil, errors.New("no such key")
	}

	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func newFakeBucket(objects map[string]string) *fakeBucket {

	f := &fakeBucket{objects: make(map[string][]byte)}

	for k, v := range objects {
		f.objects[k] = []byte(v)
		f.keys = append(f.keys, k)
	}

	// listing order is lexical like S3
	sort.Strings(f.keys)

	return f
}

func TestParseURL(t *testing.T) {

	tests := []struct {
		url    string
		bucket string
		prefix string
		err    bool
	}{
		{url: "s3://data/plates/train", bucket: "data", prefix: "plates/train"},
		{url: "s3://data", bucket: "data", prefix: ""},
		{url: "s3://data/", bucket: "data", prefix: ""},
		{url: "obs://data/plates", err: true},
		{url: "/local/path", err: true},
		{url: "s3:///plates", err: true},
	}

	for _, tc := range tests {
		loc, err := ParseURL(tc.url)

		if tc.err {
			assert.ErrorIs(t, err, ErrInvalidURL, tc.url)
			continue
		}

		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.bucket, loc.Bucket)
		assert.Equal(t, tc.prefix, loc.Prefix)
	}

	assert.True(t, IsURL("s3://x/y"))
	assert.False(t, IsURL("./data"))
	assert.Equal(t, "s3://data/plates", Location{Bucket: "data", Prefix: "plates"}.String())
}

func TestLocalPath(t *testing.T) {

	dir := filepath.Join("tmp", "out")

	p, err := localPath(dir, "plates", "plates/sub/c.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "c.jpg"), p)

	p, err = localPath(dir, "plates/a.jpg", "plates/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), p)

	_, err = localPath(dir, "plates", "plates/../../etc/passwd")
	assert.Error(t, err)

	// a prefix without a trailing slash stops at the path boundary
	_, err = localPath(dir, "plates", "plates2/x.jpg")
	assert.Error(t, err)

	p, err = localPath(dir, "plates/", "plates/x.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x.jpg"), p)
}

func TestCopyPrefixEscapingKey(t *testing.T) {

	bucket := newFakeBucket(map[string]string{
		"plates/a.jpg":         "aaa",
		"plates/b.jpg":         "bbb",
		"plates/../../outside": "x",
	})

	dir := t.TempDir()
	c := NewCopier(bucket, 2)

	_, err := c.CopyPrefix(context.Background(), "s3://data/plates", dir)
	require.Error(t, err)

	// no download was started before the bad key was found
	assert.Equal(t, 0, bucket.gets)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCopyPrefix(t *testing.T) {

	bucket := newFakeBucket(map[string]string{
		"plates/":          "",
		"plates/a.jpg":     "aaa",
		"plates/b.jpg":     "bbb",
		"plates/sub/c.jpg": "ccc",
		"plates/train.txt": "深A1234B5C,a.jpg\n",
		"plates2/x.jpg":    "xxx",
	})

	dir := t.TempDir()
	c := NewCopier(bucket, 2)

	n, err := c.CopyPrefix(context.Background(), "s3://data/plates", dir)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, bucket.gets)

	data, err := os.ReadFile(filepath.Join(dir, "sub", "c.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "ccc", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "train.txt"))
	require.NoError(t, err)
	assert.Equal(t, "深A1234B5C,a.jpg\n", string(data))

	_, err = c.CopyPrefix(context.Background(), "http://data/plates", dir)
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestCopyPrefixFetchError(t *testing.T) {

	bucket := newFakeBucket(map[string]string{
		"plates/a.jpg": "aaa",
		"plates/b.jpg": "bbb",
	})

	delete(bucket.objects, "plates/b.jpg")

	_, err := NewCopier(bucket, 1).CopyPrefix(context.Background(), "s3://data/plates", t.TempDir())
	assert.ErrorContains(t, err, "plates/b.jpg")
}
