package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	headErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

var errNoSuchKey = &smithy.GenericAPIError{Code: "NoSuchKey"}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b)), ContentLength: aws.Int64(int64(len(b)))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, src, _ := strings.Cut(aws.ToString(in.CopySource), "/")
	src, _ = url.PathUnescape(src)
	b, ok := f.objects[src]
	if !ok {
		return nil, errNoSuchKey
	}
	f.objects[aws.ToString(in.Key)] = append([]byte(nil), b...)
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.objects {
		out = append(out, k)
	}
	return out
}

func newS3(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	s := NewS3StoreWithClient(fake, "uploads")
	s.spoolDir = t.TempDir()
	return s, fake
}

func TestS3Store_StagePromoteOpen(t *testing.T) {
	s, fake := newS3(t)
	ctx := context.Background()

	staged, err := s.Stage(ctx, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), staged.Size)
	assert.Equal(t, "s3://uploads/"+staged.Name, staged.Path)

	obj, err := s.Promote(ctx, staged, "txt")
	require.NoError(t, err)
	assert.Equal(t, []string{staged.Name + ".txt"}, fake.keys())

	rc, size, err := s.Open(ctx, obj.Path)
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "hello", string(b))
	assert.Equal(t, int64(5), size)
}

func TestS3Store_StageFailure(t *testing.T) {
	s, fake := newS3(t)
	fake.putErr = errors.New("unavailable")

	_, err := s.Stage(context.Background(), strings.NewReader("x"))
	require.Error(t, err)
	assert.Empty(t, fake.keys())
}

func TestS3Store_PromoteNoClobber(t *testing.T) {
	s, fake := newS3(t)
	ctx := context.Background()

	staged, err := s.Stage(ctx, strings.NewReader("new"))
	require.NoError(t, err)
	fake.objects[staged.Name+".png"] = []byte("old")

	_, err = s.Promote(ctx, staged, "png")
	require.ErrorIs(t, err, ErrExists)
	assert.Equal(t, []string{staged.Name + ".png"}, fake.keys())
	assert.Equal(t, "old", string(fake.objects[staged.Name+".png"]))
}

func TestS3Store_RenameRemoveExists(t *testing.T) {
	s, fake := newS3(t)
	ctx := context.Background()
	fake.objects["a.txt"] = []byte("a")
	fake.objects["b.txt"] = []byte("b")

	_, err := s.Rename(ctx, "s3://uploads/a.txt", "b.txt")
	require.ErrorIs(t, err, ErrExists)

	obj, err := s.Rename(ctx, "s3://uploads/a.txt", "c.txt")
	require.NoError(t, err)
	assert.Equal(t, "s3://uploads/c.txt", obj.Path)

	_, err = s.Rename(ctx, "s3://uploads/a.txt", "d.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Exists(ctx, obj.Path)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Remove(ctx, obj.Path))
	assert.ErrorIs(t, s.Remove(ctx, obj.Path), ErrNotFound)

	_, _, err = s.Open(ctx, obj.Path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_ForeignPath(t *testing.T) {
	s, _ := newS3(t)

	_, _, err := s.Open(context.Background(), "s3://other/a.txt")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, _, err = s.Open(context.Background(), "/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidName)

	p, err := s.PathFor("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "s3://uploads/a.txt", p)
}

func TestS3Store_Ping(t *testing.T) {
	s, fake := newS3(t)
	require.NoError(t, s.Ping(context.Background()))

	fake.headErr = &smithy.GenericAPIError{Code: "NotFound"}
	assert.Error(t, s.Ping(context.Background()))
}

func TestNewS3Store_EmptyBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{})
	assert.Error(t, err)
}

func TestNewS3Store_UsesConfiguredEndpoint(t *testing.T) {
	var opts s3.Options
	orig := newS3ClientFromConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) S3API {
		for _, fn := range optFns {
			fn(&opts)
		}
		return newFakeS3()
	}
	defer func() { newS3ClientFromConfig = orig }()

	s, err := NewS3Store(context.Background(), S3Config{
		Region: "us-east-1", AccessKey: "k", SecretKey: "s", Bucket: "b", BaseEndpoint: "http://minio:9000",
	})
	require.NoError(t, err)
	assert.Equal(t, "b", s.bucket)
	assert.Equal(t, "http://minio:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}
