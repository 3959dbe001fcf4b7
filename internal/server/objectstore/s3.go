package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Config describes an S3-compatible bucket (AWS or MinIO).
type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) S3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Store keeps objects as keys in one bucket. Paths have the form
// s3://<bucket>/<key>.
type S3Store struct {
	client S3API
	bucket string
	// spoolDir holds request bodies until their size is known.
	spoolDir string
}

// NewS3Store builds a client from static credentials. A non-empty
// BaseEndpoint switches to path-style addressing for MinIO.
func NewS3Store(ctx context.Context, c S3Config) (*S3Store, error) {
	if c.Bucket == "" {
		return nil, errors.New("s3 bucket is empty")
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithClient(client, c.Bucket), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket, spoolDir: os.TempDir()}
}

func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func (s *S3Store) PathFor(name string) (string, error) {
	if err := ValidName(name); err != nil {
		return "", err
	}
	return s.path(name), nil
}

func (s *S3Store) Stage(ctx context.Context, r io.Reader) (*Staged, error) {
	spool, err := os.CreateTemp(s.spoolDir, "filekeeper-spool-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	n, err := io.Copy(spool, ctxReader{ctx: ctx, r: r})
	if err != nil {
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind spool: %w", err)
	}

	name := RandomName()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(name),
		Body:          spool,
		ContentLength: aws.Int64(n),
	})
	if err != nil {
		return nil, fmt.Errorf("put staged object: %w", err)
	}

	return &Staged{Name: name, Path: s.path(name), Size: n}, nil
}

func (s *S3Store) Promote(ctx context.Context, staged *Staged, ext string) (*Object, error) {
	name := staged.Name + "." + ext
	if err := ValidName(name); err != nil {
		_ = s.deleteKey(ctx, staged.Name)
		return nil, err
	}

	obj, err := s.move(ctx, staged.Name, name)
	if err != nil {
		_ = s.deleteKey(ctx, staged.Name)
		return nil, err
	}
	return obj, nil
}

func (s *S3Store) Open(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	key, err := s.key(path)
	if err != nil {
		return nil, 0, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, mapS3Error(err)
	}

	return out.Body, aws.ToInt64(out.ContentLength), nil
}

func (s *S3Store) Exists(ctx context.Context, path string) (bool, error) {
	key, err := s.key(path)
	if err != nil {
		return false, err
	}
	return s.exists(ctx, key)
}

func (s *S3Store) Rename(ctx context.Context, oldPath, newName string) (*Object, error) {
	if err := validInternalName(newName); err != nil {
		return nil, err
	}
	key, err := s.key(oldPath)
	if err != nil {
		return nil, err
	}
	return s.move(ctx, key, newName)
}

func (s *S3Store) Remove(ctx context.Context, path string) error {
	key, err := s.key(path)
	if err != nil {
		return err
	}

	ok, err := s.exists(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return s.deleteKey(ctx, key)
}

// move copies src to dst and deletes src. S3 has no rename, so the target is
// checked with HeadObject first.
func (s *S3Store) move(ctx context.Context, src, dst string) (*Object, error) {
	taken, err := s.exists(ctx, dst)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrExists
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(s.bucket + "/" + url.PathEscape(src)),
	})
	if err != nil {
		return nil, mapS3Error(err)
	}

	if err := s.deleteKey(ctx, src); err != nil {
		_ = s.deleteKey(ctx, dst)
		return nil, err
	}

	return &Object{Name: dst, Path: s.path(dst)}, nil
}

func (s *S3Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(mapS3Error(err), ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *S3Store) deleteKey(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *S3Store) path(key string) string {
	return "s3://" + s.bucket + "/" + key
}

func (s *S3Store) key(path string) (string, error) {
	prefix := "s3://" + s.bucket + "/"
	if !strings.HasPrefix(path, prefix) {
		return "", ErrInvalidName
	}
	key := strings.TrimPrefix(path, prefix)
	if err := validInternalName(key); err != nil {
		return "", err
	}
	return key, nil
}

func mapS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		}
	}
	return err
}
