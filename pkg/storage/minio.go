package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	minioSDK "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix namespaces keys inside the bucket, e.g. "submissions/".
	Prefix   string
	Insecure bool
}

type Minio struct {
	client *minioSDK.Client
	bucket string
	prefix string
	log    *zap.SugaredLogger
}

// NewMinio connects to the endpoint and creates the bucket when missing.
func NewMinio(ctx context.Context, opts MinioOptions, log *zap.SugaredLogger) (*Minio, error) {
	mo := &minioSDK.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	}
	if opts.Insecure {
		mo.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	client, err := minioSDK.New(opts.Endpoint, mo)
	if err != nil {
		return nil, fmt.Errorf("connect to minio: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minioSDK.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
		log.Infow("bucket created", "bucket", opts.Bucket)
	}

	return &Minio{client: client, bucket: opts.Bucket, prefix: opts.Prefix, log: log}, nil
}

func (m *Minio) Backend() string { return "minio" }

func (m *Minio) key(ref string) string {
	return m.prefix + SafeName(ref)
}

func (m *Minio) Put(ctx context.Context, name, mimeType string, r io.Reader, size int64) (Object, error) {
	name = SafeName(name)
	_, err := m.client.StatObject(ctx, m.bucket, m.key(name), minioSDK.StatObjectOptions{})
	switch {
	case err == nil:
		return Object{}, ErrExists
	case !isNoSuchKey(err):
		return Object{}, fmt.Errorf("stat %s: %w", name, err)
	}
	info, err := m.client.PutObject(ctx, m.bucket, m.key(name), r, size, minioSDK.PutObjectOptions{
		ContentType: mimeOr(mimeType, name),
	})
	if err != nil {
		return Object{}, fmt.Errorf("put %s: %w", name, err)
	}
	return Object{
		Key:       name,
		Name:      name,
		MimeType:  mimeOr(mimeType, name),
		Size:      info.Size,
		CreatedAt: info.LastModified,
	}, nil
}

func (m *Minio) Get(ctx context.Context, ref string) (io.ReadCloser, Object, error) {
	name := SafeName(ref)
	stat, err := m.client.StatObject(ctx, m.bucket, m.key(name), minioSDK.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, Object{}, ErrNotFound
		}
		return nil, Object{}, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, m.key(name), minioSDK.GetObjectOptions{})
	if err != nil {
		return nil, Object{}, err
	}
	return obj, Object{
		Key:       name,
		Name:      name,
		MimeType:  mimeOr(stat.ContentType, name),
		Size:      stat.Size,
		CreatedAt: stat.LastModified,
	}, nil
}

// Delete stats first because RemoveObject reports success for missing keys.
func (m *Minio) Delete(ctx context.Context, ref string) error {
	if _, err := m.client.StatObject(ctx, m.bucket, m.key(ref), minioSDK.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			m.log.Warnw("delete of missing object", "backend", "minio", "ref", ref)
			return nil
		}
		return err
	}
	return m.client.RemoveObject(ctx, m.bucket, m.key(ref), minioSDK.RemoveObjectOptions{})
}

func (m *Minio) List(ctx context.Context, prefix string) ([]Object, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []Object
	for obj := range m.client.ListObjects(ctx, m.bucket, minioSDK.ListObjectsOptions{
		Prefix:    m.prefix + prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, m.prefix)
		out = append(out, Object{
			Key:       name,
			Name:      name,
			MimeType:  mimeOr(obj.ContentType, name),
			Size:      obj.Size,
			CreatedAt: obj.LastModified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Minio) Ping(ctx context.Context) error {
	ok, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s missing", m.bucket)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	code := minioSDK.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}
