package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"RbxFM/config"
	"RbxFM/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	snapshotPrefix = "playlists/"
	latestObject   = snapshotPrefix + "latest.json"
)

// objectClient is the subset of *minio.Client used for snapshots.
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// SnapshotStore keeps copies of the playlist document in a MinIO bucket.
type SnapshotStore struct {
	client objectClient
	bucket string
	region string
	now    func() time.Time
}

// NewMinioClient creates a MinIO client from the configuration.
func NewMinioClient(cfg *config.Config) (*minio.Client, error) {
	if cfg.MinioEndpoint == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT is not set")
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return client, nil
}

// NewSnapshotStore wraps client for the given bucket.
func NewSnapshotStore(client objectClient, bucket, region string) *SnapshotStore {
	return &SnapshotStore{client: client, bucket: bucket, region: region, now: time.Now}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *SnapshotStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	logger.Info("created snapshot bucket", logger.String("bucket", s.bucket))
	return nil
}

// Backup creates the bucket if needed, then uploads document as a
// timestamped snapshot and as latest.json.
// It returns the timestamped object name.
func (s *SnapshotStore) Backup(ctx context.Context, document []byte) (string, error) {
	if err := s.EnsureBucket(ctx); err != nil {
		return "", err
	}

	name := snapshotPrefix + "playlist-" + s.now().UTC().Format("20060102T150405Z") + ".json"
	for _, object := range []string{name, latestObject} {
		_, err := s.client.PutObject(ctx, s.bucket, object, bytes.NewReader(document), int64(len(document)), minio.PutObjectOptions{
			ContentType: "application/json",
		})
		if err != nil {
			return "", fmt.Errorf("upload %s: %w", object, err)
		}
	}

	logger.Info("playlist snapshot uploaded",
		logger.String("bucket", s.bucket),
		logger.String("object", name),
		logger.Int("bytes", len(document)))
	return name, nil
}

// Fetch downloads a snapshot. An empty name means latest.json; bare file
// names are looked up under the snapshot prefix.
func (s *SnapshotStore) Fetch(ctx context.Context, name string) ([]byte, error) {
	object := ObjectName(name)

	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", object, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", object, err)
	}
	return data, nil
}

// ObjectName resolves a user supplied snapshot name to an object key.
func ObjectName(name string) string {
	if name == "" {
		return latestObject
	}
	if path.Dir(name) == "." {
		return snapshotPrefix + name
	}
	return name
}
