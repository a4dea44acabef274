package indexwriter

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
)

// MinioBucket implements ObjectBucket on MinIO or any S3-compatible store.
type MinioBucket struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioBucket creates a MinIO-backed object bucket.
func NewMinioBucket(client *minio.Client, bucket, rootPrefix string) *MinioBucket {
	return &MinioBucket{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (b *MinioBucket) key(name string) string {
	return path.Join(b.prefix, name)
}

func (b *MinioBucket) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, b.key(key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

func (b *MinioBucket) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.key(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return data, nil
}

func (b *MinioBucket) Delete(ctx context.Context, key string) error {
	return b.client.RemoveObject(ctx, b.bucket, b.key(key), minio.RemoveObjectOptions{})
}
