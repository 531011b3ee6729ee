// Package stash loads bulk-import batches of canonical annotations from
// object storage.
package stash

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Loader struct {
	client *minio.Client
	bucket string
}

// NewLoader connects to the object store holding stash batches.
func NewLoader(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Loader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}
	return &Loader{client: client, bucket: bucket}, nil
}

// Load fetches an object and decodes it as a JSON array of canonical
// annotation records.
func (l *Loader) Load(ctx context.Context, objectName string) ([]json.RawMessage, error) {
	object, err := l.client.GetObject(ctx, l.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get stash object %s: %w", objectName, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("read stash object %s: %w", objectName, err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode stash object %s: %w", objectName, err)
	}
	return records, nil
}
