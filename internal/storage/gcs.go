package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
)

type GCSStore struct {
	Client *gcs.Client
	Bucket string
}

func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &GCSStore{Client: client, Bucket: bucket}, nil
}

func (s *GCSStore) Tag() string { return "gcs" }

func (s *GCSStore) Upload(ctx context.Context, name string, data []byte) (*Object, error) {
	w := s.Client.Bucket(s.Bucket).Object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("write gs://%s/%s: %w", s.Bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close gs://%s/%s: %w", s.Bucket, name, err)
	}
	return &Object{Name: name, Location: "gs://" + s.Bucket + "/" + name}, nil
}

func (s *GCSStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, name, err := ParseGCSLocation(location)
	if err != nil {
		return nil, err
	}
	r, err := s.Client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", location, err)
	}
	return r, nil
}

func (s *GCSStore) Close() error { return s.Client.Close() }

// ParseGCSLocation splits gs://bucket/name.
func ParseGCSLocation(location string) (bucket, name string, err error) {
	rest, ok := strings.CutPrefix(location, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gcs location: %q", location)
	}
	bucket, name, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || name == "" {
		return "", "", fmt.Errorf("not a gcs location: %q", location)
	}
	return bucket, name, nil
}
