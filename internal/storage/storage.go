// Package storage keeps uploaded spreadsheets and result artifacts in an
// object store and addresses them by location URL.
package storage

import (
	"context"
	"fmt"
	"io"
)

// Object is a stored artifact. Location is what other components persist
// and hand back to Open.
type Object struct {
	Name     string
	Location string
}

type ObjectStore interface {
	Upload(ctx context.Context, name string, data []byte) (*Object, error)
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	// Tag identifies the backend in audit entries.
	Tag() string
}

// ReadAll fetches a whole object.
func ReadAll(ctx context.Context, s ObjectStore, location string) ([]byte, error) {
	rc, err := s.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return data, nil
}
