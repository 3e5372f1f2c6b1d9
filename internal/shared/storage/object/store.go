package object

import (
	"context"
	"fmt"
	"io"
	"path"

	"resumind-backend/internal/shared/util"
)

// ObjectStore saves and retrieves binary artifacts addressed by storage key.
type ObjectStore interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	// URI returns a stable reference to the object stored under storageKey.
	URI(storageKey string) string
}

// PreviewKey is the storage key of the rendered preview image for an analysis.
func PreviewKey(analysisID string) string {
	return path.Join("previews", analysisID+".png")
}

// DocumentKey is the storage key of the uploaded original document for an analysis.
func DocumentKey(analysisID, fileName string) (string, error) {
	if fileName == "" {
		fileName = "document"
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join("documents", analysisID, name), nil
}
