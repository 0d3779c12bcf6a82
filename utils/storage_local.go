package utils

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploadDir is where the local provider keeps objects; the HTTP server
// serves it under /uploads when that provider is active.
func LocalUploadDir() string {
	dir := strings.TrimSpace(os.Getenv("UPLOAD_DIR"))
	if dir == "" {
		dir = "uploads"
	}
	return dir
}

func writeLocalObject(objectKey string, data []byte) error {
	if strings.Contains(objectKey, "..") {
		return &ValidationError{Field: "objectKey", Reason: "path traversal"}
	}
	fullPath := filepath.Join(LocalUploadDir(), filepath.FromSlash(objectKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(fullPath, data, 0o644)
}

// StoreObjectBytes writes an object to the configured storage provider and
// returns its public access URL. Local provider is for dev only; the served
// path is mounted by the HTTP server as /uploads.
func StoreObjectBytes(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	switch GetStorageProvider() {
	case StorageProviderLocal:
		if err := writeLocalObject(objectKey, data); err != nil {
			return "", err
		}
		return "/uploads/" + objectKey, nil
	default:
		if err := UploadBytesToGCS(ctx, objectKey, data, contentType); err != nil {
			return "", err
		}
		return BuildObjectAccessURL(objectKey), nil
	}
}

// DeleteObject removes an object from the configured storage provider.
func DeleteObject(ctx context.Context, objectKey string) error {
	switch GetStorageProvider() {
	case StorageProviderLocal:
		fullPath := filepath.Join(LocalUploadDir(), filepath.FromSlash(objectKey))
		if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	default:
		return DeleteObjectFromGCS(ctx, objectKey)
	}
}
