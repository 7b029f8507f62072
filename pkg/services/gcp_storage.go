package services

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
)

var (
	storageClient *storage.Client
	bucketName    string
)

// InitGCPStorage initializes the GCP Storage client
func InitGCPStorage() error {
	bucketName = os.Getenv("GCP_BUCKET_NAME")
	if bucketName == "" {
		return fmt.Errorf("GCP_BUCKET_NAME not set")
	}

	ctx := context.Background()
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create GCP storage client: %v", err)
	}

	storageClient = client
	return nil
}

// GCSEnabled reports whether InitGCPStorage succeeded.
func GCSEnabled() bool {
	return storageClient != nil
}

// UploadObject writes data to the bucket under name and returns its URL
func UploadObject(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if storageClient == nil {
		return "", fmt.Errorf("GCP storage client not initialized")
	}

	writer := storageClient.Bucket(bucketName).Object(name).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return "", fmt.Errorf("GCS upload failed: %v", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("GCS upload finalization failed: %v", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucketName, name), nil
}

// CloseGCPStorage releases the storage client
func CloseGCPStorage() {
	if storageClient != nil {
		storageClient.Close()
	}
}
