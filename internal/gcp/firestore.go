package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

// NewFirestoreClient creates a Firestore client authenticated with the service
// account key at credentialPath. An empty projectID is detected from the
// credential.
func NewFirestoreClient(ctx context.Context, projectID, credentialPath string) (*firestore.Client, error) {
	if credentialPath == "" {
		return nil, fmt.Errorf("credentialPath must be provided to create a firestore client")
	}
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}

	client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsFile(credentialPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}
