// Package cloudstore keeps backend tables in Cloud Firestore, one
// collection per table and one document per row keyed by the row id.
package cloudstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/option"
)

// Connect opens a Firestore client for projectID using the service account
// key at credentialsFile.
func Connect(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("firestore credentials file is not set")
	}

	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, cfg, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("get firestore client: %w", err)
	}
	return client, nil
}
