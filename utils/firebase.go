// File: utils/firebase.go
package utils

import (
	"context"
	"log"
	"os"

	"handyhub/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMClient is the shared messaging client. Nil when no service account is
// configured; push delivery is optional and sends become no-ops.
var FCMClient *messaging.Client

// FirebaseInit initializes the Firebase app and messaging client from the
// service-account file. A missing file disables push instead of aborting
// startup; a present-but-broken credential is still fatal.
func FirebaseInit() {
	if _, err := os.Stat(config.FirebaseServiceAccountKeyPath); err != nil {
		log.Printf("firebase: no service account at %s, push notifications disabled",
			config.FirebaseServiceAccountKeyPath)
		return
	}

	ctx := context.Background()
	opt := option.WithCredentialsFile(config.FirebaseServiceAccountKeyPath)

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		log.Fatalf("firebase: error initializing app: %v", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		log.Fatalf("firebase: error getting Messaging client: %v", err)
	}

	FCMClient = client
}
