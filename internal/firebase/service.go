package firebase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"buildinghub_backend/internal/config"
)

var errEmptyToken = errors.New("ID token must not be empty")

// FirebaseService verifies the ID tokens the mobile and dashboard clients
// obtain from Firebase Authentication.
type FirebaseService struct {
	authClient *auth.Client
	logger     *zap.Logger
}

// NewFirebaseService initializes the Firebase Admin SDK from the service
// account key in cfg.
func NewFirebaseService(cfg *config.Config, logger *zap.Logger) (*FirebaseService, error) {
	if cfg.FirebaseServiceAccountKeyPath == "" {
		return nil, fmt.Errorf("firebase service account key path is required")
	}
	keyPath := filepath.Clean(cfg.FirebaseServiceAccountKeyPath)

	var conf *firebase.Config
	if cfg.FirebaseProjectID != "" {
		conf = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}
	ctx := context.Background()
	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsFile(keyPath))
	if err != nil {
		logger.Error("Failed to initialize Firebase Admin SDK app", zap.Error(err), zap.String("keyPath", keyPath))
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firebase Auth client: %w", err)
	}

	logger.Info("Firebase Admin SDK initialized", zap.String("projectID", cfg.FirebaseProjectID))
	return &FirebaseService{authClient: authClient, logger: logger.Named("firebase")}, nil
}

// VerifyIDToken checks the signature and expiry of a Firebase ID token.
func (s *FirebaseService) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if idToken == "" {
		return nil, errEmptyToken
	}
	token, err := s.authClient.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Debug("Firebase ID token rejected", zap.Error(err))
		return nil, fmt.Errorf("failed to verify Firebase ID token: %w", err)
	}
	return token, nil
}
