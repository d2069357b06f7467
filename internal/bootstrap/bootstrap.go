// Package bootstrap provides dependency initialization for the upload
// gateway.
package bootstrap

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/dudumedia/kodo-upload-api/internal/config"
	"github.com/dudumedia/kodo-upload-api/internal/kodo"
	"github.com/dudumedia/kodo-upload-api/internal/object"
	"github.com/dudumedia/kodo-upload-api/internal/persistent"
	"github.com/dudumedia/kodo-upload-api/internal/upload"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	UploadService *upload.Service
	TokenIssuer   *kodo.TokenIssuer
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	creds, err := kodo.NewCredentials(cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("create credentials: %w", err)
	}

	issuer := kodo.NewTokenIssuer(creds, cfg.BasePolicy())

	client, err := kodo.NewClient(creds)
	if err != nil {
		return nil, fmt.Errorf("create provider client: %w", err)
	}

	objects, tasks, err := initRepositories(cfg, logger)
	if err != nil {
		return nil, err
	}

	svc := upload.NewService(
		objects,
		tasks,
		client,
		upload.Config{
			Bucket:    cfg.Bucket,
			Domain:    cfg.Domain,
			Pipeline:  cfg.Pipeline,
			NotifyURL: cfg.NotifyURL,
		},
		logger,
	)

	return &Dependencies{
		UploadService: svc,
		TokenIssuer:   issuer,
	}, nil
}

// initRepositories creates the record stores based on configuration.
func initRepositories(cfg *config.Config, logger *slog.Logger) (object.Repository, persistent.Repository, error) {
	if cfg.MySQLEnabled() {
		db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		objects, err := object.NewGormRepository(db)
		if err != nil {
			return nil, nil, fmt.Errorf("create object repository: %w", err)
		}
		tasks, err := persistent.NewGormRepository(db)
		if err != nil {
			return nil, nil, fmt.Errorf("create task repository: %w", err)
		}
		logger.Info("mysql record store configured")
		return objects, tasks, nil
	}

	logger.Info("in-memory record store configured")
	return object.NewMemoryRepository(), persistent.NewMemoryRepository(), nil
}
