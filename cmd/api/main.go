package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/molpadia/molpalearn/internal/app"
	"github.com/molpadia/molpalearn/internal/catalog"
	"github.com/molpadia/molpalearn/internal/config"
	"github.com/molpadia/molpalearn/internal/domain/entity"
	"github.com/molpadia/molpalearn/internal/domain/repository"
	"github.com/molpadia/molpalearn/internal/infrastructure/persistence"
	"github.com/molpadia/molpalearn/internal/infrastructure/storage"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadArgs(os.Getenv, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	log, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot set up logging: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	var sess *session.Session
	if cfg.StorageBackend == entity.StorageS3 || cfg.CatalogBackend == config.CatalogDynamoDB {
		var err error
		sess, err = session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			return fmt.Errorf("failed to create aws session: %w", err)
		}
	}

	store, err := newStorage(cfg, sess, log)
	if err != nil {
		return err
	}
	videos, closeVideos, err := newVideoRepository(ctx, cfg, sess)
	if err != nil {
		return err
	}
	defer closeVideos()

	svc := catalog.NewService(videos, store, log, catalog.Options{
		MaxUploadBytes: cfg.MaxUploadBytes(),
		AllowedTypes:   cfg.AllowedVideoTypes,
		RemoteRedirect: cfg.S3Redirect,
	})
	defer svc.Wait()

	srv := &http.Server{
		Handler: app.NewHandler(svc, app.HeaderIdentity{}, log, app.Options{
			PublicBaseURL:  cfg.PublicBaseURL,
			AllowedOrigins: cfg.AllowedOrigins(),
		}),
		Addr:              cfg.Addr,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":    cfg.Addr,
			"storage": store.Kind(),
			"catalog": cfg.CatalogBackend,
		}).Info("the server started")
		if cfg.CertFile != "" && cfg.CertKey != "" {
			errc <- srv.ListenAndServeTLS(cfg.CertFile, cfg.CertKey)
		} else {
			errc <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newStorage(cfg *config.Config, sess *session.Session, log *logrus.Logger) (repository.Storage, error) {
	switch cfg.StorageBackend {
	case entity.StorageS3:
		// The endpoint override points at S3 compatible stores such as MinIO.
		client := s3.New(sess, &aws.Config{
			Endpoint:         nilIfEmpty(cfg.S3Endpoint),
			S3ForcePathStyle: aws.Bool(cfg.S3ForcePathStyle),
		})
		return storage.NewS3WithClient(client, cfg.S3Bucket, cfg.S3PresignExpiry, log), nil
	default:
		local, err := storage.NewLocal(cfg.LocalStoragePath)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare local storage: %w", err)
		}
		return local, nil
	}
}

func newVideoRepository(ctx context.Context, cfg *config.Config, sess *session.Session) (repository.VideoRepository, func(), error) {
	switch cfg.CatalogBackend {
	case config.CatalogMongo:
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := persistence.ConnectMongo(cctx, cfg.MongoURL)
		if err != nil {
			return nil, nil, err
		}
		repo, err := persistence.NewMongoVideoRepository(cctx, client.Database(cfg.DatabaseName))
		if err != nil {
			client.Disconnect(context.Background())
			return nil, nil, err
		}
		return repo, func() { client.Disconnect(context.Background()) }, nil
	case config.CatalogDynamoDB:
		return persistence.NewDynamoDBVideoRepository(sess, cfg.DynamoDBTable), func() {}, nil
	default:
		return persistence.NewMemoryVideoRepository(), func() {}, nil
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
