// Package catalog implements the video catalog: uploads, listings, streaming
// and deletion of video assets on top of a repository and a storage backend.
package catalog

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/molpadia/molpalearn/internal/domain/apperr"
	"github.com/molpadia/molpalearn/internal/domain/entity"
	"github.com/molpadia/molpalearn/internal/domain/repository"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxUploadBytes = 500 << 20
	viewTimeout           = 5 * time.Second
)

// The content types accepted when no allow-list is configured.
var DefaultAllowedTypes = []string{
	"video/mp4",
	"video/webm",
	"video/ogg",
	"video/avi",
	"video/quicktime",
	"video/x-matroska",
	"video/x-ms-wmv",
}

type Options struct {
	MaxUploadBytes int64
	AllowedTypes   []string
	// Redirect clients to signed URLs of remote blobs instead of failing
	// with not implemented.
	RemoteRedirect bool
}

type Service struct {
	videos   repository.VideoRepository
	storage  repository.Storage
	log      logrus.FieldLogger
	validate *validator.Validate
	maxBytes int64
	allowed  map[string]bool
	redirect bool
	views    sync.WaitGroup
}

func NewService(videos repository.VideoRepository, storage repository.Storage, log logrus.FieldLogger, opts Options) *Service {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(opts.AllowedTypes) == 0 {
		opts.AllowedTypes = DefaultAllowedTypes
	}
	allowed := make(map[string]bool, len(opts.AllowedTypes))
	for _, t := range opts.AllowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Service{
		videos:   videos,
		storage:  storage,
		log:      log,
		validate: validate,
		maxBytes: opts.MaxUploadBytes,
		allowed:  allowed,
		redirect: opts.RemoteRedirect,
	}
}

// The active storage backend.
func (s *Service) StorageKind() entity.StorageKind { return s.storage.Kind() }

// Wait for in-flight view increments to finish.
func (s *Service) Wait() { s.views.Wait() }

func (s *Service) Get(ctx context.Context, id string) (*entity.Video, error) {
	id, err := entity.ParseVideoId(id)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

func (s *Service) find(ctx context.Context, id string) (*entity.Video, error) {
	v, err := s.videos.GetById(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "cannot look up video")
	}
	if v == nil {
		return nil, apperr.New(apperr.KindNotFound, "video not found")
	}
	return v, nil
}

func (s *Service) List(ctx context.Context, filter entity.VideoFilter, page entity.PageRequest) (*entity.Page, error) {
	if err := s.validate.Struct(page); err != nil {
		return nil, validationError(err)
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Subject = strings.TrimSpace(filter.Subject)
	items, total, err := s.videos.List(ctx, filter, page)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "cannot list videos")
	}
	return entity.NewPage(items, total, page), nil
}

// List the videos uploaded by the owner, without text search.
func (s *Service) ListByOwner(ctx context.Context, ownerId string, page entity.PageRequest) (*entity.Page, error) {
	if ownerId == "" {
		return nil, apperr.New(apperr.KindValidation, "owner ID must be required")
	}
	return s.List(ctx, entity.VideoFilter{OwnerId: ownerId}, page)
}

// Delete the video owned by the caller. The blob goes first; when it cannot
// be removed the record is kept so the failure stays visible.
func (s *Service) Delete(ctx context.Context, id string, who entity.Identity) error {
	if !who.IsTeacher() {
		return apperr.New(apperr.KindForbidden, "only teachers can delete videos")
	}
	id, err := entity.ParseVideoId(id)
	if err != nil {
		return err
	}
	v, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !v.OwnedBy(who) {
		return apperr.New(apperr.KindForbidden, "you can only delete your own videos")
	}
	log := s.log.WithFields(logrus.Fields{"video_id": v.Id, "filename": v.Filename})
	if _, err := s.storage.Delete(ctx, v.Filename); err != nil {
		log.WithError(err).Error("failed to delete video file")
		return apperr.Wrap(apperr.KindStorageIO, err, "cannot delete video file")
	}
	ok, err := s.videos.Delete(ctx, v.Id)
	if err != nil {
		log.WithError(err).Error("video file deleted but the record remains")
		return apperr.Wrap(apperr.KindInternal, err, "cannot delete video")
	}
	if !ok {
		return apperr.New(apperr.KindNotFound, "video not found")
	}
	log.Info("video deleted")
	return nil
}

// Count a view in the background. The caller never waits on the store.
func (s *Service) countView(id string) {
	s.views.Add(1)
	go func() {
		defer s.views.Done()
		ctx, cancel := context.WithTimeout(context.Background(), viewTimeout)
		defer cancel()
		if err := s.videos.IncrementViews(ctx, id); err != nil {
			s.log.WithError(err).WithField("video_id", id).Warn("failed to increment views")
		}
	}()
}

func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.Wrap(apperr.KindValidation, err, "invalid input")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.New(apperr.KindValidation, strings.Join(msgs, ", "))
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "max":
		if fe.Kind() == reflect.String {
			return name + " must be at most " + fe.Param() + " characters"
		}
		return name + " must be at most " + fe.Param()
	case "min":
		return name + " must be at least " + fe.Param()
	}
	return name + " is invalid"
}
