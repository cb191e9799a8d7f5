package catalog

import (
	"context"
	"io"
	"mime"
	"strings"

	"github.com/molpadia/molpalearn/internal/domain/apperr"
	"github.com/molpadia/molpalearn/internal/domain/entity"
	"github.com/sirupsen/logrus"
)

// The metadata submitted along with the video content.
type UploadInput struct {
	Title            string `json:"title" validate:"required,max=200"`
	Description      string `json:"description" validate:"max=2000"`
	Subject          string `json:"subject" validate:"max=2000"`
	OriginalFilename string `json:"filename"`
	ContentType      string `json:"content_type"`
}

// Upload the content and register it in the catalog. The record is written
// only once the blob is stored, so no record ever points at a missing blob.
func (s *Service) Upload(ctx context.Context, in UploadInput, content io.Reader, who entity.Identity) (*entity.Video, error) {
	if !who.IsTeacher() {
		return nil, apperr.New(apperr.KindForbidden, "only teachers can upload videos")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Subject = strings.TrimSpace(in.Subject)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	contentType, ok := s.allowedType(in.ContentType)
	if !ok {
		return nil, apperr.Newf(apperr.KindUnsupportedMediaType, "unsupported video type %q", in.ContentType)
	}

	blob, err := s.storage.Save(ctx, content, in.OriginalFilename, contentType, s.maxBytes)
	if err != nil {
		return nil, err
	}
	log := s.log.WithFields(logrus.Fields{"filename": blob.Name, "size": blob.Size})
	if blob.Size == 0 {
		if _, err := s.storage.Delete(ctx, blob.Name); err != nil {
			log.WithError(err).Warn("failed to remove empty upload")
		}
		return nil, apperr.New(apperr.KindValidation, "video file is empty")
	}

	v := entity.NewVideo(entity.NewVideoId(), in.Title, in.Description, in.Subject, *blob, contentType, who)
	if err := s.videos.Create(ctx, v); err != nil {
		// The blob is left behind for a later sweep.
		log.WithError(err).Error("failed to save video, orphaned file remains")
		return nil, apperr.Wrap(apperr.KindInternal, err, "cannot save video")
	}
	log.WithFields(logrus.Fields{"video_id": v.Id, "owner_id": v.OwnerId}).Info("video uploaded")
	return v, nil
}

// Normalize the declared content type and check it against the allow-list.
func (s *Service) allowedType(declared string) (string, bool) {
	t, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return "", false
	}
	return t, s.allowed[t]
}
