package repository

import (
	"context"

	"github.com/molpadia/molpalearn/internal/domain/entity"
)

type VideoRepository interface {
	// Save a new video to the persistence. Fails if the ID already exists.
	Create(ctx context.Context, video *entity.Video) error
	// Get the video by the video ID, nil if it does not exist.
	GetById(ctx context.Context, id string) (*entity.Video, error)
	// List videos matching the filter, most recent first.
	List(ctx context.Context, filter entity.VideoFilter, page entity.PageRequest) ([]*entity.Video, int64, error)
	// Atomically add one to the view counter of the video.
	IncrementViews(ctx context.Context, id string) error
	// Delete the video, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
}
