package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/molpadia/molpalearn/internal/domain/entity"
	"github.com/molpadia/molpalearn/internal/domain/repository"
)

// MemoryVideoRepository keeps videos in process memory. Records returned are
// copies, so callers cannot mutate the stored state.
type MemoryVideoRepository struct {
	mu     sync.RWMutex
	videos map[string]*entity.Video
}

var _ repository.VideoRepository = (*MemoryVideoRepository)(nil)

func NewMemoryVideoRepository() *MemoryVideoRepository {
	return &MemoryVideoRepository{videos: make(map[string]*entity.Video)}
}

func (r *MemoryVideoRepository) Create(ctx context.Context, video *entity.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[video.Id]; ok {
		return fmt.Errorf("video ID %s already exists", video.Id)
	}
	v := *video
	r.videos[video.Id] = &v
	return nil
}

func (r *MemoryVideoRepository) GetById(ctx context.Context, id string) (*entity.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.videos[id]
	if !ok {
		return nil, nil
	}
	c := *v
	return &c, nil
}

func (r *MemoryVideoRepository) List(ctx context.Context, filter entity.VideoFilter, page entity.PageRequest) ([]*entity.Video, int64, error) {
	r.mu.RLock()
	all := make([]*entity.Video, 0, len(r.videos))
	for _, v := range r.videos {
		c := *v
		all = append(all, &c)
	}
	r.mu.RUnlock()
	items, total := paginate(all, filter, page)
	return items, total, nil
}

func (r *MemoryVideoRepository) IncrementViews(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return fmt.Errorf("video ID %s does not exist", id)
	}
	v.Views++
	return nil
}

func (r *MemoryVideoRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[id]; !ok {
		return false, nil
	}
	delete(r.videos, id)
	return true, nil
}
