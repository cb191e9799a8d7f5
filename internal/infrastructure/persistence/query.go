package persistence

import (
	"strings"

	"github.com/molpadia/molpalearn/internal/domain/entity"
	"golang.org/x/exp/slices"
)

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Determine whether the video matches the filter.
func matchFilter(v *entity.Video, f entity.VideoFilter) bool {
	if f.OwnerId != "" && v.OwnerId != f.OwnerId {
		return false
	}
	if f.Search != "" && !containsFold(v.Title, f.Search) && !containsFold(v.Description, f.Search) {
		return false
	}
	if f.Subject != "" && !containsFold(v.Subject, f.Subject) {
		return false
	}
	return true
}

// Sort the most recent first, ties broken by ID.
func sortVideos(videos []*entity.Video) {
	slices.SortStableFunc(videos, func(a, b *entity.Video) int {
		switch {
		case a.CreatedAt.After(b.CreatedAt):
			return -1
		case a.CreatedAt.Before(b.CreatedAt):
			return 1
		}
		return strings.Compare(a.Id, b.Id)
	})
}

// Filter, sort and slice out the requested page.
func paginate(videos []*entity.Video, f entity.VideoFilter, page entity.PageRequest) ([]*entity.Video, int64) {
	matched := make([]*entity.Video, 0, len(videos))
	for _, v := range videos {
		if matchFilter(v, f) {
			matched = append(matched, v)
		}
	}
	sortVideos(matched)
	total := int64(len(matched))
	start := page.Offset()
	if start < 0 || start >= len(matched) {
		return []*entity.Video{}, total
	}
	end := start + page.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total
}
