package app

import (
	"time"

	"github.com/molpadia/molpalearn/internal/domain/entity"
)

type VideoResponse struct {
	Id               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Subject          string    `json:"subject"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	ContentType      string    `json:"content_type"`
	FileSize         int64     `json:"file_size"`
	Storage          string    `json:"storage"`
	TeacherId        string    `json:"teacher_id"`
	TeacherName      string    `json:"teacher_name"`
	Views            int64     `json:"views"`
	CreatedAt        time.Time `json:"created_at"`
	Duration         *float64  `json:"duration,omitempty"`
	VideoURL         string    `json:"video_url"`
}

type PageResponse struct {
	Videos     []VideoResponse `json:"videos"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	TotalPages int             `json:"total_pages"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

func newVideoResponse(v *entity.Video, baseURL string) VideoResponse {
	return VideoResponse{
		Id:               v.Id,
		Title:            v.Title,
		Description:      v.Description,
		Subject:          v.Subject,
		Filename:         v.Filename,
		OriginalFilename: v.OriginalFilename,
		ContentType:      v.ContentType,
		FileSize:         v.FileSize,
		Storage:          string(v.Storage),
		TeacherId:        v.OwnerId,
		TeacherName:      v.OwnerName,
		Views:            v.Views,
		CreatedAt:        v.CreatedAt,
		Duration:         v.Duration,
		VideoURL:         baseURL + "/videos/stream/" + v.Id,
	}
}

func newPageResponse(p *entity.Page, baseURL string) PageResponse {
	videos := make([]VideoResponse, 0, len(p.Items))
	for _, v := range p.Items {
		videos = append(videos, newVideoResponse(v, baseURL))
	}
	return PageResponse{
		Videos:     videos,
		Total:      p.Total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: p.TotalPages,
	}
}
