package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/molpadia/molpalearn/internal/domain/apperr"
)

type StorageKind string

const (
	StorageLocal StorageKind = "local"
	StorageS3    StorageKind = "s3"
)

func (k StorageKind) Valid() bool {
	return k == StorageLocal || k == StorageS3
}

// The catalog entity of an uploaded video.
type Video struct {
	Id               string      `json:"id" bson:"_id" dynamodbav:"Id"`
	Title            string      `json:"title" bson:"title" dynamodbav:"Title"`
	Description      string      `json:"description" bson:"description" dynamodbav:"Description"`
	Subject          string      `json:"subject" bson:"subject" dynamodbav:"Subject"`
	Filename         string      `json:"filename" bson:"filename" dynamodbav:"Filename"`
	OriginalFilename string      `json:"original_filename" bson:"original_filename" dynamodbav:"OriginalFilename"`
	ContentType      string      `json:"content_type" bson:"content_type" dynamodbav:"ContentType"`
	FileSize         int64       `json:"file_size" bson:"file_size" dynamodbav:"FileSize"`
	Storage          StorageKind `json:"storage" bson:"storage" dynamodbav:"Storage"`
	OwnerId          string      `json:"teacher_id" bson:"owner_id" dynamodbav:"OwnerId"`
	OwnerName        string      `json:"teacher_name" bson:"owner_name" dynamodbav:"OwnerName"`
	Views            int64       `json:"views" bson:"views" dynamodbav:"Views"`
	CreatedAt        time.Time   `json:"created_at" bson:"created_at" dynamodbav:"CreatedAt"`
	// Length in seconds, when known. Uploads do not inspect the media.
	Duration         *float64    `json:"duration,omitempty" bson:"duration,omitempty" dynamodbav:"Duration,omitempty"`
}

func NewVideo(id, title, description, subject string, blob Blob, contentType string, owner Identity) *Video {
	return &Video{
		Id:               id,
		Title:            title,
		Description:      description,
		Subject:          subject,
		Filename:         blob.Name,
		OriginalFilename: blob.OriginalName,
		ContentType:      contentType,
		FileSize:         blob.Size,
		Storage:          blob.Storage,
		OwnerId:          owner.Id,
		OwnerName:        owner.Name,
		CreatedAt:        time.Now().UTC(),
	}
}

// Determine whether the identity uploaded the video.
func (v *Video) OwnedBy(who Identity) bool {
	return v.OwnerId != "" && v.OwnerId == who.Id
}

// A blob persisted by a storage backend under a generated name.
type Blob struct {
	Name         string
	OriginalName string
	Size         int64
	Storage      StorageKind
}

// Generate a new video identifier.
func NewVideoId() string { return uuid.NewString() }

// Parse the video identifier from untrusted input. Malformed identifiers can
// never match a stored video, so they are reported as not found.
func ParseVideoId(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", apperr.New(apperr.KindNotFound, "video not found")
	}
	return id.String(), nil
}
