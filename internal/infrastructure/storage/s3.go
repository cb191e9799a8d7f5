package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/molpadia/molpalearn/internal/domain/apperr"
	"github.com/molpadia/molpalearn/internal/domain/entity"
	"github.com/molpadia/molpalearn/internal/domain/repository"
	"github.com/sirupsen/logrus"
)

const DefaultPresignExpiry = time.Hour

// S3 stores blobs as objects of a bucket in AWS S3 or any S3 compatible
// object storage.
type S3 struct {
	client   s3iface.S3API
	uploader *s3manager.Uploader
	bucket   string
	expiry   time.Duration
	log      logrus.FieldLogger
	newName  func(original string) string
}

var _ repository.Storage = (*S3)(nil)

func NewS3(sess *session.Session, bucket string, expiry time.Duration, log logrus.FieldLogger) *S3 {
	return NewS3WithClient(s3.New(sess), bucket, expiry, log)
}

func NewS3WithClient(client s3iface.S3API, bucket string, expiry time.Duration, log logrus.FieldLogger) *S3 {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	return &S3{
		client:   client,
		uploader: s3manager.NewUploaderWithClient(client),
		bucket:   bucket,
		expiry:   expiry,
		log:      log,
		newName:  GenerateName,
	}
}

func (s *S3) Kind() entity.StorageKind { return entity.StorageS3 }

// Upload the content in parts; the uploader aborts a multipart upload by itself
// when reading the body fails.
func (s *S3) Save(ctx context.Context, r io.Reader, originalName, contentType string, maxBytes int64) (*entity.Blob, error) {
	name := s.newName(originalName)
	src := &limitedReader{r: r, max: maxBytes}
	in := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
		Body:   src,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.uploader.UploadWithContext(ctx, in); err != nil {
		s.cleanup(name)
		if src.err != nil {
			return nil, src.err
		}
		return nil, apperr.Wrap(apperr.KindStorageIO, err, "failed to upload video to S3")
	}
	return &entity.Blob{Name: name, OriginalName: originalName, Size: src.n, Storage: entity.StorageS3}, nil
}

// Remove whatever an aborted upload may have left behind.
func (s *S3) cleanup(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		s.log.WithError(err).WithField("key", name).Warn("failed to clean up aborted upload")
	}
}

func (s *S3) Delete(ctx context.Context, name string) (bool, error) {
	ok, err := s.Exists(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return false, apperr.Wrap(apperr.KindStorageIO, err, "failed to delete video from S3")
	}
	return true, nil
}

// Presign a GET request for the object.
func (s *S3) Resolve(ctx context.Context, name string) (*repository.Location, error) {
	ok, err := s.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "video file not found in bucket")
	}
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	url, err := req.Presign(s.expiry)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageIO, err, "failed to presign video URL")
	}
	return &repository.Location{URL: url, ExpiresAt: time.Now().Add(s.expiry)}, nil
}

func (s *S3) Exists(ctx context.Context, name string) (bool, error) {
	if !validName(name) {
		return false, nil
	}
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var rf awserr.RequestFailure
		if errors.As(err, &rf) && rf.StatusCode() == http.StatusNotFound {
			return false, nil
		}
		return false, apperr.Wrap(apperr.KindStorageIO, err, "failed to head video in S3")
	}
	return true, nil
}
