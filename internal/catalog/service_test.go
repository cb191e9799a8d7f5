package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/molpadia/molpalearn/internal/domain/apperr"
	"github.com/molpadia/molpalearn/internal/domain/entity"
	"github.com/molpadia/molpalearn/internal/domain/repository"
	"github.com/molpadia/molpalearn/internal/infrastructure/persistence"
	"github.com/molpadia/molpalearn/internal/infrastructure/storage"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var (
	alice   = entity.Identity{Id: "t-alice", Name: "Alice", Role: entity.RoleTeacher}
	bob     = entity.Identity{Id: "t-bob", Name: "Bob", Role: entity.RoleTeacher}
	student = entity.Identity{Id: "s-carol", Name: "Carol", Role: entity.RoleStudent}
)

type fixture struct {
	svc   *Service
	repo  repository.VideoRepository
	local *storage.Local
	dir   string
	hook  *test.Hook
}

func newFixture(t *testing.T, opts Options, wrap ...func(repository.VideoRepository, repository.Storage) (repository.VideoRepository, repository.Storage)) *fixture {
	t.Helper()
	dir := t.TempDir()
	local, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	log, hook := test.NewNullLogger()
	var (
		repo  repository.VideoRepository = persistence.NewMemoryVideoRepository()
		store repository.Storage         = local
	)
	for _, w := range wrap {
		repo, store = w(repo, store)
	}
	svc := NewService(repo, store, log, opts)
	t.Cleanup(svc.Wait)
	return &fixture{svc, repo, local, dir, hook}
}

func (f *fixture) files(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	return b
}

func upload(t *testing.T, svc *Service, who entity.Identity, title string, content []byte) *entity.Video {
	t.Helper()
	in := UploadInput{Title: title, Subject: "Physics", OriginalFilename: "lecture.mp4", ContentType: "video/mp4"}
	v, err := svc.Upload(context.Background(), in, bytes.NewReader(content), who)
	if err != nil {
		t.Fatalf("Upload(%q) returned error %v", title, err)
	}
	return v
}

func readStream(t *testing.T, st *Stream) []byte {
	t.Helper()
	defer st.Close()
	var buf bytes.Buffer
	if _, err := st.Chunks.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUploadAndStream(t *testing.T) {
	f := newFixture(t, Options{})
	content := randomBytes(3<<20 + 17)
	v := upload(t, f.svc, alice, "Kinematics", content)

	if v.FileSize != int64(len(content)) || v.Storage != entity.StorageLocal || v.OwnerName != "Alice" {
		t.Errorf("unexpected video %+v", v)
	}
	if !strings.HasSuffix(v.Filename, ".mp4") || v.Filename == "lecture.mp4" {
		t.Errorf("expected a generated filename, got %s", v.Filename)
	}

	st, err := f.svc.Stream(context.Background(), v.Id, "")
	if err != nil {
		t.Fatal(err)
	}
	if st.Partial || st.Range.Start != 0 || st.Range.End != int64(len(content)-1) || st.ContentType != "video/mp4" {
		t.Errorf("unexpected full stream %+v", st)
	}
	if got := readStream(t, st); !bytes.Equal(got, content) {
		t.Errorf("full stream returned %d bytes, want %d", len(got), len(content))
	}

	st, err = f.svc.Stream(context.Background(), v.Id, "bytes=1048570-1048589")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Partial || st.Range.ContentRange() != "bytes 1048570-1048589/3145745" {
		t.Errorf("unexpected partial stream %+v", st.Range)
	}
	if got := readStream(t, st); !bytes.Equal(got, content[1048570:1048590]) {
		t.Errorf("partial stream returned %v", got)
	}

	f.svc.Wait()
	got, err := f.svc.Get(context.Background(), v.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Views != 2 {
		t.Errorf("Views = %d, want 2", got.Views)
	}
}

func TestUploadRejected(t *testing.T) {
	tests := []struct {
		who     entity.Identity
		in      UploadInput
		content []byte
		kind    apperr.Kind
	}{
		{student, UploadInput{Title: "Intro", ContentType: "video/mp4"}, randomBytes(10), apperr.KindForbidden},
		{alice, UploadInput{Title: "  ", ContentType: "video/mp4"}, randomBytes(10), apperr.KindValidation},
		{alice, UploadInput{Title: strings.Repeat("é", 201), ContentType: "video/mp4"}, randomBytes(10), apperr.KindValidation},
		{alice, UploadInput{Title: "Intro", Description: strings.Repeat("d", 2001), ContentType: "video/mp4"}, randomBytes(10), apperr.KindValidation},
		{alice, UploadInput{Title: "Intro", ContentType: "image/png"}, randomBytes(10), apperr.KindUnsupportedMediaType},
		{alice, UploadInput{Title: "Intro", ContentType: ""}, randomBytes(10), apperr.KindUnsupportedMediaType},
		{alice, UploadInput{Title: "Intro", ContentType: "video/mp4"}, randomBytes(2048), apperr.KindPayloadTooLarge},
		{alice, UploadInput{Title: "Intro", ContentType: "video/mp4"}, nil, apperr.KindValidation},
	}
	for _, tt := range tests {
		f := newFixture(t, Options{MaxUploadBytes: 1024})
		_, err := f.svc.Upload(context.Background(), tt.in, bytes.NewReader(tt.content), tt.who)
		if k := apperr.KindOf(err); k != tt.kind {
			t.Errorf("Upload(%+v) error kind = %s, want %s (%v)", tt.in, k, tt.kind, err)
		}
		if n := f.files(t); n != 0 {
			t.Errorf("Upload(%+v) left %d files behind", tt.in, n)
		}
		if _, total, _ := f.repo.List(context.Background(), entity.VideoFilter{}, entity.PageRequest{Page: 1, PerPage: 1}); total != 0 {
			t.Errorf("Upload(%+v) created %d records", tt.in, total)
		}
	}
}

func TestUploadContentTypeParameters(t *testing.T) {
	f := newFixture(t, Options{AllowedTypes: []string{"video/webm"}})
	in := UploadInput{Title: "Intro", OriginalFilename: "a.webm", ContentType: "Video/WebM; codecs=vp9"}
	v, err := f.svc.Upload(context.Background(), in, bytes.NewReader(randomBytes(64)), alice)
	if err != nil {
		t.Fatal(err)
	}
	if v.ContentType != "video/webm" {
		t.Errorf("ContentType = %s, want video/webm", v.ContentType)
	}
}

func TestStreamRangeNotSatisfiable(t *testing.T) {
	f := newFixture(t, Options{})
	v := upload(t, f.svc, alice, "Optics", randomBytes(1000))
	for _, header := range []string{"bytes=1000-", "bytes=5000-6000", "bytes=20-10"} {
		_, err := f.svc.Stream(context.Background(), v.Id, header)
		if !errors.Is(err, apperr.ErrRangeNotSatisfiable) {
			t.Errorf("Stream(%q) error = %v, want range not satisfiable", header, err)
			continue
		}
		var rerr *RangeError
		if !errors.As(err, &rerr) || rerr.Total != 1000 {
			t.Errorf("Stream(%q) error %v carries no total", header, err)
		}
	}
	// Unparsable headers fall back to the whole file.
	st, err := f.svc.Stream(context.Background(), v.Id, "bytes=-500")
	if err != nil {
		t.Fatal(err)
	}
	if st.Partial || st.Range.Length() != 1000 {
		t.Errorf("unexpected fallback window %+v", st.Range)
	}
	st.Close()
}

func TestStreamNotFound(t *testing.T) {
	f := newFixture(t, Options{})
	v := upload(t, f.svc, alice, "Waves", randomBytes(100))
	if err := os.Remove(f.dir + "/" + v.Filename); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{entity.NewVideoId(), "not-a-uuid", "../../etc/passwd", v.Id} {
		if _, err := f.svc.Stream(context.Background(), id, ""); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Stream(%q) error = %v, want not found", id, err)
		}
	}
}

func TestStreamDoesNotWaitForViews(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, Options{}, func(r repository.VideoRepository, s repository.Storage) (repository.VideoRepository, repository.Storage) {
		return &stalledViews{r, release}, s
	})
	v := upload(t, f.svc, alice, "Heat", randomBytes(100))

	done := make(chan error, 1)
	go func() {
		st, err := f.svc.Stream(context.Background(), v.Id, "")
		if err == nil {
			st.Close()
		}
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream blocked on the view increment")
	}

	close(release)
	f.svc.Wait()
	entry := f.hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel || entry.Message != "failed to increment views" {
		t.Errorf("expected a warning for the failed increment, got %+v", entry)
	}
}

func TestStreamRemote(t *testing.T) {
	remote := func(r repository.VideoRepository, s repository.Storage) (repository.VideoRepository, repository.Storage) {
		return r, remoteStorage{}
	}
	for _, redirect := range []bool{false, true} {
		f := newFixture(t, Options{RemoteRedirect: redirect}, remote)
		v := &entity.Video{Id: entity.NewVideoId(), Title: "Remote", Filename: "abc.mp4", FileSize: 10, Storage: entity.StorageS3, OwnerId: alice.Id}
		if err := f.repo.Create(context.Background(), v); err != nil {
			t.Fatal(err)
		}
		st, err := f.svc.Stream(context.Background(), v.Id, "bytes=0-1")
		if !redirect {
			if !errors.Is(err, apperr.ErrNotImplemented) {
				t.Errorf("Stream without redirect error = %v, want not implemented", err)
			}
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
		if st.Chunks != nil || st.Redirect != "https://videos.example.com/abc.mp4?X-Amz-Expires=3600" {
			t.Errorf("unexpected remote stream %+v", st)
		}
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	v := upload(t, f.svc, alice, "Gravity", randomBytes(256))

	for _, who := range []entity.Identity{student, bob} {
		if err := f.svc.Delete(ctx, v.Id, who); !errors.Is(err, apperr.ErrForbidden) {
			t.Errorf("Delete by %s error = %v, want forbidden", who.Id, err)
		}
	}
	if _, err := f.svc.Get(ctx, v.Id); err != nil {
		t.Errorf("video is gone after a forbidden delete: %v", err)
	}
	if ok, _ := f.local.Exists(ctx, v.Filename); !ok {
		t.Error("file is gone after a forbidden delete")
	}

	if err := f.svc.Delete(ctx, v.Id, alice); err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.local.Exists(ctx, v.Filename); ok {
		t.Error("file remains after delete")
	}
	if _, err := f.svc.Get(ctx, v.Id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after delete error = %v, want not found", err)
	}
	if err := f.svc.Delete(ctx, v.Id, alice); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete error = %v, want not found", err)
	}
}

func TestDeleteKeepsRecordWhenFileRemains(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{}, func(r repository.VideoRepository, s repository.Storage) (repository.VideoRepository, repository.Storage) {
		return r, readOnlyStorage{s}
	})
	v := upload(t, f.svc, alice, "Sound", randomBytes(256))
	if err := f.svc.Delete(ctx, v.Id, alice); !errors.Is(err, apperr.ErrStorageIO) {
		t.Fatalf("Delete error = %v, want storage io", err)
	}
	if _, err := f.svc.Get(ctx, v.Id); err != nil {
		t.Errorf("record removed although the file remains: %v", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	for i := 0; i < 25; i++ {
		who := alice
		if i%5 == 0 {
			who = bob
		}
		upload(t, f.svc, who, "Lecture", randomBytes(i+1))
	}

	tests := []struct {
		page       entity.PageRequest
		items      int
		totalPages int
	}{
		{entity.PageRequest{Page: 1, PerPage: 12}, 12, 3},
		{entity.PageRequest{Page: 3, PerPage: 12}, 1, 3},
		{entity.PageRequest{Page: 9, PerPage: 12}, 0, 3},
		{entity.PageRequest{Page: 1, PerPage: 50}, 25, 1},
	}
	for _, tt := range tests {
		p, err := f.svc.List(ctx, entity.VideoFilter{Search: " lecture "}, tt.page)
		if err != nil {
			t.Fatal(err)
		}
		if p.Total != 25 || len(p.Items) != tt.items || p.TotalPages != tt.totalPages {
			t.Errorf("List(%+v) = %d items of %d, %d pages", tt.page, len(p.Items), p.Total, p.TotalPages)
		}
	}

	p, err := f.svc.ListByOwner(ctx, bob.Id, entity.PageRequest{Page: 1, PerPage: 12})
	if err != nil {
		t.Fatal(err)
	}
	if p.Total != 5 {
		t.Errorf("ListByOwner total = %d, want 5", p.Total)
	}
	for _, v := range p.Items {
		if v.OwnerId != bob.Id {
			t.Errorf("ListByOwner returned video of %s", v.OwnerId)
		}
	}

	for _, page := range []entity.PageRequest{{Page: 0, PerPage: 12}, {Page: 1, PerPage: 0}, {Page: 1, PerPage: 51}} {
		if _, err := f.svc.List(ctx, entity.VideoFilter{}, page); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("List(%+v) error = %v, want validation", page, err)
		}
	}
}

type stalledViews struct {
	repository.VideoRepository
	release chan struct{}
}

func (r *stalledViews) IncrementViews(ctx context.Context, id string) error {
	<-r.release
	return errors.New("store unavailable")
}

type remoteStorage struct{}

func (remoteStorage) Kind() entity.StorageKind { return entity.StorageS3 }

func (remoteStorage) Save(ctx context.Context, r io.Reader, originalName, contentType string, maxBytes int64) (*entity.Blob, error) {
	return nil, errors.New("not supported")
}

func (remoteStorage) Delete(ctx context.Context, name string) (bool, error) { return true, nil }

func (remoteStorage) Resolve(ctx context.Context, name string) (*repository.Location, error) {
	return &repository.Location{URL: "https://videos.example.com/" + name + "?X-Amz-Expires=3600"}, nil
}

func (remoteStorage) Exists(ctx context.Context, name string) (bool, error) { return true, nil }

type readOnlyStorage struct {
	repository.Storage
}

func (readOnlyStorage) Delete(ctx context.Context, name string) (bool, error) {
	return false, apperr.New(apperr.KindStorageIO, "read-only file system")
}
