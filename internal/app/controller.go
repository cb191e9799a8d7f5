package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/molpadia/molpalearn/internal/catalog"
	"github.com/molpadia/molpalearn/internal/domain/entity"
	"github.com/sirupsen/logrus"
)

// Upper bound of a text field of the upload form.
const maxFieldBytes = 8 << 10

type controller struct {
	catalog Catalog
	ids     IdentityResolver
	baseURL string
}

// Get the verified caller or fail with unauthenticated.
func (c *controller) identity(r *http.Request) (entity.Identity, error) {
	who, ok := c.ids.Resolve(r)
	if !ok {
		return entity.Identity{}, errUnauthenticated
	}
	return who, nil
}

func (c *controller) base(r *http.Request) string {
	if c.baseURL != "" {
		return strings.TrimRight(c.baseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

func (c *controller) health(w http.ResponseWriter, r *http.Request) error {
	return replyJSON(w, HealthResponse{"ok", string(c.catalog.StorageKind())}, http.StatusOK)
}

// Upload a video from a multipart form. The text fields must precede the
// file part, which is streamed to the storage without buffering.
func (c *controller) uploadVideo(w http.ResponseWriter, r *http.Request) error {
	who, err := c.identity(r)
	if err != nil {
		return err
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return badRequest("expected a multipart/form-data body")
	}
	var in catalog.UploadInput
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return badRequest("file is required")
		}
		if err != nil {
			return badRequest("malformed multipart body: %v", err)
		}
		switch name := part.FormName(); name {
		case "title", "description", "subject":
			b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			if err != nil {
				return badRequest("cannot read field %s", name)
			}
			if len(b) > maxFieldBytes {
				return badRequest("field %s is too large", name)
			}
			switch name {
			case "title":
				in.Title = string(b)
			case "description":
				in.Description = string(b)
			case "subject":
				in.Subject = string(b)
			}
		case "file":
			in.OriginalFilename = part.FileName()
			in.ContentType = part.Header.Get("Content-Type")
			v, err := c.catalog.Upload(r.Context(), in, part, who)
			if err != nil {
				return err
			}
			return replyJSON(w, newVideoResponse(v, c.base(r)), http.StatusOK)
		}
		part.Close()
	}
}

// Parse the paging parameters of a listing.
func parsePage(r *http.Request) (entity.PageRequest, error) {
	page := entity.PageRequest{Page: 1, PerPage: entity.DefaultPerPage}
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &page.Page}, {"per_page", &page.PerPage}} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return page, badRequest("%s must be an integer", p.name)
		}
		*p.dst = n
	}
	return page, nil
}

func (c *controller) listVideos(w http.ResponseWriter, r *http.Request) error {
	if _, err := c.identity(r); err != nil {
		return err
	}
	page, err := parsePage(r)
	if err != nil {
		return err
	}
	filter := entity.VideoFilter{
		Search:  r.URL.Query().Get("search"),
		Subject: r.URL.Query().Get("subject"),
	}
	p, err := c.catalog.List(r.Context(), filter, page)
	if err != nil {
		return err
	}
	return replyJSON(w, newPageResponse(p, c.base(r)), http.StatusOK)
}

func (c *controller) listMyVideos(w http.ResponseWriter, r *http.Request) error {
	who, err := c.identity(r)
	if err != nil {
		return err
	}
	if !who.IsTeacher() {
		return &AppError{http.StatusForbidden, "forbidden", "teacher access required"}
	}
	page, err := parsePage(r)
	if err != nil {
		return err
	}
	p, err := c.catalog.ListByOwner(r.Context(), who.Id, page)
	if err != nil {
		return err
	}
	return replyJSON(w, newPageResponse(p, c.base(r)), http.StatusOK)
}

func (c *controller) getVideo(w http.ResponseWriter, r *http.Request) error {
	if _, err := c.identity(r); err != nil {
		return err
	}
	v, err := c.catalog.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	return replyJSON(w, newVideoResponse(v, c.base(r)), http.StatusOK)
}

func (c *controller) deleteVideo(w http.ResponseWriter, r *http.Request) error {
	who, err := c.identity(r)
	if err != nil {
		return err
	}
	if err := c.catalog.Delete(r.Context(), mux.Vars(r)["id"], who); err != nil {
		return err
	}
	return replyJSON(w, map[string]string{"message": "Video deleted"}, http.StatusOK)
}

// Stream the video honoring the Range header. Streaming is public so that
// plain video elements can play it.
func (c *controller) streamVideo(w http.ResponseWriter, r *http.Request) error {
	st, err := c.catalog.Stream(r.Context(), mux.Vars(r)["id"], r.Header.Get("Range"))
	if err != nil {
		return err
	}
	defer st.Close()
	if st.Redirect != "" {
		http.Redirect(w, r, st.Redirect, http.StatusFound)
		return nil
	}

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", st.ContentType)
	h.Set("Content-Length", strconv.FormatInt(st.Range.Length(), 10))
	status := http.StatusOK
	if st.Partial {
		h.Set("Content-Range", st.Range.ContentRange())
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return nil
	}
	n, err := st.Chunks.WriteTo(w)
	if err != nil {
		// The headers are gone already; a dropped client is routine.
		log := loggerFrom(r.Context()).WithError(err).WithFields(logrus.Fields{
			"video_id": st.Video.Id,
			"written":  n,
			"expected": st.Range.Length(),
		})
		if isDisconnect(r.Context(), err) {
			log.Debug("client disconnected during stream")
		} else {
			log.Warn("stream aborted")
		}
	}
	return nil
}

func isDisconnect(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
