package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/molpadia/molpalearn/internal/catalog"
	"github.com/molpadia/molpalearn/internal/domain/entity"
	"github.com/molpadia/molpalearn/internal/httprange"
	"github.com/sirupsen/logrus"
)

// The catalog operations served over HTTP.
type Catalog interface {
	Upload(ctx context.Context, in catalog.UploadInput, content io.Reader, who entity.Identity) (*entity.Video, error)
	Get(ctx context.Context, id string) (*entity.Video, error)
	Stream(ctx context.Context, id, rangeHeader string) (*catalog.Stream, error)
	List(ctx context.Context, filter entity.VideoFilter, page entity.PageRequest) (*entity.Page, error)
	ListByOwner(ctx context.Context, ownerId string, page entity.PageRequest) (*entity.Page, error)
	Delete(ctx context.Context, id string, who entity.Identity) error
	StorageKind() entity.StorageKind
}

type Options struct {
	// Base of the URLs handed out to clients. Derived from the request
	// when empty.
	PublicBaseURL string
	// Origins allowed to call the API from a browser.
	AllowedOrigins []string
}

type appHandler func(http.ResponseWriter, *http.Request) error

func (fn appHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := fn(w, r); err != nil {
		e := toAppError(err)
		log := loggerFrom(r.Context()).WithError(err)
		if e.Code >= http.StatusInternalServerError {
			log.Error("request failed")
		} else {
			log.Debug("request rejected")
		}
		var rerr *catalog.RangeError
		if errors.As(err, &rerr) {
			w.Header().Set("Content-Range", httprange.UnsatisfiedContentRange(rerr.Total))
		}
		replyJSON(w, e, e.Code)
	}
}

// Build the HTTP handler of the API.
func NewHandler(c Catalog, ids IdentityResolver, log logrus.FieldLogger, opts Options) http.Handler {
	r := mux.NewRouter()
	SetupRoutes(r, &controller{catalog: c, ids: ids, baseURL: opts.PublicBaseURL})
	return cors(opts.AllowedOrigins)(requestLogger(log)(r))
}

// Register API endpoints to the router.
func SetupRoutes(r *mux.Router, c *controller) {
	r.Methods("GET").Path("/health").Handler(appHandler(c.health))
	r.Methods("POST").Path("/videos/upload").Handler(appHandler(c.uploadVideo))
	r.Methods("GET").Path("/videos").Handler(appHandler(c.listVideos))
	r.Methods("GET").Path("/videos/my").Handler(appHandler(c.listMyVideos))
	r.Methods("GET", "HEAD").Path("/videos/stream/{id}").Handler(appHandler(c.streamVideo))
	r.Methods("GET").Path("/videos/{id}").Handler(appHandler(c.getVideo))
	r.Methods("DELETE").Path("/videos/{id}").Handler(appHandler(c.deleteVideo))
	r.NotFoundHandler = appHandler(func(w http.ResponseWriter, r *http.Request) error {
		return &AppError{http.StatusNotFound, "not_found", "route not found"}
	})
	r.MethodNotAllowedHandler = appHandler(func(w http.ResponseWriter, r *http.Request) error {
		return &AppError{http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed"}
	})
}

// Respond the output with JSON format to the client.
func replyJSON(w http.ResponseWriter, data interface{}, code int) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
