package app

import (
	"net/http"
	"strings"

	"github.com/molpadia/molpalearn/internal/domain/entity"
)

// Resolves the verified caller of a request.
type IdentityResolver interface {
	Resolve(r *http.Request) (entity.Identity, bool)
}

// HeaderIdentity trusts the identity headers set by the upstream identity
// service. The service must run behind a proxy which strips them from
// client requests.
type HeaderIdentity struct{}

const (
	headerUserId   = "X-User-Id"
	headerUserName = "X-User-Name"
	headerUserRole = "X-User-Role"
)

func (HeaderIdentity) Resolve(r *http.Request) (entity.Identity, bool) {
	id := strings.TrimSpace(r.Header.Get(headerUserId))
	role := entity.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(headerUserRole))))
	if id == "" || !role.Valid() {
		return entity.Identity{}, false
	}
	return entity.Identity{Id: id, Name: strings.TrimSpace(r.Header.Get(headerUserName)), Role: role}, true
}
