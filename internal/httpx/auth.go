package httpx

import (
	"context"
	"net/http"

	"github.com/kicklover/go-sneaker-orders/internal/orders"
)

// The auth gateway in front of this service authenticates the request and
// forwards the verified identity in these headers. The engine trusts them as
// given.
const (
	HeaderUserID = "X-User-Id"
	HeaderAdmin  = "X-Admin"
)

type identityKey struct{}

// Identity extracts the caller identity from the trusted headers and attaches
// it to the request context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := orders.Identity{
			UserID: r.Header.Get(HeaderUserID),
			Admin:  r.Header.Get(HeaderAdmin) == "true",
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

func CallerFrom(ctx context.Context) (orders.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(orders.Identity)
	return id, ok && id.UserID != ""
}

// requireCaller writes a 401 and returns false when no identity was supplied.
func requireCaller(w http.ResponseWriter, r *http.Request) (orders.Identity, bool) {
	id, ok := CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return orders.Identity{}, false
	}
	return id, true
}
