// Package middleware provides identity resolution and access gating for
// the Coffer HTTP API.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/xraph/forge"

	"github.com/cofferhq/coffer"
	"github.com/cofferhq/coffer/acl"
)

// IdentityHeader names the request header consulted for the caller
// identity in standalone deployments.
const IdentityHeader = "X-Coffer-Identity"

// Anonymous is the identity assigned when no caller can be resolved.
// It holds no implicit rights anywhere.
const Anonymous = "anonymous"

// Resolve returns the caller identity for a request.
// Priority: Forge user ID (from the host's auth layer) → identity
// injected by the Identity middleware → anonymous.
func Resolve(ctx forge.Context) string {
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		return userID
	}
	if identity := coffer.IdentityFromContext(ctx.Context()); identity != "" {
		return identity
	}
	return Anonymous
}

// Identity wraps an http.Handler so the IdentityHeader value is carried
// in the request context. Used by standalone deployments without a
// Forge auth layer in front.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get(IdentityHeader); v != "" {
			r = r.WithContext(coffer.WithIdentity(r.Context(), v))
		}
		next.ServeHTTP(w, r)
	})
}

// Require gates a route on the caller holding the given rights on the
// store named by the :storeId path parameter.
func Require(eng *coffer.Engine, required acl.Perms) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			result, err := eng.Check(ctx.Context(), &coffer.AccessRequest{
				StoreID:  ctx.Param("storeId"),
				Identity: Resolve(ctx),
				Required: required,
			})
			if err != nil || !result.Allowed {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(403)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
