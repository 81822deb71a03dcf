package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/xraph/forge"

	"github.com/cofferhq/coffer"
	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/middleware"
)

func (a *API) registerPermsRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("perms"))

	if err := g.GET("/stores/:storeId/perms", a.readPerms,
		forge.WithSummary("Read access list"),
		forge.WithDescription("Returns the store's full grant snapshot. Requires the read right or ownership."),
		forge.WithOperationID("readPerms"),
		forge.WithResponseSchema(http.StatusOK, "Access list", &PermsResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/stores/:storeId/perms", a.replacePerms,
		forge.WithSummary("Replace access list"),
		forge.WithDescription("Overwrites the store's entire access list. Requires the execute right. Grants not restated are gone."),
		forge.WithOperationID("replacePerms"),
		forge.WithRequestSchema(ReplacePermsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Access list", &PermsResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) readPerms(ctx forge.Context, _ *GetStoreRequest) (*PermsResponse, error) {
	snap, err := a.eng.ReadACL(ctx.Context(), middleware.Resolve(ctx), ctx.Param("storeId"))
	if err != nil {
		return nil, mapError(err)
	}

	resp := permsResponse(snap.StoreID, snap.Grants)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) replacePerms(ctx forge.Context, req *ReplacePermsRequest) (*PermsResponse, error) {
	storeID := ctx.Param("storeId")

	grants := make([]acl.Grant, 0, len(req.Perms))
	for _, in := range req.Perms {
		p, err := acl.ParsePerms(in.Perms)
		if err != nil {
			return nil, mapError(fmt.Errorf("%w: %v", coffer.ErrInvalidPerm, err))
		}
		grants = append(grants, acl.Grant{Identity: in.Name, Perms: p})
	}

	if err := a.eng.ReplaceACL(ctx.Context(), middleware.Resolve(ctx), storeID, grants); err != nil {
		return nil, mapError(err)
	}

	resp := permsResponse(storeID, acl.Fold(grants))
	return resp, ctx.JSON(http.StatusOK, resp)
}

func permsResponse(storeID string, grants map[string]acl.Perms) *PermsResponse {
	identities := make([]string, 0, len(grants))
	for identity := range grants {
		identities = append(identities, identity)
	}
	sort.Strings(identities)

	out := make([]GrantOutput, 0, len(identities))
	for _, identity := range identities {
		out = append(out, GrantOutput{Name: identity, Perms: grants[identity].List()})
	}
	return &PermsResponse{Name: storeID, Perms: out}
}
