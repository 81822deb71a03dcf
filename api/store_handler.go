package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/middleware"
	"github.com/cofferhq/coffer/object"
)

func (a *API) registerStoreRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("stores"))

	if err := g.GET("/stores", a.listStores,
		forge.WithSummary("List stores"),
		forge.WithDescription("Lists all store ids. Listing is not gated by per-store grants."),
		forge.WithOperationID("listStores"),
		forge.WithResponseSchema(http.StatusOK, "Store id list", []string{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/stores", a.createStore,
		forge.WithSummary("Create store"),
		forge.WithDescription("Creates a store, optionally named and seeded with one object. The caller receives full rights."),
		forge.WithOperationID("createStore"),
		forge.WithRequestSchema(CreateStoreRequest{}),
		forge.WithCreatedResponse(&CreateStoreResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/stores/:storeId", a.createNamedStore,
		forge.WithSummary("Create named store"),
		forge.WithDescription("Creates a store under the caller-chosen id in the path. Fails if the id is taken."),
		forge.WithOperationID("createNamedStore"),
		forge.WithRequestSchema(CreateNamedStoreRequest{}),
		forge.WithCreatedResponse(&CreateStoreResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/stores/:storeId", a.storeContents,
		forge.WithSummary("Store contents"),
		forge.WithDescription("Returns the store's objects in insertion order. Requires the read right."),
		forge.WithOperationID("storeContents"),
		forge.WithRequestSchema(StoreContentsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Object list", []ObjectResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/stores/:storeId", a.deleteStore,
		forge.WithSummary("Delete store"),
		forge.WithDescription("Deletes a store, its objects, and its access list. Requires the write right."),
		forge.WithOperationID("deleteStore"),
		forge.WithResponseSchema(http.StatusOK, "Deleted store id", &DeleteStoreResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listStores(ctx forge.Context, _ *struct{}) ([]string, error) {
	ids, err := a.eng.ListStores(ctx.Context(), middleware.Resolve(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	return ids, ctx.JSON(http.StatusOK, ids)
}

func (a *API) createStore(ctx forge.Context, req *CreateStoreRequest) (*CreateStoreResponse, error) {
	storeID, oids, err := a.eng.CreateStoreWithInitial(ctx.Context(), middleware.Resolve(ctx), req.Name, req.Data)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &CreateStoreResponse{ID: storeID, OIDs: oidStrings(oids)}
	return resp, ctx.JSON(http.StatusCreated, resp)
}

func (a *API) createNamedStore(ctx forge.Context, req *CreateNamedStoreRequest) (*CreateStoreResponse, error) {
	storeID, oids, err := a.eng.CreateStoreWithInitial(ctx.Context(), middleware.Resolve(ctx), ctx.Param("storeId"), req.Data)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &CreateStoreResponse{ID: storeID, OIDs: oidStrings(oids)}
	return resp, ctx.JSON(http.StatusCreated, resp)
}

func (a *API) storeContents(ctx forge.Context, req *StoreContentsRequest) ([]ObjectResponse, error) {
	filter := &object.ListFilter{
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
	}

	objs, err := a.eng.StoreContents(ctx.Context(), middleware.Resolve(ctx), ctx.Param("storeId"), filter)
	if err != nil {
		return nil, mapError(err)
	}

	items := make([]ObjectResponse, 0, len(objs))
	for _, o := range objs {
		items = append(items, ObjectResponse{OID: o.ID.String(), Data: o.Data})
	}

	return items, ctx.JSON(http.StatusOK, items)
}

func (a *API) deleteStore(ctx forge.Context, _ *GetStoreRequest) (*DeleteStoreResponse, error) {
	storeID := ctx.Param("storeId")
	if err := a.eng.DeleteStore(ctx.Context(), middleware.Resolve(ctx), storeID); err != nil {
		return nil, mapError(err)
	}

	resp := &DeleteStoreResponse{ID: storeID}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func oidStrings(oids []id.ObjectID) []string {
	out := make([]string, 0, len(oids))
	for _, oid := range oids {
		out = append(out, oid.String())
	}
	return out
}
