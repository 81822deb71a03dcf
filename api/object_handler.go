package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/middleware"
)

func (a *API) registerObjectRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("objects"))

	if err := g.POST("/stores/:storeId/objects", a.insertObject,
		forge.WithSummary("Insert object"),
		forge.WithDescription("Inserts an object into a store. Requires the write right. The object id is always generated."),
		forge.WithOperationID("insertObject"),
		forge.WithRequestSchema(InsertObjectRequest{}),
		forge.WithCreatedResponse(&ObjectIDResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/stores/:storeId/objects/:oid", a.getObject,
		forge.WithSummary("Get object"),
		forge.WithDescription("Returns one object's payload. Requires the read right."),
		forge.WithOperationID("getObject"),
		forge.WithResponseSchema(http.StatusOK, "Object", &ObjectResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/stores/:storeId/objects/:oid", a.updateObject,
		forge.WithSummary("Update object"),
		forge.WithDescription("Replaces an object's payload in place. Requires the write right; a missing object is never created."),
		forge.WithOperationID("updateObject"),
		forge.WithRequestSchema(UpdateObjectRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated object id", &ObjectIDResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/stores/:storeId/objects/:oid", a.deleteObject,
		forge.WithSummary("Delete object"),
		forge.WithDescription("Removes one object from a store. Requires the write right."),
		forge.WithOperationID("deleteObject"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) insertObject(ctx forge.Context, req *InsertObjectRequest) (*ObjectIDResponse, error) {
	o, err := a.eng.InsertObject(ctx.Context(), middleware.Resolve(ctx), ctx.Param("storeId"), req.Data)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ObjectIDResponse{OID: o.ID.String()}
	return resp, ctx.JSON(http.StatusCreated, resp)
}

func (a *API) getObject(ctx forge.Context, _ *GetObjectRequest) (*ObjectResponse, error) {
	oid, err := id.ParseObjectID(ctx.Param("oid"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid object ID: %v", err))
	}

	o, err := a.eng.GetObject(ctx.Context(), middleware.Resolve(ctx), ctx.Param("storeId"), oid)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ObjectResponse{OID: o.ID.String(), Data: o.Data}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) updateObject(ctx forge.Context, req *UpdateObjectRequest) (*ObjectIDResponse, error) {
	oid, err := id.ParseObjectID(ctx.Param("oid"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid object ID: %v", err))
	}

	o, err := a.eng.UpdateObject(ctx.Context(), middleware.Resolve(ctx), ctx.Param("storeId"), oid, req.Data)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ObjectIDResponse{OID: o.ID.String()}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) deleteObject(ctx forge.Context, _ *GetObjectRequest) (*struct{}, error) {
	oid, err := id.ParseObjectID(ctx.Param("oid"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid object ID: %v", err))
	}

	if err := a.eng.DeleteObject(ctx.Context(), middleware.Resolve(ctx), ctx.Param("storeId"), oid); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}
