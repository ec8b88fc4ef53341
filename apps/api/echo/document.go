package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aulaprof/aula/core/document"
)

type documentApi struct {
	svc           *document.Service
	maxUploadSize int64
}

func registerDocumentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	guard echo.MiddlewareFunc,
	svc *document.Service,
	maxUploadSize int64,
) {
	api := documentApi{
		svc:           svc,
		maxUploadSize: maxUploadSize,
	}

	g.GET("/flows", api.queryFlows, jwt, guard)
	g.GET("/subjects/:id/:flow", api.query, jwt, guard, flowMiddleware())
	g.POST("/subjects/:id/:flow", api.upload, jwt, guard, flowMiddleware())
	g.DELETE("/documents/:flow/:fileID", api.destroy, jwt, guard, flowMiddleware())
}

// FlowResponse describes a flow to the dashboard: where uploads go and what they may be.
type FlowResponse struct {
	document.Flow
	AllowedTypes []string `json:"allowed_types"`
}

// Handlers

func (api *documentApi) queryFlows(ctx echo.Context) error {
	flows := make([]FlowResponse, 0, len(document.Flows))
	for _, f := range document.Flows {
		flows = append(flows, FlowResponse{Flow: f, AllowedTypes: f.AllowedTypes()})
	}
	return ctx.JSON(http.StatusOK, flows)
}

func (api *documentApi) query(ctx echo.Context) error {
	flow := ctx.Get(flowContextKey).(document.Flow)

	recs, err := api.svc.List(ctx.Request().Context(), flow, ctx.Param("id"), ctx.QueryParam("folder"), getContextIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "listing "+flow.Name)
	}
	if recs == nil {
		recs = []document.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

// upload answers 200 with one outcome per file as soon as the batch is processed,
// even when some (or all) files were rejected or failed.
func (api *documentApi) upload(ctx echo.Context) error {
	flow := ctx.Get(flowContextKey).(document.Flow)

	var form UploadForm
	if err := form.Bind(ctx, api.maxUploadSize); err != nil {
		return err
	}
	if mf := ctx.Request().MultipartForm; mf != nil {
		defer func() { _ = mf.RemoveAll() }()
	}

	batch := document.Batch{
		SubjectID: ctx.Param("id"),
		Folder:    form.Folder,
		Title:     form.Title,
		Files:     form.Files,
	}
	res, err := api.svc.Upload(ctx.Request().Context(), flow, batch, getContextIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "uploading to "+flow.Name)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *documentApi) destroy(ctx echo.Context) error {
	flow := ctx.Get(flowContextKey).(document.Flow)

	if err := api.svc.Delete(ctx.Request().Context(), flow, ctx.Param("fileID"), getContextIdentity(ctx)); err != nil {
		return errors.Wrap(err, "deleting from "+flow.Name)
	}
	return ctx.NoContent(http.StatusNoContent)
}

const flowContextKey = "flow"

// flowMiddleware resolves the :flow param. Unknown flows are not found.
func flowMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			flow, ok := document.FlowByName(ctx.Param("flow"))
			if !ok {
				return errHttpNotFound
			}
			ctx.Set(flowContextKey, flow)
			return next(ctx)
		}
	}
}
