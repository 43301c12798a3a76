package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core/adventure"
)

const mimeApplicationYAML = "application/x-yaml"

type adventureApi struct {
	svc *adventure.Service
}

func registerAdventureAPI(g *echo.Group, jwt, optionalJWT echo.MiddlewareFunc, svc *adventure.Service) {
	api := adventureApi{svc: svc}

	ag := g.Group("/adventures")
	ag.POST("", api.create, jwt, authorMiddleware())
	ag.POST("/import", api.importYAML, jwt, authorMiddleware())

	ag.GET("/:id", api.retrieve, optionalJWT)
	ag.GET("/:id/versions/:version", api.retrieveVersion, optionalJWT)
	ag.GET("/:id/history", api.history, optionalJWT)
	ag.GET("/:id/export", api.exportYAML, optionalJWT)

	ag.PUT("/:id", api.update, jwt)
	ag.POST("/:id/revert", api.revert, jwt)
	ag.DELETE("/:id", api.destroy, jwt)
}

func (api *adventureApi) create(ctx echo.Context) error {
	var data adventure.Adventure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Adventure")
	}
	ent, err := api.svc.Create(ctx.Request().Context(), contextActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating adventure")
	}
	return ctx.JSON(http.StatusCreated, ent)
}

func (api *adventureApi) retrieve(ctx echo.Context) error {
	ent, err := api.svc.Get(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting adventure")
	}
	return ctx.JSON(http.StatusOK, ent)
}

func (api *adventureApi) retrieveVersion(ctx echo.Context) error {
	version, err := intParam(ctx, "version")
	if err != nil {
		return err
	}
	ent, err := api.svc.GetVersion(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), version)
	if err != nil {
		return errors.Wrap(err, "getting adventure version")
	}
	return ctx.JSON(http.StatusOK, ent)
}

func (api *adventureApi) history(ctx echo.Context) error {
	snaps, err := api.svc.History(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting adventure history")
	}
	return ctx.JSON(http.StatusOK, snaps)
}

func (api *adventureApi) update(ctx echo.Context) error {
	var data UpdateRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	ent, err := api.svc.Update(
		ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), data.Version, data.ChangeList, data.CommitMessage,
	)
	if err != nil {
		return errors.Wrap(err, "updating adventure")
	}
	return ctx.JSON(http.StatusOK, ent)
}

func (api *adventureApi) revert(ctx echo.Context) error {
	var data RevertRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	ent, err := api.svc.Revert(
		ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), data.CurrentVersion, data.RevertToVersion,
	)
	if err != nil {
		return errors.Wrap(err, "reverting adventure")
	}
	return ctx.JSON(http.StatusOK, ent)
}

func (api *adventureApi) destroy(ctx echo.Context) error {
	actor := contextActor(ctx)
	force := boolQuery(ctx, "force")
	if force && !actor.IsAdmin {
		return errHttpForbidden
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id"), force); err != nil {
		return errors.Wrap(err, "deleting adventure")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adventureApi) exportYAML(ctx echo.Context) error {
	content, err := api.svc.ExportYAML(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "exporting adventure")
	}
	return ctx.Blob(http.StatusOK, mimeApplicationYAML, content)
}

// importYAML creates an adventure from an exported file sent as the raw request body.
func (api *adventureApi) importYAML(ctx echo.Context) error {
	content, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading request body")
	}
	ent, err := api.svc.ImportYAML(ctx.Request().Context(), contextActor(ctx), ctx.QueryParam("id"), content)
	if err != nil {
		return errors.Wrap(err, "importing adventure")
	}
	return ctx.JSON(http.StatusCreated, ent)
}
