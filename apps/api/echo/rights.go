package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/versioned"
)

type rightsApi struct {
	svc *rights.Service
}

func registerRightsAPI(g *echo.Group, jwt, optionalJWT echo.MiddlewareFunc, svc *rights.Service) {
	api := rightsApi{svc: svc}

	rg := g.Group("/activities/:type/:id/rights")
	rg.GET("", api.retrieve, optionalJWT)
	rg.PUT("/roles", api.assignRole, jwt)
	rg.POST("/publish", api.transition((*rights.Service).Publish, "publishing"), jwt)
	rg.POST("/unpublish", api.transition((*rights.Service).Unpublish, "unpublishing"), jwt)
	rg.POST("/publicize", api.transition((*rights.Service).Publicize, "publicizing"), jwt)
	rg.POST("/unpublicize", api.transition((*rights.Service).Unpublicize, "unpublicizing"), jwt)
	rg.POST("/release-ownership", api.transition((*rights.Service).ReleaseOwnership, "releasing ownership"), jwt)
	rg.PUT("/viewable-if-private", api.setViewableIfPrivate, jwt)
}

func (api *rightsApi) retrieve(ctx echo.Context) error {
	ref, err := activityRef(ctx)
	if err != nil {
		return err
	}
	ent, err := api.svc.Get(ctx.Request().Context(), ref)
	if err != nil {
		return errors.Wrap(err, "getting rights")
	}
	if !ent.Content.CanView(contextActor(ctx)) {
		return core.NewAuthorizationError("You do not have permissions to view %s", ref)
	}
	return ctx.JSON(http.StatusOK, ent)
}

func (api *rightsApi) assignRole(ctx echo.Context) error {
	ref, err := activityRef(ctx)
	if err != nil {
		return err
	}
	var data AssignRoleRequest
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}
	ent, err := api.svc.AssignRole(ctx.Request().Context(), contextActor(ctx), ref, data.AssigneeID, activity.Role(data.Role))
	if err != nil {
		return errors.Wrap(err, "assigning role")
	}
	return ctx.JSON(http.StatusOK, ent)
}

type rightsTransition func(
	svc *rights.Service, ctx context.Context, actor rights.Actor, ref activity.Ref,
) (versioned.Entity[rights.Rights], error)

func (api *rightsApi) transition(fn rightsTransition, action string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ref, err := activityRef(ctx)
		if err != nil {
			return err
		}
		ent, err := fn(api.svc, ctx.Request().Context(), contextActor(ctx), ref)
		if err != nil {
			return errors.Wrap(err, action)
		}
		return ctx.JSON(http.StatusOK, ent)
	}
}

func (api *rightsApi) setViewableIfPrivate(ctx echo.Context) error {
	ref, err := activityRef(ctx)
	if err != nil {
		return err
	}
	var data ViewableIfPrivateRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ViewableIfPrivateRequest")
	}
	ent, err := api.svc.SetViewableIfPrivate(ctx.Request().Context(), contextActor(ctx), ref, data.ViewableIfPrivate)
	if err != nil {
		return errors.Wrap(err, "setting viewable_if_private")
	}
	return ctx.JSON(http.StatusOK, ent)
}

type (
	AssignRoleRequest struct {
		AssigneeID string `json:"assignee_id" validate:"required"`
		Role       string `json:"role" validate:"required,oneof=owner editor viewer"`
	}

	ViewableIfPrivateRequest struct {
		ViewableIfPrivate bool `json:"viewable_if_private"`
	}
)
