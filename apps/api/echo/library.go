package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/commitlog"
	"github.com/trezcool/matembezi/core/summary"
)

type libraryApi struct {
	summaries *summary.Service
	commits   *commitlog.Service
}

func registerLibraryAPI(
	g *echo.Group,
	jwt, optionalJWT echo.MiddlewareFunc,
	summaries *summary.Service,
	commits *commitlog.Service,
) {
	api := libraryApi{summaries: summaries, commits: commits}

	g.GET("/library", api.library, optionalJWT)
	g.GET("/creator-dashboard", api.creatorDashboard, jwt)
	g.GET("/activities/:type/:id/summary", api.summary, optionalJWT)

	g.GET("/commits", api.allCommits, jwt, adminMiddleware())
	g.GET("/commits/public", api.publicCommits)
	g.GET("/activities/:type/:id/commits/latest", api.latestCommit, optionalJWT)
}

// library lists the public activities, or searches every activity the actor may view when ?q= is set.
func (api *libraryApi) library(ctx echo.Context) error {
	var params LibraryQuery
	if err := bindAndValidate(ctx, &params); err != nil {
		return err
	}
	t := activity.Type(params.Type)

	var (
		found []summary.Summary
		err   error
	)
	if params.Search != "" {
		found, err = api.summaries.Search(ctx.Request().Context(), contextActor(ctx), t, params.Search)
	} else {
		found, err = api.summaries.GetNonPrivate(ctx.Request().Context(), t)
	}
	if err != nil {
		return errors.Wrap(err, "listing library")
	}

	if params.LanguageCode != "" {
		filtered := make([]summary.Summary, 0, len(found))
		for _, s := range found {
			if s.LanguageCode == params.LanguageCode {
				filtered = append(filtered, s)
			}
		}
		found = filtered
	}
	return ctx.JSON(http.StatusOK, found)
}

func (api *libraryApi) creatorDashboard(ctx echo.Context) error {
	t, err := typeQuery(ctx)
	if err != nil {
		return err
	}
	found, err := api.summaries.GetAtLeastEditable(ctx.Request().Context(), t, contextActor(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing editable activities")
	}
	return ctx.JSON(http.StatusOK, found)
}

func (api *libraryApi) summary(ctx echo.Context) error {
	ref, err := activityRef(ctx)
	if err != nil {
		return err
	}
	s, err := api.summaries.Get(ctx.Request().Context(), ref.Type, ref.ID)
	if err != nil {
		return errors.Wrap(err, "getting summary")
	}
	if !s.IsViewableBy(contextActor(ctx)) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *libraryApi) allCommits(ctx echo.Context) error {
	pageSize, err := intQuery(ctx, "page_size")
	if err != nil {
		return err
	}
	page, err := api.commits.QueryAllCommits(ctx.Request().Context(), pageSize, ctx.QueryParam("cursor"))
	if err != nil {
		return errors.Wrap(err, "querying commits")
	}
	return ctx.JSON(http.StatusOK, page)
}

// publicCommits pages over the commits left public; ?max_age= is in seconds.
func (api *libraryApi) publicCommits(ctx echo.Context) error {
	pageSize, err := intQuery(ctx, "page_size")
	if err != nil {
		return err
	}
	maxAge, err := intQuery(ctx, "max_age")
	if err != nil {
		return err
	}
	page, err := api.commits.QueryNonPrivateCommits(
		ctx.Request().Context(), pageSize, ctx.QueryParam("cursor"), time.Duration(maxAge)*time.Second,
	)
	if err != nil {
		return errors.Wrap(err, "querying public commits")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *libraryApi) latestCommit(ctx echo.Context) error {
	ref, err := activityRef(ctx)
	if err != nil {
		return err
	}
	s, err := api.summaries.Get(ctx.Request().Context(), ref.Type, ref.ID)
	if err == nil && !s.IsViewableBy(contextActor(ctx)) {
		return errHttpNotFound
	}
	entry, err := api.commits.GetLatestCommit(ctx.Request().Context(), ref)
	if err != nil {
		return errors.Wrap(err, "getting latest commit")
	}
	return ctx.JSON(http.StatusOK, entry)
}

type LibraryQuery struct {
	Type         string `json:"type" query:"type" validate:"omitempty,activitytype"`
	Search       string `json:"q" query:"q"`
	LanguageCode string `json:"language_code" query:"language_code" validate:"omitempty,langcode"`
}
