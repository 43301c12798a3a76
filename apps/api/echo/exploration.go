package echoapi

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/exploration"
	"github.com/trezcool/matembezi/core/feedback"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/stats"
)

type explorationApi struct {
	svc      *exploration.Service
	rights   *rights.Service
	stats    *stats.Service
	feedback *feedback.Service
}

func registerExplorationAPI(
	g *echo.Group,
	jwt, optionalJWT echo.MiddlewareFunc,
	svc *exploration.Service,
	rgts *rights.Service,
	statsSvc *stats.Service,
	feedbackSvc *feedback.Service,
) {
	api := explorationApi{svc: svc, rights: rgts, stats: statsSvc, feedback: feedbackSvc}

	eg := g.Group("/explorations")
	eg.POST("", api.create, jwt, authorMiddleware())

	// learners may be anonymous
	eg.GET("/:id", api.retrieve, optionalJWT)
	eg.GET("/:id/versions/:version", api.retrieveVersion, optionalJWT)
	eg.GET("/:id/history", api.history, optionalJWT)
	eg.POST("/:id/answers", api.submitAnswer, optionalJWT)
	eg.GET("/:id/threads", api.threads, optionalJWT)
	eg.POST("/:id/threads", api.createThread, optionalJWT)

	eg.PUT("/:id", api.update, jwt)
	eg.POST("/:id/revert", api.revert, jwt)
	eg.DELETE("/:id", api.destroy, jwt)
	eg.GET("/:id/stats/:version/:state", api.stateAnswers, jwt)
	eg.GET("/:id/stats/:version/:state/:calculation", api.calcOutput, jwt)
	eg.POST("/:id/stats/:version/:state/:calculation", api.recompute, jwt)
}

func (api *explorationApi) create(ctx echo.Context) error {
	var data exploration.Exploration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Exploration")
	}
	ent, err := api.svc.Create(ctx.Request().Context(), contextActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating exploration")
	}
	return ctx.JSON(http.StatusCreated, ent)
}

func (api *explorationApi) retrieve(ctx echo.Context) error {
	ent, err := api.svc.Get(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting exploration")
	}
	return ctx.JSON(http.StatusOK, ent)
}

func (api *explorationApi) retrieveVersion(ctx echo.Context) error {
	version, err := intParam(ctx, "version")
	if err != nil {
		return err
	}
	ent, err := api.svc.GetVersion(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), version)
	if err != nil {
		return errors.Wrap(err, "getting exploration version")
	}
	return ctx.JSON(http.StatusOK, ent)
}

func (api *explorationApi) history(ctx echo.Context) error {
	snaps, err := api.svc.History(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting exploration history")
	}
	return ctx.JSON(http.StatusOK, snaps)
}

func (api *explorationApi) update(ctx echo.Context) error {
	var data UpdateRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	ent, err := api.svc.Update(
		ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), data.Version, data.ChangeList, data.CommitMessage,
	)
	if err != nil {
		return errors.Wrap(err, "updating exploration")
	}
	return ctx.JSON(http.StatusOK, ent)
}

func (api *explorationApi) revert(ctx echo.Context) error {
	var data RevertRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	ent, err := api.svc.Revert(
		ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), data.CurrentVersion, data.RevertToVersion,
	)
	if err != nil {
		return errors.Wrap(err, "reverting exploration")
	}
	return ctx.JSON(http.StatusOK, ent)
}

func (api *explorationApi) destroy(ctx echo.Context) error {
	actor := contextActor(ctx)
	force := boolQuery(ctx, "force")
	if force && !actor.IsAdmin {
		return errHttpForbidden
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id"), force); err != nil {
		return errors.Wrap(err, "deleting exploration")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *explorationApi) submitAnswer(ctx echo.Context) error {
	var data AnswerRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerRequest")
	}
	answer, err := stats.ParseAnswer(data.Answer)
	if err != nil {
		return err
	}
	cls, err := api.svc.SubmitAnswer(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), exploration.Submission{
		Version:   data.Version,
		StateName: data.StateName,
		Answer:    answer,
		Subject:   data.Subject,
	})
	if err != nil {
		return errors.Wrap(err, "submitting answer")
	}
	return ctx.JSON(http.StatusOK, ClassificationResponse{
		AnswerGroupIndex: cls.AnswerGroupIndex,
		RuleSpecIndex:    cls.RuleSpecIndex,
		RuleStr:          cls.RuleStr,
		Outcome:          cls.Outcome,
	})
}

func (api *explorationApi) threads(ctx echo.Context) error {
	if _, err := api.svc.Get(ctx.Request().Context(), contextActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "getting exploration")
	}
	threads, err := api.feedback.GetThreadList(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing threads")
	}
	if threads == nil {
		threads = []feedback.Thread{}
	}
	return ctx.JSON(http.StatusOK, threads)
}

func (api *explorationApi) createThread(ctx echo.Context) error {
	var data NewThreadRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	actor := contextActor(ctx)
	if _, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "getting exploration")
	}
	th, err := api.feedback.CreateThread(
		ctx.Request().Context(), ctx.Param("id"), data.StateName, actor.ID, data.Subject, data.Text,
	)
	if err != nil {
		return errors.Wrap(err, "creating thread")
	}
	return ctx.JSON(http.StatusCreated, th)
}

// statsKey reads the stats key from the path, after checking the actor may edit the exploration.
func (api *explorationApi) statsKey(ctx echo.Context) (stats.Key, error) {
	id := ctx.Param("id")
	rgts, err := api.rights.Get(ctx.Request().Context(), activity.Ref{Type: activity.TypeExploration, ID: id})
	if err != nil {
		return stats.Key{}, errors.Wrap(err, "getting exploration rights")
	}
	if !rgts.Content.CanEdit(contextActor(ctx)) {
		return stats.Key{}, core.NewAuthorizationError("You do not have permissions to view the statistics of exploration %s", id)
	}
	version, err := intParam(ctx, "version")
	if err != nil {
		return stats.Key{}, err
	}
	key := stats.Key{ExplorationID: id, ExplorationVersion: version, StateName: ctx.Param("state")}
	return key, key.Validate()
}

func (api *explorationApi) stateAnswers(ctx echo.Context) error {
	key, err := api.statsKey(ctx)
	if err != nil {
		return err
	}
	sa, err := api.stats.GetStateAnswers(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "getting state answers")
	}
	return ctx.JSON(http.StatusOK, sa)
}

func (api *explorationApi) calcOutput(ctx echo.Context) error {
	key, err := api.statsKey(ctx)
	if err != nil {
		return err
	}
	out, err := api.stats.GetCalcOutput(ctx.Request().Context(), key, ctx.Param("calculation"))
	if err != nil {
		return errors.Wrap(err, "getting calculation output")
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api *explorationApi) recompute(ctx echo.Context) error {
	key, err := api.statsKey(ctx)
	if err != nil {
		return err
	}
	job, err := api.stats.EnqueueRecompute(ctx.Request().Context(), key, ctx.Param("calculation"))
	if err != nil {
		return errors.Wrap(err, "enqueuing recomputation")
	}
	return ctx.JSON(http.StatusAccepted, JobResponse{ID: job.ID, Type: job.Type})
}

type (
	AnswerRequest struct {
		Version   int             `json:"version"`
		StateName string          `json:"state_name"`
		Answer    json.RawMessage `json:"answer"`
		// Subject is the answer as the interaction's rules see it.
		Subject json.RawMessage `json:"subject"`
	}

	ClassificationResponse struct {
		AnswerGroupIndex int                 `json:"answer_group_index"`
		RuleSpecIndex    int                 `json:"rule_spec_index"`
		RuleStr          string              `json:"rule_str"`
		Outcome          exploration.Outcome `json:"outcome"`
	}

	NewThreadRequest struct {
		StateName string `json:"state_name" validate:"omitempty,activityname"`
		Subject   string `json:"subject" validate:"required"`
		Text      string `json:"text" validate:"required"`
	}

	JobResponse struct {
		ID   string `json:"job_id"`
		Type string `json:"job_type"`
	}
)
