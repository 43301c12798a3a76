package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/feed"
	"github.com/trezcool/matembezi/core/feedback"
)

type feedApi struct {
	svc      *feed.Service
	feedback *feedback.Service
}

func registerFeedAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *feed.Service, feedbackSvc *feedback.Service) {
	api := feedApi{svc: svc, feedback: feedbackSvc}

	dg := g.Group("/dashboard", jwt)
	dg.GET("", api.recentUpdates)
	dg.POST("/seen", api.seen)

	sg := g.Group("/subscriptions", jwt)
	sg.GET("", api.subscriptions)
	sg.POST("/threads/:thread_id", api.subscribeToThread)
	sg.POST("/activities/:type/:id", api.subscribeToActivity)

	tg := g.Group("/threads/:thread_id", jwt)
	tg.GET("", api.messages)
	tg.POST("", api.addMessage)
}

func (api *feedApi) recentUpdates(ctx echo.Context) error {
	userID := contextActor(ctx).ID
	queuedMsec, items, err := api.svc.GetRecentUpdates(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "getting recent updates")
	}
	lastSeen, err := api.svc.GetLastSeenNotificationsMsec(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "getting last seen notifications")
	}
	return ctx.JSON(http.StatusOK, DashboardResponse{
		JobQueuedMsec: queuedMsec,
		LastSeenMsec:  lastSeen,
		RecentUpdates: items,
	})
}

func (api *feedApi) seen(ctx echo.Context) error {
	err := api.svc.RecordUserHasSeenNotifications(ctx.Request().Context(), contextActor(ctx).ID, core.NowFunc())
	if err != nil {
		return errors.Wrap(err, "recording seen notifications")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *feedApi) subscriptions(ctx echo.Context) error {
	subs, err := api.svc.GetSubscriptions(ctx.Request().Context(), contextActor(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "getting subscriptions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *feedApi) subscribeToThread(ctx echo.Context) error {
	th, err := api.feedback.GetThread(ctx.Request().Context(), ctx.Param("thread_id"))
	if err != nil {
		return errors.Wrap(err, "getting thread")
	}
	if err = api.svc.SubscribeToThread(ctx.Request().Context(), contextActor(ctx).ID, th.ID); err != nil {
		return errors.Wrap(err, "subscribing to thread")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *feedApi) subscribeToActivity(ctx echo.Context) error {
	ref, err := activityRef(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.SubscribeToActivity(ctx.Request().Context(), contextActor(ctx).ID, ref); err != nil {
		return errors.Wrap(err, "subscribing to activity")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *feedApi) messages(ctx echo.Context) error {
	msgs, err := api.feedback.GetMessages(ctx.Request().Context(), ctx.Param("thread_id"))
	if err != nil {
		return errors.Wrap(err, "getting messages")
	}
	if msgs == nil {
		msgs = []feedback.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *feedApi) addMessage(ctx echo.Context) error {
	var data NewMessageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessageRequest")
	}
	msg, err := api.feedback.AddMessage(
		ctx.Request().Context(), ctx.Param("thread_id"), contextActor(ctx).ID, data.UpdatedStatus, data.UpdatedSubject, data.Text,
	)
	if err != nil {
		return errors.Wrap(err, "adding message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

type (
	DashboardResponse struct {
		JobQueuedMsec int64             `json:"job_queued_msec"`
		LastSeenMsec  int64             `json:"last_seen_msec"`
		RecentUpdates []feed.UpdateItem `json:"recent_updates"`
	}

	NewMessageRequest struct {
		UpdatedStatus  string `json:"updated_status"`
		UpdatedSubject string `json:"updated_subject"`
		Text           string `json:"text"`
	}
)
