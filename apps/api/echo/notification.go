package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core/notification"
)

type notificationApi struct {
	svc      *notification.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerNotificationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc *notification.Service,
	validate *validator.Validate,
) {
	api := notificationApi{svc: svc, auth: auth, validate: validate}

	ng := g.Group("/notifications", jwt)
	ng.POST("/emails", api.sendEmail, adminMiddleware())
	ng.POST("/admin", api.contactAdmin)
}

// sendEmail queues an email to a user.
func (api *notificationApi) sendEmail(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	job, err := api.svc.SendMailAsync(ctx.Request().Context(), data.To, usr.Email, data.Intent, data.Subject, data.Body)
	if err != nil {
		return errors.Wrap(err, "sending email")
	}
	return ctx.JSON(http.StatusAccepted, JobResponse{ID: job.ID, Type: job.Type})
}

func (api *notificationApi) contactAdmin(ctx echo.Context) error {
	var data AdminMessageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AdminMessageRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.SendMailToAdmin(ctx.Request().Context(), usr.Email, data.Subject, data.Body); err != nil {
		return errors.Wrap(err, "sending email to admin")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Your message has been sent."})
}

type (
	EmailRequest struct {
		To      string `json:"to" validate:"required,email"`
		Intent  string `json:"intent" validate:"required,oneof=invitation reminder"`
		Subject string `json:"subject" validate:"required"`
		Body    string `json:"body" validate:"required"`
	}

	AdminMessageRequest struct {
		Subject string `json:"subject" validate:"required"`
		Body    string `json:"body" validate:"required"`
	}
)
