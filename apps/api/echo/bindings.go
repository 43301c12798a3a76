package echoapi

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/versioned"
)

// structValidator plugs the validator into echo.Context.Validate.
type structValidator struct {
	validate *validator.Validate
}

func (sv structValidator) Validate(i interface{}) error {
	return sv.validate.Struct(i)
}

// bindAndValidate binds the request body to data then validates its struct tags.
func bindAndValidate(ctx echo.Context, data interface{}) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrapf(err, "binding to %T", data)
	}
	return ctx.Validate(data)
}

// intParam parses a path parameter, 0 when absent.
func intParam(ctx echo.Context, name string) (int, error) {
	return parseInt(name, ctx.Param(name))
}

// intQuery parses a query parameter, 0 when absent.
func intQuery(ctx echo.Context, name string) (int, error) {
	return parseInt(name, ctx.QueryParam(name))
}

func parseInt(name, val string) (int, error) {
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewValidationError(err, core.FieldError{Field: name, Error: "must be an integer"})
	}
	return n, nil
}

func boolQuery(ctx echo.Context, name string) bool {
	b, _ := strconv.ParseBool(ctx.QueryParam(name))
	return b
}

// activityRef reads the :type and :id path parameters.
func activityRef(ctx echo.Context) (activity.Ref, error) {
	t, err := activity.ParseType(ctx.Param("type"))
	if err != nil {
		return activity.Ref{}, err
	}
	return activity.Ref{Type: t, ID: ctx.Param("id")}, nil
}

// typeQuery reads the optional ?type= filter; empty means every type.
func typeQuery(ctx echo.Context) (activity.Type, error) {
	val := ctx.QueryParam("type")
	if val == "" {
		return "", nil
	}
	return activity.ParseType(val)
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	// UpdateRequest is the payload of activity updates.
	UpdateRequest struct {
		Version       int                 `json:"version" validate:"required,min=1"`
		ChangeList    []versioned.Command `json:"change_list" validate:"required"`
		CommitMessage string              `json:"commit_message"`
	}

	RevertRequest struct {
		CurrentVersion  int `json:"current_version" validate:"required,min=1"`
		RevertToVersion int `json:"revert_to_version" validate:"required,min=1"`
	}
)
