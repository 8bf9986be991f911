package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/fd1az/etfkit/internal/apperror"
	"github.com/fd1az/etfkit/internal/logger"
)

// errorHandler renders every error as the AppError JSON body.
func errorHandler(log logger.LoggerInterface) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		appErr := toAppError(err)
		if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
			appErr = appErr.WithTraceID(id)
		}

		status := apperror.StatusCodeOf(appErr)
		if status >= http.StatusInternalServerError {
			log.Error(c.Request().Context(), "api request error", "path", c.Path(), "error", appErr.ToLog())
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, appErr.ToResponse())
		}
		if err != nil {
			log.Error(c.Request().Context(), "failed to write error response", "error", err)
		}
	}
}

func toAppError(err error) *apperror.AppError {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
		return apperror.New(apperror.CodeValidationError,
			apperror.WithContext(strings.Join(fields, "; ")))
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code := apperror.CodeInternalError
		switch {
		case httpErr.Code == http.StatusNotFound:
			code = apperror.CodeNotFound
		case httpErr.Code < http.StatusInternalServerError:
			code = apperror.CodeValidationError
		}
		msg := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok && m != "" {
			msg = m
		}
		return apperror.New(code,
			apperror.WithMessage(msg),
			apperror.WithStatusCode(httpErr.Code),
			apperror.WithCause(err))
	}

	return apperror.New(apperror.CodeInternalError, apperror.WithCause(err))
}

// badRequest wraps a bind or parse failure.
func badRequest(code apperror.Code, context string, cause error) error {
	return apperror.New(code,
		apperror.WithContext(context),
		apperror.WithCause(cause),
		apperror.WithStatusCode(http.StatusBadRequest))
}
