package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

var kindStatus = map[core.Kind]int{
	core.KindUnauthenticated:     http.StatusUnauthorized,
	core.KindForbidden:           http.StatusForbidden,
	core.KindNotFound:            http.StatusNotFound,
	core.KindConflict:            http.StatusConflict,
	core.KindInvalidInput:        http.StatusBadRequest,
	core.KindUpstreamUnavailable: http.StatusServiceUnavailable,
	core.KindRateLimited:         http.StatusTooManyRequests,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			httpErr *echo.HTTPError
			valErrs validator.ValidationErrors
			appErr  *core.ValidationError
			kindErr *core.Error
		)
		switch {
		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			message = httpErr.Message

		case errors.As(err, &valErrs):
			fldErrs := make(map[string]string, len(valErrs))
			for _, vErr := range valErrs {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs

		case errors.As(err, &appErr):
			code = http.StatusBadRequest
			if status, ok := kindStatus[core.KindOf(appErr.Err)]; ok {
				code = status // eg: 409 when the email is taken
			}
			if appErr.Fields != nil {
				fldErrs := make(map[string]string, len(appErr.Fields))
				for _, fErr := range appErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = appErr.Error()
			}

		case errors.As(err, &kindErr) && kindStatus[kindErr.Kind] != 0:
			code = kindStatus[kindErr.Kind]
			message = kindErr.Msg
			if kindErr.Kind == core.KindUpstreamUnavailable {
				logger.Warn(err.Error(), err)
			}

		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			if ctx.Echo().Debug {
				message = err.Error()
			}

			if usr, ok := ctx.Get(ctxUserKey).(user.User); ok {
				logger.Error(msg, errors.Wrap(err, msg), usr)
			} else {
				logger.Error(msg, errors.Wrap(err, msg))
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
