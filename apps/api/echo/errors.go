package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/auth"
	"github.com/trezcool/escuela/core/school"
	"github.com/trezcool/escuela/core/user"
)

var (
	errHttpNotFound        = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTooManyRequests     = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
	errInvalidData         = "invalid data"
	internalServerErrorMsg = http.StatusText(http.StatusInternalServerError)

	// domain errors & their status codes
	errorCodes = map[error]int{
		auth.ErrInvalidCredentials:    http.StatusUnauthorized,
		auth.ErrMissingToken:          http.StatusForbidden,
		auth.ErrInvalidOrExpiredToken: http.StatusUnauthorized,
		auth.ErrInsufficientRole:      http.StatusForbidden,

		user.ErrEmailExists:    http.StatusConflict,
		user.ErrNotFound:       http.StatusNotFound,
		user.ErrNotAspirante:   http.StatusBadRequest,
		user.ErrGroupNotFound:  http.StatusBadRequest,
		user.ErrPrivilegedRole: http.StatusForbidden,

		school.ErrNotFound:          http.StatusNotFound,
		school.ErrNotCourseTeacher:  http.StatusNotFound,
		school.ErrGroupExists:       http.StatusConflict,
		school.ErrAlreadyEnrolled:   http.StatusConflict,
		school.ErrCourseInUse:       http.StatusConflict,
		school.ErrNotEnrolled:       http.StatusBadRequest,
		school.ErrNotADocente:       http.StatusBadRequest,
		school.ErrNotAlumno:         http.StatusBadRequest,
		school.ErrUnsupportedUpload: http.StatusBadRequest,

		core.ErrFileNotFound: http.StatusNotFound,
	}
)

type errorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
// Server faults only carry their internal message when exposeFaults is set (test mode).
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, exposeFaults bool, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var body errorResponse

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				body.Message = msg
			} else {
				body.Message = http.StatusText(code)
			}
		case validator.ValidationErrors:
			body.Errors = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				body.Errors[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			body.Message = errInvalidData
		case *core.ValidationError:
			if len(origErr.Fields) > 0 {
				body.Errors = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					body.Errors[fErr.Field] = fErr.Error
				}
			}
			code = http.StatusBadRequest
			body.Message = origErr.Error()
		default:
			if c, ok := errorCodes[origErr]; ok {
				code = c
				body.Message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			body.Message = internalServerErrorMsg

			args := []interface{}{errors.Wrap(err, internalServerErrorMsg)}
			if id, ok := contextIdentity(ctx); ok {
				args = append(args, id)
			}
			logger.Error(internalServerErrorMsg, args...)

			if exposeFaults {
				body.Message = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				logger.Error("sending error response", err)
			}
		}
	}
}
