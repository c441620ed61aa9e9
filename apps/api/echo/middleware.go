package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	metricsvc "github.com/trezcool/escuela/services/metrics"
)

// rateLimit throttles a public route per client IP.
func (s *Server) rateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if s.deps.Limiter == nil {
				return next(ctx)
			}
			lctx, ok, err := s.deps.Limiter.Allow(ctx.Request().Context(), ctx.Path()+":"+ctx.RealIP())
			if err != nil {
				return errors.Wrap(err, "rate limiting")
			}
			if lctx.Limit > 0 {
				h := ctx.Response().Header()
				h.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
				h.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
				h.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
			}
			if !ok {
				if ctx.Path() == loginPath {
					s.loginAttempt(metricsvc.LoginRateLimited)
				}
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

// observe records the latency of every request.
func (s *Server) observe() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err)
			}
			s.deps.Metrics.ObserveRequest(ctx.Request().Method, ctx.Path(), ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}

func (s *Server) loginAttempt(outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.LoginAttempt(outcome)
	}
}
