package echoapi

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/escuela/core"
)

const orderingParam = "ordering"

// bindOrdering reads `?ordering=-created_at,nombre` into orderings, a leading "-" meaning descending.
// A field outside allowed is a validation error on "ordering"; empty terms are skipped.
func bindOrdering(ctx echo.Context, allowed []string) ([]core.DBOrdering, error) {
	raw := strings.TrimSpace(ctx.QueryParam(orderingParam))
	if raw == "" {
		return nil, nil
	}

	var orderings []core.DBOrdering
	seen := make(map[string]bool)
	for _, term := range strings.Split(raw, ",") {
		term = strings.TrimSpace(term)
		field := strings.TrimPrefix(term, "-")
		if field == "" {
			continue
		}
		if !contains(allowed, field) {
			return nil, core.NewFieldError(orderingParam,
				fmt.Sprintf("cannot order by %q, expected one of: %s", field, strings.Join(allowed, ", ")))
		}
		if seen[field] {
			continue
		}
		seen[field] = true
		orderings = append(orderings, core.DBOrdering{Field: field, Ascending: !strings.HasPrefix(term, "-")})
	}
	return orderings, nil
}

func contains(values []string, v string) bool {
	for _, val := range values {
		if val == v {
			return true
		}
	}
	return false
}
