package sqlxrepos

import "github.com/trezcool/escuela/core"

// orderBy turns ordering into ORDER BY terms, skipping fields outside allowed; id breaks ties.
func orderBy(allowed []string, ordering []core.DBOrdering) []string {
	terms := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		for _, field := range allowed {
			if ord.Field == field {
				terms = append(terms, ord.String())
				break
			}
		}
	}
	return append(terms, "id ASC")
}
