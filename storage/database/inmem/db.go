package inmemdb

import (
	"sort"
	"sync"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/school"
	"github.com/trezcool/escuela/core/user"
)

type (
	// DB keeps every table in memory; it is meant for tests and local runs.
	DB struct {
		user   *table[user.User]
		group  *table[school.Group]
		course *table[school.Course]
		enroll *table[school.Enrollment]
		grade  *table[school.Grade]
		doc    *table[school.Document]
	}

	table[T any] struct {
		mutex   sync.RWMutex
		rows    map[int]*T
		pkCount int
	}
)

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[int]*T)}
}

func Open() *DB {
	return &DB{
		user:   newTable[user.User](),
		group:  newTable[school.Group](),
		course: newTable[school.Course](),
		enroll: newTable[school.Enrollment](),
		grade:  newTable[school.Grade](),
		doc:    newTable[school.Document](),
	}
}

// Reset drops every row and restarts the primary key counters.
func (db *DB) Reset() {
	db.user.reset()
	db.group.reset()
	db.course.reset()
	db.enroll.reset()
	db.grade.reset()
	db.doc.reset()
}

func (t *table[T]) reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.rows = make(map[int]*T)
	t.pkCount = 0
}

func (t *table[T]) insert(row T, setID func(*T, int)) T {
	t.pkCount++
	setID(&row, t.pkCount)
	t.rows[t.pkCount] = &row
	return row
}

// all returns the rows ordered by primary key.
func (t *table[T]) all() []T {
	rows := make([]T, 0, len(t.rows))
	for id := 1; id <= t.pkCount; id++ {
		if row, ok := t.rows[id]; ok {
			rows = append(rows, *row)
		}
	}
	return rows
}

// sortRows applies ordering the way ORDER BY would, the first ordering being the primary key of the sort.
// Fields lessFor does not know are ignored.
func sortRows[T any](rows []T, ordering []core.DBOrdering, lessFor func(field string) func(a, b T) bool) {
	for i := len(ordering) - 1; i >= 0; i-- {
		ord := ordering[i]
		less := lessFor(ord.Field)
		if less == nil {
			continue
		}
		sort.SliceStable(rows, func(a, b int) bool {
			if ord.Ascending {
				return less(rows[a], rows[b])
			}
			return less(rows[b], rows[a])
		})
	}
}
