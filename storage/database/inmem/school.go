package inmemdb

import (
	"context"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/school"
)

type schoolRepository struct {
	db *DB
}

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateGroup(_ context.Context, g school.Group) (school.Group, error) {
	repo.db.group.mutex.Lock()
	defer repo.db.group.mutex.Unlock()

	for _, grp := range repo.db.group.rows {
		if grp.Nombre == g.Nombre {
			return school.Group{}, school.ErrGroupExists
		}
	}
	return repo.db.group.insert(g, func(g *school.Group, id int) { g.ID = id }), nil
}

func (repo *schoolRepository) QueryGroups(_ context.Context) ([]school.Group, error) {
	repo.db.group.mutex.RLock()
	defer repo.db.group.mutex.RUnlock()
	return repo.db.group.all(), nil
}

func (repo *schoolRepository) CreateCourse(_ context.Context, c school.Course) (school.Course, error) {
	repo.db.course.mutex.Lock()
	defer repo.db.course.mutex.Unlock()
	return repo.db.course.insert(c, func(c *school.Course, id int) { c.ID = id }), nil
}

func (repo *schoolRepository) GetCourse(_ context.Context, id int) (school.Course, error) {
	repo.db.course.mutex.RLock()
	defer repo.db.course.mutex.RUnlock()

	if c, ok := repo.db.course.rows[id]; ok {
		return *c, nil
	}
	return school.Course{}, school.ErrNotFound
}

func (repo *schoolRepository) QueryCourses(_ context.Context, docenteID *int, ordering ...core.DBOrdering) ([]school.Course, error) {
	repo.db.course.mutex.RLock()
	defer repo.db.course.mutex.RUnlock()

	courses := make([]school.Course, 0)
	for _, c := range repo.db.course.all() {
		if docenteID != nil && (!c.DocenteID.Valid || c.DocenteID.Int != *docenteID) {
			continue
		}
		courses = append(courses, c)
	}
	sortRows(courses, ordering, courseLess)
	return courses, nil
}

func (repo *schoolRepository) UpdateCourse(_ context.Context, c school.Course) (school.Course, error) {
	repo.db.course.mutex.Lock()
	defer repo.db.course.mutex.Unlock()

	if _, ok := repo.db.course.rows[c.ID]; !ok {
		return school.Course{}, school.ErrNotFound
	}
	repo.db.course.rows[c.ID] = &c
	return c, nil
}

func (repo *schoolRepository) DeleteCourse(_ context.Context, id int) error {
	repo.db.course.mutex.Lock()
	defer repo.db.course.mutex.Unlock()
	repo.db.enroll.mutex.RLock()
	defer repo.db.enroll.mutex.RUnlock()
	repo.db.grade.mutex.RLock()
	defer repo.db.grade.mutex.RUnlock()

	if _, ok := repo.db.course.rows[id]; !ok {
		return school.ErrNotFound
	}
	for _, e := range repo.db.enroll.rows {
		if e.CursoID == id {
			return school.ErrCourseInUse
		}
	}
	for _, g := range repo.db.grade.rows {
		if g.CursoID == id {
			return school.ErrCourseInUse
		}
	}
	delete(repo.db.course.rows, id)
	return nil
}

func (repo *schoolRepository) Enroll(_ context.Context, e school.Enrollment) (school.Enrollment, error) {
	repo.db.enroll.mutex.Lock()
	defer repo.db.enroll.mutex.Unlock()

	for _, row := range repo.db.enroll.rows {
		if row.AlumnoID == e.AlumnoID && row.CursoID == e.CursoID {
			return school.Enrollment{}, school.ErrAlreadyEnrolled
		}
	}
	return repo.db.enroll.insert(e, func(e *school.Enrollment, id int) { e.ID = id }), nil
}

func (repo *schoolRepository) IsEnrolled(_ context.Context, alumnoID, cursoID int) (bool, error) {
	repo.db.enroll.mutex.RLock()
	defer repo.db.enroll.mutex.RUnlock()

	for _, row := range repo.db.enroll.rows {
		if row.AlumnoID == alumnoID && row.CursoID == cursoID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *schoolRepository) CoursesByStudent(_ context.Context, alumnoID int) ([]school.Course, error) {
	repo.db.course.mutex.RLock()
	defer repo.db.course.mutex.RUnlock()
	repo.db.enroll.mutex.RLock()
	defer repo.db.enroll.mutex.RUnlock()

	courses := make([]school.Course, 0)
	for _, e := range repo.db.enroll.all() {
		if e.AlumnoID != alumnoID {
			continue
		}
		if c, ok := repo.db.course.rows[e.CursoID]; ok {
			courses = append(courses, *c)
		}
	}
	return courses, nil
}

func (repo *schoolRepository) StudentsByCourse(_ context.Context, cursoID int) ([]school.Student, error) {
	repo.db.user.mutex.RLock()
	defer repo.db.user.mutex.RUnlock()
	repo.db.enroll.mutex.RLock()
	defer repo.db.enroll.mutex.RUnlock()

	students := make([]school.Student, 0)
	for _, e := range repo.db.enroll.all() {
		if e.CursoID != cursoID {
			continue
		}
		if usr, ok := repo.db.user.rows[e.AlumnoID]; ok {
			students = append(students, school.Student{
				ID:      usr.ID,
				Email:   usr.Email,
				Nombre:  usr.FullName(),
				GrupoID: usr.GrupoID,
			})
		}
	}
	return students, nil
}

func (repo *schoolRepository) UpsertGrade(_ context.Context, g school.Grade) (school.Grade, error) {
	repo.db.grade.mutex.Lock()
	defer repo.db.grade.mutex.Unlock()

	for id, row := range repo.db.grade.rows {
		if row.AlumnoID == g.AlumnoID && row.CursoID == g.CursoID && row.Periodo == g.Periodo {
			g.ID = id
			repo.db.grade.rows[id] = &g
			return g, nil
		}
	}
	return repo.db.grade.insert(g, func(g *school.Grade, id int) { g.ID = id }), nil
}

func (repo *schoolRepository) GradesByStudent(_ context.Context, alumnoID int) ([]school.Grade, error) {
	repo.db.grade.mutex.RLock()
	defer repo.db.grade.mutex.RUnlock()

	grades := make([]school.Grade, 0)
	for _, g := range repo.db.grade.all() {
		if g.AlumnoID == alumnoID {
			grades = append(grades, g)
		}
	}
	return grades, nil
}

func (repo *schoolRepository) CreateDocument(_ context.Context, d school.Document) (school.Document, error) {
	repo.db.doc.mutex.Lock()
	defer repo.db.doc.mutex.Unlock()
	return repo.db.doc.insert(d, func(d *school.Document, id int) { d.ID = id }), nil
}

func (repo *schoolRepository) GetDocument(_ context.Context, id int) (school.Document, error) {
	repo.db.doc.mutex.RLock()
	defer repo.db.doc.mutex.RUnlock()

	if d, ok := repo.db.doc.rows[id]; ok {
		return *d, nil
	}
	return school.Document{}, school.ErrNotFound
}

func (repo *schoolRepository) QueryDocuments(_ context.Context, filter school.DocumentFilter, ordering ...core.DBOrdering) ([]school.Document, error) {
	repo.db.doc.mutex.RLock()
	defer repo.db.doc.mutex.RUnlock()

	docs := make([]school.Document, 0)
	for _, d := range repo.db.doc.all() {
		if filter.UsuarioID != nil && d.UsuarioID != *filter.UsuarioID {
			continue
		}
		docs = append(docs, d)
	}
	sortRows(docs, ordering, documentLess)
	return docs, nil
}

func courseLess(field string) func(a, b school.Course) bool {
	switch field {
	case "id":
		return func(a, b school.Course) bool { return a.ID < b.ID }
	case "nombre":
		return func(a, b school.Course) bool { return a.Nombre < b.Nombre }
	case "created_at":
		return func(a, b school.Course) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "updated_at":
		return func(a, b school.Course) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	}
	return nil
}

func documentLess(field string) func(a, b school.Document) bool {
	switch field {
	case "id":
		return func(a, b school.Document) bool { return a.ID < b.ID }
	case "tipo":
		return func(a, b school.Document) bool { return a.Tipo < b.Tipo }
	case "size":
		return func(a, b school.Document) bool { return a.Size < b.Size }
	case "created_at":
		return func(a, b school.Document) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	return nil
}
