package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/school"
	"github.com/trezcool/escuela/storage/database"
)

var (
	courseColumns   = []string{"id", "nombre", "descripcion", "docente_id", "created_at", "updated_at"}
	gradeColumns    = []string{"id", "alumno_id", "curso_id", "docente_id", "periodo", "calificacion", "updated_at"}
	documentColumns = []string{"id", "usuario_id", "tipo", "nombre_archivo", "content_type", "size", "storage_key", "created_at"}
)

type schoolRepository struct {
	db core.DB
}

func NewSchoolRepository(db core.DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) get(ctx context.Context, dest interface{}, qb sq.SelectBuilder) error {
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building select query")
	}
	if err = repo.db.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return school.ErrNotFound
		}
		return err
	}
	return nil
}

func (repo *schoolRepository) selectAll(ctx context.Context, dest interface{}, qb sq.SelectBuilder) error {
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building select query")
	}
	return repo.db.SelectContext(ctx, dest, query, args...)
}

func (repo *schoolRepository) insert(ctx context.Context, id *int, ib sq.InsertBuilder) error {
	query, args, err := ib.Suffix("RETURNING id").ToSql()
	if err != nil {
		return errors.Wrap(err, "building insert query")
	}
	return repo.db.GetContext(ctx, id, query, args...)
}

// Groups

func (repo *schoolRepository) CreateGroup(ctx context.Context, g school.Group) (school.Group, error) {
	err := repo.insert(ctx, &g.ID, psql.Insert("grupos").
		Columns("nombre", "ciclo", "created_at").
		Values(g.Nombre, g.Ciclo, g.CreatedAt))
	if database.IsPgError(err, database.UniqueViolation) {
		return school.Group{}, school.ErrGroupExists
	}
	return g, err
}

func (repo *schoolRepository) QueryGroups(ctx context.Context) ([]school.Group, error) {
	groups := make([]school.Group, 0)
	err := repo.selectAll(ctx, &groups, psql.Select("id", "nombre", "ciclo", "created_at").From("grupos").OrderBy("id"))
	return groups, err
}

// Courses

func (repo *schoolRepository) CreateCourse(ctx context.Context, c school.Course) (school.Course, error) {
	err := repo.insert(ctx, &c.ID, psql.Insert("cursos").
		Columns(courseColumns[1:]...).
		Values(c.Nombre, c.Descripcion, c.DocenteID, c.CreatedAt, c.UpdatedAt))
	return c, err
}

func (repo *schoolRepository) GetCourse(ctx context.Context, id int) (school.Course, error) {
	var c school.Course
	err := repo.get(ctx, &c, psql.Select(courseColumns...).From("cursos").Where(sq.Eq{"id": id}))
	return c, err
}

func (repo *schoolRepository) QueryCourses(ctx context.Context, docenteID *int, ordering ...core.DBOrdering) ([]school.Course, error) {
	qb := psql.Select(courseColumns...).From("cursos").OrderBy(orderBy(school.CourseOrderingFields, ordering)...)
	if docenteID != nil {
		qb = qb.Where(sq.Eq{"docente_id": *docenteID})
	}
	courses := make([]school.Course, 0)
	err := repo.selectAll(ctx, &courses, qb)
	return courses, err
}

func (repo *schoolRepository) UpdateCourse(ctx context.Context, c school.Course) (school.Course, error) {
	query, args, err := psql.Update("cursos").
		Set("nombre", c.Nombre).
		Set("descripcion", c.Descripcion).
		Set("docente_id", c.DocenteID).
		Set("updated_at", c.UpdatedAt).
		Where(sq.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return school.Course{}, errors.Wrap(err, "building update query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return school.Course{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Course{}, school.ErrNotFound
	}
	return c, nil
}

func (repo *schoolRepository) DeleteCourse(ctx context.Context, id int) error {
	query, args, err := psql.Delete("cursos").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		if database.IsPgError(err, database.ForeignKeyViolation) {
			return school.ErrCourseInUse
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.ErrNotFound
	}
	return nil
}

// Enrollment

func (repo *schoolRepository) Enroll(ctx context.Context, e school.Enrollment) (school.Enrollment, error) {
	err := repo.insert(ctx, &e.ID, psql.Insert("inscripciones").
		Columns("alumno_id", "curso_id", "created_at").
		Values(e.AlumnoID, e.CursoID, e.CreatedAt))
	if database.IsPgError(err, database.UniqueViolation) {
		return school.Enrollment{}, school.ErrAlreadyEnrolled
	}
	return e, err
}

func (repo *schoolRepository) IsEnrolled(ctx context.Context, alumnoID, cursoID int) (bool, error) {
	query, args, err := psql.Select("COUNT(*) > 0").
		From("inscripciones").
		Where(sq.Eq{"alumno_id": alumnoID, "curso_id": cursoID}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building select query")
	}
	var enrolled bool
	err = repo.db.GetContext(ctx, &enrolled, query, args...)
	return enrolled, err
}

func (repo *schoolRepository) CoursesByStudent(ctx context.Context, alumnoID int) ([]school.Course, error) {
	cols := make([]string, len(courseColumns))
	for i, c := range courseColumns {
		cols[i] = "c." + c
	}
	courses := make([]school.Course, 0)
	err := repo.selectAll(ctx, &courses, psql.Select(cols...).
		From("cursos c").
		Join("inscripciones i ON i.curso_id = c.id").
		Where(sq.Eq{"i.alumno_id": alumnoID}).
		OrderBy("i.id"))
	return courses, err
}

func (repo *schoolRepository) StudentsByCourse(ctx context.Context, cursoID int) ([]school.Student, error) {
	students := make([]school.Student, 0)
	err := repo.selectAll(ctx, &students, psql.Select(
		"u.id", "u.email",
		"concat_ws(' ', u.nombre, NULLIF(u.apellido_paterno, ''), NULLIF(u.apellido_materno, '')) AS nombre",
		"u.grupo_id",
	).
		From("usuarios u").
		Join("inscripciones i ON i.alumno_id = u.id").
		Where(sq.Eq{"i.curso_id": cursoID}).
		OrderBy("i.id"))
	return students, err
}

// Grades

func (repo *schoolRepository) UpsertGrade(ctx context.Context, g school.Grade) (school.Grade, error) {
	err := repo.insert(ctx, &g.ID, psql.Insert("calificaciones").
		Columns(gradeColumns[1:]...).
		Values(g.AlumnoID, g.CursoID, g.DocenteID, g.Periodo, g.Calificacion, g.UpdatedAt).
		Suffix("ON CONFLICT (alumno_id, curso_id, periodo) DO UPDATE SET " +
			"calificacion = EXCLUDED.calificacion, docente_id = EXCLUDED.docente_id, updated_at = EXCLUDED.updated_at"))
	return g, err
}

func (repo *schoolRepository) GradesByStudent(ctx context.Context, alumnoID int) ([]school.Grade, error) {
	grades := make([]school.Grade, 0)
	err := repo.selectAll(ctx, &grades, psql.Select(gradeColumns...).
		From("calificaciones").
		Where(sq.Eq{"alumno_id": alumnoID}).
		OrderBy("curso_id", "periodo"))
	return grades, err
}

// Documents

func (repo *schoolRepository) CreateDocument(ctx context.Context, d school.Document) (school.Document, error) {
	err := repo.insert(ctx, &d.ID, psql.Insert("documentos").
		Columns(documentColumns[1:]...).
		Values(d.UsuarioID, d.Tipo, d.NombreArchivo, d.ContentType, d.Size, d.StorageKey, d.CreatedAt))
	return d, err
}

func (repo *schoolRepository) GetDocument(ctx context.Context, id int) (school.Document, error) {
	var d school.Document
	err := repo.get(ctx, &d, psql.Select(documentColumns...).From("documentos").Where(sq.Eq{"id": id}))
	return d, err
}

func (repo *schoolRepository) QueryDocuments(ctx context.Context, filter school.DocumentFilter, ordering ...core.DBOrdering) ([]school.Document, error) {
	qb := psql.Select(documentColumns...).From("documentos").OrderBy(orderBy(school.DocumentOrderingFields, ordering)...)
	if filter.UsuarioID != nil {
		qb = qb.Where(sq.Eq{"usuario_id": *filter.UsuarioID})
	}
	docs := make([]school.Document, 0)
	err := repo.selectAll(ctx, &docs, qb)
	return docs, err
}
