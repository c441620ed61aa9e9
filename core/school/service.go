package school

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("not found")
	ErrGroupExists       = errors.New("a group with this name already exists")
	ErrAlreadyEnrolled   = errors.New("alumno already enrolled in this course")
	ErrNotEnrolled       = errors.New("alumno is not enrolled in this course")
	ErrNotAlumno         = errors.New("user is not an alumno")
	ErrNotADocente       = errors.New("user is not a docente")
	ErrNotCourseTeacher  = errors.New("course not found")
	ErrCourseInUse       = errors.New("course has enrollments or grades")
	ErrUnsupportedUpload = errors.New("unsupported file type")

	docTipoTag  = "doc_tipo"
	docTipoText = "invalid document type"

	// AllowedContentTypes are the document formats accepted for upload.
	AllowedContentTypes = []string{"application/pdf", "image/jpeg", "image/png"}

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, g Group) (Group, error) // ErrGroupExists
		QueryGroups(ctx context.Context) ([]Group, error)

		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id int) (Course, error)
		// QueryCourses lists courses, only those taught by docenteID when non-nil.
		QueryCourses(ctx context.Context, docenteID *int, ordering ...core.DBOrdering) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id int) error // ErrCourseInUse

		Enroll(ctx context.Context, e Enrollment) (Enrollment, error) // ErrAlreadyEnrolled
		IsEnrolled(ctx context.Context, alumnoID, cursoID int) (bool, error)
		CoursesByStudent(ctx context.Context, alumnoID int) ([]Course, error)
		StudentsByCourse(ctx context.Context, cursoID int) ([]Student, error)

		// UpsertGrade inserts or replaces the grade of (alumno, curso, periodo).
		UpsertGrade(ctx context.Context, g Grade) (Grade, error)
		GradesByStudent(ctx context.Context, alumnoID int) ([]Grade, error)

		CreateDocument(ctx context.Context, d Document) (Document, error)
		GetDocument(ctx context.Context, id int) (Document, error)
		QueryDocuments(ctx context.Context, filter DocumentFilter, ordering ...core.DBOrdering) ([]Document, error)
	}

	// UserGetter is the part of the user service needed to check roles of referenced users.
	UserGetter interface {
		GetByID(ctx context.Context, id int) (user.User, error)
	}

	Service struct {
		repo     Repository
		users    UserGetter
		files    core.FileStorage
		validate *validator.Validate
	}
)

func NewService(repo Repository, users UserGetter, files core.FileStorage, validate *validator.Validate) *Service {
	return &Service{repo: repo, users: users, files: files, validate: validate}
}

// InitValidators registers the school validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(docTipoTag, func(fl validator.FieldLevel) bool {
		tipo := fl.Field().String()
		for _, t := range DocumentTypes {
			if t == tipo {
				return true
			}
		}
		return false
	})
	core.RegisterCustomTranslation(validate, translator, docTipoTag, docTipoText)
}

// Groups

func (svc *Service) CreateGroup(ctx context.Context, ng NewGroup) (Group, error) {
	ng.Clean()
	if err := svc.validate.Struct(ng); err != nil {
		return Group{}, err
	}
	return svc.repo.CreateGroup(ctx, Group{Nombre: ng.Nombre, Ciclo: ng.Ciclo, CreatedAt: nowFunc().UTC()})
}

func (svc *Service) QueryGroups(ctx context.Context) ([]Group, error) {
	return svc.repo.QueryGroups(ctx)
}

// Courses

func (svc *Service) checkDocente(ctx context.Context, id *int) (null.Int, error) {
	if id == nil {
		return null.Int{}, nil
	}
	usr, err := svc.users.GetByID(ctx, *id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return null.Int{}, core.NewFieldError("docente_id", ErrNotADocente.Error())
		}
		return null.Int{}, errors.Wrap(err, "finding docente")
	}
	if !usr.IsDocente() {
		return null.Int{}, core.NewFieldError("docente_id", ErrNotADocente.Error())
	}
	return null.IntFrom(usr.ID), nil
}

func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	nc.Clean()
	if err := svc.validate.Struct(nc); err != nil {
		return Course{}, err
	}
	docenteID, err := svc.checkDocente(ctx, nc.DocenteID)
	if err != nil {
		return Course{}, err
	}
	now := nowFunc().UTC()
	return svc.repo.CreateCourse(ctx, Course{
		Nombre:      nc.Nombre,
		Descripcion: nc.Descripcion,
		DocenteID:   docenteID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) UpdateCourse(ctx context.Context, id int, nc NewCourse) (Course, error) {
	nc.Clean()
	if err := svc.validate.Struct(nc); err != nil {
		return Course{}, err
	}
	course, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	docenteID, err := svc.checkDocente(ctx, nc.DocenteID)
	if err != nil {
		return Course{}, err
	}
	course.Nombre = nc.Nombre
	course.Descripcion = nc.Descripcion
	course.DocenteID = docenteID
	course.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCourse(ctx, course)
}

func (svc *Service) DeleteCourse(ctx context.Context, id int) error {
	return svc.repo.DeleteCourse(ctx, id)
}

func (svc *Service) QueryCourses(ctx context.Context, ordering ...core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, nil, ordering...)
}

func (svc *Service) CoursesTaughtBy(ctx context.Context, docenteID int) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, &docenteID)
}

// taughtCourse returns the course only if docenteID teaches it.
func (svc *Service) taughtCourse(ctx context.Context, docenteID, cursoID int) (Course, error) {
	course, err := svc.repo.GetCourse(ctx, cursoID)
	if err != nil {
		return Course{}, err
	}
	if !course.DocenteID.Valid || course.DocenteID.Int != docenteID {
		return Course{}, ErrNotCourseTeacher
	}
	return course, nil
}

func (svc *Service) StudentsOfTaughtCourse(ctx context.Context, docenteID, cursoID int) ([]Student, error) {
	if _, err := svc.taughtCourse(ctx, docenteID, cursoID); err != nil {
		return nil, err
	}
	return svc.repo.StudentsByCourse(ctx, cursoID)
}

// Enrollment

func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	if err := svc.validate.Struct(ne); err != nil {
		return Enrollment{}, err
	}
	usr, err := svc.users.GetByID(ctx, ne.AlumnoID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Enrollment{}, core.NewFieldError("alumno_id", ErrNotAlumno.Error())
		}
		return Enrollment{}, errors.Wrap(err, "finding alumno")
	}
	if !usr.IsAlumno() {
		return Enrollment{}, core.NewFieldError("alumno_id", ErrNotAlumno.Error())
	}
	if _, err := svc.repo.GetCourse(ctx, ne.CursoID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Enrollment{}, core.NewFieldError("curso_id", "course not found")
		}
		return Enrollment{}, err
	}
	return svc.repo.Enroll(ctx, Enrollment{AlumnoID: ne.AlumnoID, CursoID: ne.CursoID, CreatedAt: nowFunc().UTC()})
}

func (svc *Service) CoursesOfStudent(ctx context.Context, alumnoID int) ([]Course, error) {
	return svc.repo.CoursesByStudent(ctx, alumnoID)
}

// Grades

// GradeStudent records a grade given by docenteID, who must teach the course the alumno is enrolled in.
func (svc *Service) GradeStudent(ctx context.Context, docenteID int, ng NewGrade) (Grade, error) {
	ng.Clean()
	if err := svc.validate.Struct(ng); err != nil {
		return Grade{}, err
	}
	if _, err := svc.taughtCourse(ctx, docenteID, ng.CursoID); err != nil {
		return Grade{}, err
	}
	enrolled, err := svc.repo.IsEnrolled(ctx, ng.AlumnoID, ng.CursoID)
	if err != nil {
		return Grade{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Grade{}, core.NewValidationError(ErrNotEnrolled, core.FieldError{Field: "alumno_id", Error: ErrNotEnrolled.Error()})
	}
	return svc.repo.UpsertGrade(ctx, Grade{
		AlumnoID:     ng.AlumnoID,
		CursoID:      ng.CursoID,
		DocenteID:    docenteID,
		Periodo:      ng.Periodo,
		Calificacion: ng.Calificacion,
		UpdatedAt:    nowFunc().UTC(),
	})
}

func (svc *Service) GradesOfStudent(ctx context.Context, alumnoID int) ([]Grade, error) {
	return svc.repo.GradesByStudent(ctx, alumnoID)
}

// Documents

// UploadDocument stores the file of an aspirante and records it.
func (svc *Service) UploadDocument(ctx context.Context, ownerID int, nd NewDocument, r io.Reader) (Document, error) {
	nd.NombreArchivo = path.Base(core.CleanString(strings.ReplaceAll(nd.NombreArchivo, "\\", "/")))
	nd.ContentType = strings.ToLower(strings.TrimSpace(strings.SplitN(nd.ContentType, ";", 2)[0]))
	if err := svc.validate.Struct(nd); err != nil {
		return Document{}, err
	}
	if !allowedContentType(nd.ContentType) {
		return Document{}, core.NewFieldError("archivo", ErrUnsupportedUpload.Error())
	}

	now := nowFunc().UTC()
	key := storageKey(ownerID, nd.NombreArchivo, now)
	if err := svc.files.Put(ctx, key, r, nd.Size, nd.ContentType); err != nil {
		return Document{}, errors.Wrap(err, "storing file")
	}

	doc, err := svc.repo.CreateDocument(ctx, Document{
		UsuarioID:     ownerID,
		Tipo:          nd.Tipo,
		NombreArchivo: nd.NombreArchivo,
		ContentType:   nd.ContentType,
		Size:          nd.Size,
		StorageKey:    key,
		CreatedAt:     now,
	})
	if err != nil {
		_ = svc.files.Delete(ctx, key)
		return Document{}, errors.Wrap(err, "creating document")
	}
	return doc, nil
}

func (svc *Service) DocumentsOf(ctx context.Context, ownerID int) ([]Document, error) {
	return svc.repo.QueryDocuments(ctx, DocumentFilter{UsuarioID: &ownerID})
}

func (svc *Service) QueryDocuments(ctx context.Context, filter DocumentFilter, ordering ...core.DBOrdering) ([]Document, error) {
	return svc.repo.QueryDocuments(ctx, filter, ordering...)
}

func (svc *Service) GetDocument(ctx context.Context, id int) (Document, error) {
	return svc.repo.GetDocument(ctx, id)
}

// OpenDocument returns the stored file; Files() may also be a core.URLSigner.
func (svc *Service) OpenDocument(ctx context.Context, doc Document) (io.ReadCloser, error) {
	return svc.files.Open(ctx, doc.StorageKey)
}

func (svc *Service) Files() core.FileStorage { return svc.files }

func allowedContentType(ct string) bool {
	for _, allowed := range AllowedContentTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}

// storageKey looks like documentos/<owner>/2024/3/9/<uuid>.pdf
func storageKey(ownerID int, filename string, t time.Time) string {
	return fmt.Sprintf("documentos/%d/%d/%d/%d/%s%s",
		ownerID, t.Year(), t.Month(), t.Day(), uuid.New(), strings.ToLower(path.Ext(filename)))
}
