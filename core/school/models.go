package school

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/escuela/core"
)

// Document types an aspirante may upload.
const (
	DocActaNacimiento       = "acta_nacimiento"
	DocCertificado          = "certificado"
	DocIdentificacion       = "identificacion"
	DocComprobanteDomicilio = "comprobante_domicilio"
	DocFotografia           = "fotografia"
	DocOtro                 = "otro"
)

// Fields courses and documents can be listed by.
var (
	CourseOrderingFields   = []string{"id", "nombre", "created_at", "updated_at"}
	DocumentOrderingFields = []string{"id", "tipo", "size", "created_at"}
)

var DocumentTypes = []string{
	DocActaNacimiento, DocCertificado, DocIdentificacion, DocComprobanteDomicilio, DocFotografia, DocOtro,
}

type (
	Group struct {
		ID        int       `json:"id" db:"id"`
		Nombre    string    `json:"nombre" db:"nombre"`
		Ciclo     string    `json:"ciclo" db:"ciclo"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
	}

	Course struct {
		ID          int       `json:"id" db:"id"`
		Nombre      string    `json:"nombre" db:"nombre"`
		Descripcion string    `json:"descripcion" db:"descripcion"`
		DocenteID   null.Int  `json:"docente_id" db:"docente_id"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
		UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	}

	Enrollment struct {
		ID        int       `json:"id" db:"id"`
		AlumnoID  int       `json:"alumno_id" db:"alumno_id"`
		CursoID   int       `json:"curso_id" db:"curso_id"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
	}

	// Student is the roster view of an enrolled alumno.
	Student struct {
		ID      int      `json:"id" db:"id"`
		Email   string   `json:"email" db:"email"`
		Nombre  string   `json:"nombre" db:"nombre"`
		GrupoID null.Int `json:"grupo_id" db:"grupo_id"`
	}

	Grade struct {
		ID           int       `json:"id" db:"id"`
		AlumnoID     int       `json:"alumno_id" db:"alumno_id"`
		CursoID      int       `json:"curso_id" db:"curso_id"`
		DocenteID    int       `json:"docente_id" db:"docente_id"`
		Periodo      string    `json:"periodo" db:"periodo"`
		Calificacion float64   `json:"calificacion" db:"calificacion"`
		UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
	}

	Document struct {
		ID            int       `json:"id" db:"id"`
		UsuarioID     int       `json:"usuario_id" db:"usuario_id"`
		Tipo          string    `json:"tipo" db:"tipo"`
		NombreArchivo string    `json:"nombre_archivo" db:"nombre_archivo"`
		ContentType   string    `json:"content_type" db:"content_type"`
		Size          int64     `json:"size" db:"size"`
		StorageKey    string    `json:"-" db:"storage_key"`
		CreatedAt     time.Time `json:"created_at" db:"created_at"`
	}
)

// Inputs

type (
	NewGroup struct {
		Nombre string `json:"nombre" validate:"required,max=50,alphanum_"`
		Ciclo  string `json:"ciclo" validate:"omitempty,max=20"`
	}

	NewCourse struct {
		Nombre      string `json:"nombre" validate:"required,max=100"`
		Descripcion string `json:"descripcion" validate:"omitempty,max=1000"`
		DocenteID   *int   `json:"docente_id" validate:"omitempty,min=1"`
	}

	NewEnrollment struct {
		AlumnoID int `json:"alumno_id" validate:"required,min=1"`
		CursoID  int `json:"curso_id" validate:"required,min=1"`
	}

	NewGrade struct {
		AlumnoID     int     `json:"alumno_id" validate:"required,min=1"`
		CursoID      int     `json:"curso_id" validate:"required,min=1"`
		Periodo      string  `json:"periodo" validate:"required,max=20"`
		Calificacion float64 `json:"calificacion" validate:"min=0,max=100"`
	}

	NewDocument struct {
		Tipo          string `form:"tipo" validate:"required,doc_tipo"`
		NombreArchivo string `validate:"required,max=255"`
		ContentType   string `validate:"required"`
		Size          int64  `validate:"min=1"`
	}

	DocumentFilter struct {
		UsuarioID *int `query:"usuario_id"`
	}
)

func (ng *NewGroup) Clean() {
	ng.Nombre = core.CleanString(ng.Nombre)
	ng.Ciclo = core.CleanString(ng.Ciclo)
}

func (nc *NewCourse) Clean() {
	nc.Nombre = core.CleanString(nc.Nombre)
	nc.Descripcion = core.CleanString(nc.Descripcion)
}

func (ng *NewGrade) Clean() {
	ng.Periodo = core.CleanString(ng.Periodo)
}
