package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escuela/core/school"
	"github.com/trezcool/escuela/core/user"
)

func (s *Server) registerSchoolAPI(g *echo.Group) {
	admin := s.gate(user.RoleAdmin)

	g.GET("/grupos", s.queryGroups, s.gate(user.RoleAdmin, user.RoleDocente))
	g.POST("/grupos", s.createGroup, admin)

	g.GET("/cursos", s.queryCourses, s.gate())
	g.POST("/cursos", s.createCourse, admin)
	g.PUT("/cursos/:id", s.updateCourse, admin)
	g.DELETE("/cursos/:id", s.deleteCourse, admin)

	g.POST("/inscripciones", s.enroll, admin)

	dg := g.Group("/docente", s.gate(user.RoleDocente))
	dg.GET("/cursos", s.taughtCourses)
	dg.GET("/cursos/:id/alumnos", s.courseStudents)
	dg.POST("/calificaciones", s.gradeStudent)

	ag := g.Group("/alumno", s.gate(user.RoleAlumno))
	ag.GET("/cursos", s.enrolledCourses)
	ag.GET("/calificaciones", s.ownGrades)
}

// Handlers

func (s *Server) queryGroups(ctx echo.Context) error {
	groups, err := s.deps.SchoolSvc.QueryGroups(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (s *Server) createGroup(ctx echo.Context) error {
	var data school.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	grp, err := s.deps.SchoolSvc.CreateGroup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (s *Server) queryCourses(ctx echo.Context) error {
	ordering, err := bindOrdering(ctx, school.CourseOrderingFields)
	if err != nil {
		return err
	}
	courses, err := s.deps.SchoolSvc.QueryCourses(ctx.Request().Context(), ordering...)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (s *Server) createCourse(ctx echo.Context) error {
	var data school.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	course, err := s.deps.SchoolSvc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, course)
}

func (s *Server) updateCourse(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data school.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	course, err := s.deps.SchoolSvc.UpdateCourse(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (s *Server) deleteCourse(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := s.deps.SchoolSvc.DeleteCourse(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) enroll(ctx echo.Context) error {
	var data school.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	enrollment, err := s.deps.SchoolSvc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling alumno")
	}
	return ctx.JSON(http.StatusCreated, enrollment)
}

func (s *Server) taughtCourses(ctx echo.Context) error {
	courses, err := s.deps.SchoolSvc.CoursesTaughtBy(ctx.Request().Context(), mustIdentity(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying taught courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (s *Server) courseStudents(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	students, err := s.deps.SchoolSvc.StudentsOfTaughtCourse(ctx.Request().Context(), mustIdentity(ctx).ID, id)
	if err != nil {
		return errors.Wrap(err, "querying course students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (s *Server) gradeStudent(ctx echo.Context) error {
	var data school.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	grade, err := s.deps.SchoolSvc.GradeStudent(ctx.Request().Context(), mustIdentity(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "grading alumno")
	}
	return ctx.JSON(http.StatusOK, grade)
}

func (s *Server) enrolledCourses(ctx echo.Context) error {
	courses, err := s.deps.SchoolSvc.CoursesOfStudent(ctx.Request().Context(), mustIdentity(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying enrolled courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (s *Server) ownGrades(ctx echo.Context) error {
	grades, err := s.deps.SchoolSvc.GradesOfStudent(ctx.Request().Context(), mustIdentity(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}
