package echoapi

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/school"
	"github.com/trezcool/escuela/core/user"
)

const (
	maxUploadSize  = 10 << 20 // 10 MiB
	uploadFieldKey = "archivo"
)

func (s *Server) registerDocumentAPI(g *echo.Group) {
	asp := g.Group("/aspirante/documentos", s.gate(user.RoleAspirante))
	asp.POST("", s.uploadDocument, middleware.BodyLimit("11M"))
	asp.GET("", s.ownDocuments)

	dg := g.Group("/documentos", s.gate(user.RoleAdmin))
	dg.GET("", s.queryDocuments)
	dg.GET("/:id/archivo", s.downloadDocument)
}

func (s *Server) uploadDocument(ctx echo.Context) error {
	fh, err := ctx.FormFile(uploadFieldKey)
	if err != nil {
		return core.NewFieldError(uploadFieldKey, "this field is required")
	}
	if fh.Size > maxUploadSize {
		return core.NewFieldError(uploadFieldKey, "file too large (max 10 MiB)")
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	doc, err := s.deps.SchoolSvc.UploadDocument(ctx.Request().Context(), mustIdentity(ctx).ID, school.NewDocument{
		Tipo:          ctx.FormValue("tipo"),
		NombreArchivo: fh.Filename,
		ContentType:   fh.Header.Get(echo.HeaderContentType),
		Size:          fh.Size,
	}, f)
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	return ctx.JSON(http.StatusCreated, doc)
}

func (s *Server) ownDocuments(ctx echo.Context) error {
	docs, err := s.deps.SchoolSvc.DocumentsOf(ctx.Request().Context(), mustIdentity(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying documents")
	}
	return ctx.JSON(http.StatusOK, docs)
}

func (s *Server) queryDocuments(ctx echo.Context) error {
	var filter school.DocumentFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Document{})
	}
	ordering, err := bindOrdering(ctx, school.DocumentOrderingFields)
	if err != nil {
		return err
	}
	docs, err := s.deps.SchoolSvc.QueryDocuments(ctx.Request().Context(), filter, ordering...)
	if err != nil {
		return errors.Wrap(err, "querying documents")
	}
	return ctx.JSON(http.StatusOK, docs)
}

// downloadDocument redirects to a temporary URL when the storage can sign one, it streams the file otherwise.
func (s *Server) downloadDocument(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	doc, err := s.deps.SchoolSvc.GetDocument(reqCtx, id)
	if err != nil {
		return errors.Wrap(err, "finding document")
	}

	if signer, ok := s.deps.SchoolSvc.Files().(core.URLSigner); ok {
		url, err := signer.SignedURL(reqCtx, doc.StorageKey)
		if err != nil {
			return errors.Wrap(err, "signing document URL")
		}
		return ctx.Redirect(http.StatusFound, url)
	}

	rc, err := s.deps.SchoolSvc.OpenDocument(reqCtx, doc)
	if err != nil {
		return errors.Wrap(err, "opening document")
	}
	defer func() { _ = rc.Close() }()

	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": doc.NombreArchivo}))
	ctx.Response().Header().Set(echo.HeaderContentLength, fmt.Sprint(doc.Size))
	return ctx.Stream(http.StatusOK, doc.ContentType, rc)
}
