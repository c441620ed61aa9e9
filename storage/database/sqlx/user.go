package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/user"
	"github.com/trezcool/escuela/storage/database"
)

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	userColumns = []string{
		"id", "email", "password_hash", "nombre", "apellido_paterno", "apellido_materno", "rol", "grupo_id",
		"telefono", "especialidad", "escuela_procedencia", "is_active", "created_at", "updated_at", "last_login",
	}
)

type userRepository struct {
	db core.DB
}

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

func userError(err error) error {
	switch {
	case database.IsPgError(err, database.UniqueViolation, "usuarios_email_key"):
		return user.ErrEmailExists
	case database.IsPgError(err, database.ForeignKeyViolation, "usuarios_grupo_id_fkey"):
		return user.ErrGroupNotFound
	}
	return err
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	query, args, err := psql.Insert("usuarios").
		Columns(userColumns[1:]...).
		Values(
			usr.Email, usr.PasswordHash, usr.Nombre, usr.ApellidoPaterno, usr.ApellidoMaterno, usr.Rol, usr.GrupoID,
			usr.Telefono, usr.Especialidad, usr.EscuelaProcedencia, usr.IsActive, usr.CreatedAt, usr.UpdatedAt, usr.LastLogin,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building insert query")
	}
	if err = repo.db.GetContext(ctx, &usr.ID, query, args...); err != nil {
		return user.User{}, userError(err)
	}
	return usr, nil
}

func (repo *userRepository) getUser(ctx context.Context, where sq.Sqlizer) (user.User, error) {
	query, args, err := psql.Select(userColumns...).From("usuarios").Where(where).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building select query")
	}
	var usr user.User
	if err = repo.db.GetContext(ctx, &usr, query, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"id": id})
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"email": email})
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	qb := psql.Select(userColumns...).From("usuarios")

	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		qb = qb.Where(sq.Or{
			sq.ILike{"nombre": pattern},
			sq.ILike{"apellido_paterno": pattern},
			sq.ILike{"apellido_materno": pattern},
			sq.ILike{"email": pattern},
		})
	}
	if filter.Roles != nil {
		qb = qb.Where(sq.Eq{"rol": filter.Roles})
	}
	if filter.GrupoID != nil {
		qb = qb.Where(sq.Eq{"grupo_id": *filter.GrupoID})
	}
	if filter.IsActive != nil {
		qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
	}

	query, args, err := qb.OrderBy(orderBy(user.OrderingFields, ordering)...).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building select query")
	}
	users := make([]user.User, 0)
	if err = repo.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	query, args, err := psql.Update("usuarios").
		SetMap(map[string]interface{}{
			"email":               usr.Email,
			"password_hash":       usr.PasswordHash,
			"nombre":              usr.Nombre,
			"apellido_paterno":    usr.ApellidoPaterno,
			"apellido_materno":    usr.ApellidoMaterno,
			"rol":                 usr.Rol,
			"grupo_id":            usr.GrupoID,
			"telefono":            usr.Telefono,
			"especialidad":        usr.Especialidad,
			"escuela_procedencia": usr.EscuelaProcedencia,
			"is_active":           usr.IsActive,
			"updated_at":          usr.UpdatedAt,
		}).
		Where(sq.Eq{"id": usr.ID}).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building update query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return user.User{}, userError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id int, t time.Time) error {
	query, args, err := psql.Update("usuarios").Set("last_login", t).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building update query")
	}
	_, err = repo.db.ExecContext(ctx, query, args...)
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
