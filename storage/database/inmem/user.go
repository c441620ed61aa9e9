package inmemdb

import (
	"context"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/user"
)

// tables are always locked in this order: user, group, course, enroll, grade, doc

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) emailTaken(email string, excludedID int) bool {
	for _, usr := range repo.db.user.rows {
		if usr.Email == email && usr.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *userRepository) groupExists(id null.Int) bool {
	if !id.Valid {
		return true
	}
	repo.db.group.mutex.RLock()
	defer repo.db.group.mutex.RUnlock()
	_, ok := repo.db.group.rows[id.Int]
	return ok
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.user.mutex.Lock()
	defer repo.db.user.mutex.Unlock()

	if repo.emailTaken(usr.Email, 0) {
		return user.User{}, user.ErrEmailExists
	}
	if !repo.groupExists(usr.GrupoID) {
		return user.User{}, user.ErrGroupNotFound
	}
	return repo.db.user.insert(usr, func(u *user.User, id int) { u.ID = id }), nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id int) (user.User, error) {
	repo.db.user.mutex.RLock()
	defer repo.db.user.mutex.RUnlock()

	if usr, ok := repo.db.user.rows[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.user.mutex.RLock()
	defer repo.db.user.mutex.RUnlock()

	for _, usr := range repo.db.user.rows {
		if usr.Email == email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) FilterUsers(_ context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	repo.db.user.mutex.RLock()
	defer repo.db.user.mutex.RUnlock()

	search := strings.ToLower(filter.Search)
	users := make([]user.User, 0)
	for _, usr := range repo.db.user.all() {
		if search != "" && !matchesSearch(usr, search) {
			continue
		}
		if filter.Roles != nil && !hasRole(usr, filter.Roles) {
			continue
		}
		if filter.GrupoID != nil && (!usr.GrupoID.Valid || usr.GrupoID.Int != *filter.GrupoID) {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		users = append(users, usr)
	}

	sortRows(users, ordering, userLess)
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.user.mutex.Lock()
	defer repo.db.user.mutex.Unlock()

	if _, ok := repo.db.user.rows[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr.ID) {
		return user.User{}, user.ErrEmailExists
	}
	if !repo.groupExists(usr.GrupoID) {
		return user.User{}, user.ErrGroupNotFound
	}
	repo.db.user.rows[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, id int, t time.Time) error {
	repo.db.user.mutex.Lock()
	defer repo.db.user.mutex.Unlock()

	usr, ok := repo.db.user.rows[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin = null.TimeFrom(t)
	return nil
}

func matchesSearch(usr user.User, search string) bool {
	for _, s := range []string{usr.Nombre, usr.ApellidoPaterno, usr.ApellidoMaterno, usr.Email} {
		if strings.Contains(strings.ToLower(s), search) {
			return true
		}
	}
	return false
}

func hasRole(usr user.User, roles []user.Role) bool {
	for _, r := range roles {
		if usr.Rol == r {
			return true
		}
	}
	return false
}

func userLess(field string) func(a, b user.User) bool {
	switch field {
	case "id":
		return func(a, b user.User) bool { return a.ID < b.ID }
	case "email":
		return func(a, b user.User) bool { return a.Email < b.Email }
	case "nombre":
		return func(a, b user.User) bool { return a.Nombre < b.Nombre }
	case "created_at":
		return func(a, b user.User) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	return nil
}
