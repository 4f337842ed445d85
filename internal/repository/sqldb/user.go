package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore reads and writes the users table.
type UserStore struct {
	conn *sql.DB
}

const userColumns = `id, firstname, lastname, email, password, photo`

// Create inserts a new user and fills user.ID from the generated key.
//
// RETURNING id is used instead of Result.LastInsertId because the pgx driver
// does not support LastInsertId; both engines support RETURNING.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	err := s.conn.QueryRowContext(ctx,
		`INSERT INTO users (firstname, lastname, email, password, photo)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Password,
		nullString(user.Photo),
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("sqldb: inserting user %q: %w", user.Email, err)
	}
	return nil
}

// GetByID retrieves a user by id.
// Returns apperror.ErrNotFound if no user exists with that id.
func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("sqldb: getting user %d: %w", id, err)
	}
	return u, nil
}

// GetByEmail retrieves the oldest user registered with the given email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 ORDER BY id ASC LIMIT 1`, email)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("sqldb: getting user by email: %w", err)
	}
	return u, nil
}

// ExistsByIdentity is the duplicate check used by signup.
func (s *UserStore) ExistsByIdentity(ctx context.Context, firstName, lastName, email string) (bool, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE firstname = $1 AND lastname = $2 AND email = $3`,
		firstName, lastName, email,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqldb: checking user identity: %w", err)
	}
	return count > 0, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u     model.User
		photo sql.NullString
	)
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password, &photo); err != nil {
		return nil, err
	}
	u.Photo = photo.String
	return &u, nil
}
