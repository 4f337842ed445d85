// Package repository declares the storage contracts used by the service layer.
//
// The service layer only ever sees these interfaces; the concrete SQL
// implementation lives in repository/sqldb and is chosen in server.New.
package repository

import (
	"context"

	"github.com/sakif/bookshelf/internal/model"
)

// UserRepository persists user accounts (the credential store).
type UserRepository interface {
	// Create inserts the user and sets user.ID.
	Create(ctx context.Context, user *model.User) error
	// GetByID returns apperror.ErrNotFound when no user has that id.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByEmail returns the oldest account with that email, or apperror.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// ExistsByIdentity reports whether an account with the exact
	// (firstname, lastname, email) triple exists.
	ExistsByIdentity(ctx context.Context, firstName, lastName, email string) (bool, error)
}

// ItemRepository persists book reviews (the catalog store).
//
// Every List*/Search method except ListPrivateByUser only ever returns
// public items.
type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	GetByID(ctx context.Context, id int64) (*model.Item, error)
	ListPublic(ctx context.Context, sort model.SortKey) ([]model.Item, error)
	ListPrivateByUser(ctx context.Context, userID int64) ([]model.Item, error)
	SearchPublic(ctx context.Context, term string) ([]model.Item, error)
	ListPublicByGenre(ctx context.Context, genre string) ([]model.Item, error)
	CountPublic(ctx context.Context) (int, error)
	// Update writes the five editable fields only.
	Update(ctx context.Context, item *model.Item) error
	Delete(ctx context.Context, id int64) error
}
