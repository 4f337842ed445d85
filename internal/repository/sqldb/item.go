package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository"
)

var _ repository.ItemRepository = (*ItemStore)(nil)

// ItemStore reads and writes the items table.
type ItemStore struct {
	conn *sql.DB
}

const itemColumns = `id, title, author, genre, rating, review, image_path, user_id, is_private`

// Create inserts a review and fills item.ID.
func (s *ItemStore) Create(ctx context.Context, item *model.Item) error {
	err := s.conn.QueryRowContext(ctx,
		`INSERT INTO items (author, genre, title, review, rating, image_path, user_id, is_private)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		item.Author,
		item.Genre,
		item.Title,
		item.Review,
		item.Rating,
		nullString(item.ImagePath),
		item.UserID,
		item.IsPrivate,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("sqldb: inserting item %q: %w", item.Title, err)
	}
	return nil
}

// GetByID retrieves a review regardless of its visibility.
// Returns apperror.ErrNotFound if no review exists with that id.
func (s *ItemStore) GetByID(ctx context.Context, id int64) (*model.Item, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id)

	var item model.Item
	if err := scanItem(row, &item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("item", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqldb: getting item %d: %w", id, err)
	}
	return &item, nil
}

// ListPublic returns every public review in the order selected by sort.
//
// The ORDER BY clause comes from a closed switch over model.SortKey, never
// from user input, so building it with string concatenation is safe.
func (s *ItemStore) ListPublic(ctx context.Context, sort model.SortKey) ([]model.Item, error) {
	orderBy := "id ASC"
	switch sort {
	case model.SortTitleAsc:
		orderBy = "title ASC, id ASC"
	case model.SortRating:
		orderBy = "rating DESC, id ASC"
	}

	return s.query(ctx, "listing public items",
		`SELECT `+itemColumns+` FROM items WHERE is_private = FALSE ORDER BY `+orderBy)
}

// ListPrivateByUser returns the private reviews owned by userID.
func (s *ItemStore) ListPrivateByUser(ctx context.Context, userID int64) ([]model.Item, error) {
	return s.query(ctx, "listing private items",
		`SELECT `+itemColumns+` FROM items
		 WHERE user_id = $1 AND is_private = TRUE
		 ORDER BY id ASC`,
		userID)
}

// SearchPublic matches term as a case-insensitive substring of title,
// author or genre.
func (s *ItemStore) SearchPublic(ctx context.Context, term string) ([]model.Item, error) {
	return s.query(ctx, "searching items",
		`SELECT `+itemColumns+` FROM items
		 WHERE (LOWER(title) LIKE '%' || $1 || '%'
		     OR LOWER(author) LIKE '%' || $1 || '%'
		     OR LOWER(genre) LIKE '%' || $1 || '%')
		   AND is_private = FALSE
		 ORDER BY id ASC`,
		strings.ToLower(term))
}

// ListPublicByGenre matches genre exactly, ignoring case.
func (s *ItemStore) ListPublicByGenre(ctx context.Context, genre string) ([]model.Item, error) {
	return s.query(ctx, "filtering items by genre",
		`SELECT `+itemColumns+` FROM items
		 WHERE LOWER(genre) = $1 AND is_private = FALSE
		 ORDER BY id ASC`,
		strings.ToLower(genre))
}

// CountPublic returns the number of public reviews, shown in the page header.
func (s *ItemStore) CountPublic(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE is_private = FALSE`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqldb: counting public items: %w", err)
	}
	return n, nil
}

// Update writes the editable fields. Owner, visibility and image are left
// untouched.
func (s *ItemStore) Update(ctx context.Context, item *model.Item) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE items
		 SET title = $1, author = $2, genre = $3, review = $4, rating = $5
		 WHERE id = $6`,
		item.Title,
		item.Author,
		item.Genre,
		item.Review,
		item.Rating,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("sqldb: updating item %d: %w", item.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("item", strconv.FormatInt(item.ID, 10))
	}
	return nil
}

// Delete removes a review by id.
func (s *ItemStore) Delete(ctx context.Context, id int64) error {
	result, err := s.conn.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("sqldb: deleting item %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("item", strconv.FormatInt(id, 10))
	}
	return nil
}

// query runs a multi-row SELECT over itemColumns. what is used in the
// wrapped error.
func (s *ItemStore) query(ctx context.Context, what, query string, args ...any) ([]model.Item, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqldb: %s: %w", what, err)
	}
	defer rows.Close()

	items := make([]model.Item, 0)
	for rows.Next() {
		var item model.Item
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("sqldb: scanning item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: iterating items: %w", err)
	}
	return items, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner, item *model.Item) error {
	var (
		imagePath sql.NullString
		userID    sql.NullInt64
	)
	if err := sc.Scan(
		&item.ID, &item.Title, &item.Author, &item.Genre, &item.Rating,
		&item.Review, &imagePath, &userID, &item.IsPrivate,
	); err != nil {
		return err
	}
	item.ImagePath = imagePath.String
	item.UserID = userID.Int64
	return nil
}
