package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository"
)

// Validation limits for review fields.
const (
	MaxTitleLength  = 255
	MaxAuthorLength = 255
	MaxGenreLength  = 100
)

// ReviewInput holds the editable fields of a review as submitted by a form.
type ReviewInput struct {
	Title  string
	Author string
	Genre  string
	Review string
	Rating int
}

// normalize trims the input and checks it, returning a validation error
// naming the first bad field.
func (in *ReviewInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Genre = strings.TrimSpace(in.Genre)
	in.Review = strings.TrimSpace(in.Review)

	switch {
	case in.Title == "":
		return apperror.ValidationFailed("title", "title is required")
	case utf8.RuneCountInString(in.Title) > MaxTitleLength:
		return apperror.ValidationFailed("title", fmt.Sprintf("title must be %d characters or fewer", MaxTitleLength))
	case utf8.RuneCountInString(in.Author) > MaxAuthorLength:
		return apperror.ValidationFailed("author", fmt.Sprintf("author must be %d characters or fewer", MaxAuthorLength))
	case utf8.RuneCountInString(in.Genre) > MaxGenreLength:
		return apperror.ValidationFailed("genre", fmt.Sprintf("genre must be %d characters or fewer", MaxGenreLength))
	case in.Rating < model.MinRating || in.Rating > model.MaxRating:
		return apperror.ValidationFailed("rating", fmt.Sprintf("rating must be between %d and %d", model.MinRating, model.MaxRating))
	}
	return nil
}

// CatalogService implements browsing and editing of reviews.
type CatalogService struct {
	items  repository.ItemRepository
	logger *slog.Logger
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(items repository.ItemRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		items:  items,
		logger: logger,
	}
}

// List returns the public catalog in the given order. Unknown sort keys
// have already been mapped to model.SortNone by model.ParseSortKey.
func (s *CatalogService) List(ctx context.Context, sort model.SortKey) ([]model.Item, error) {
	items, err := s.items.ListPublic(ctx, sort)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	return items, nil
}

// Count returns the number of public reviews.
func (s *CatalogService) Count(ctx context.Context) (int, error) {
	n, err := s.items.CountPublic(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting reviews: %w", err)
	}
	return n, nil
}

// Private returns the private reviews owned by userID.
func (s *CatalogService) Private(ctx context.Context, userID int64) ([]model.Item, error) {
	items, err := s.items.ListPrivateByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing private reviews of user %d: %w", userID, err)
	}
	return items, nil
}

// Search matches term against title, author and genre of public reviews.
// It returns the matches and the term formatted for display ("dune" is
// shown as "Dune"). A blank term is a validation error.
func (s *CatalogService) Search(ctx context.Context, term string) ([]model.Item, string, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, "", apperror.ValidationFailed("search", "search term is required")
	}

	items, err := s.items.SearchPublic(ctx, term)
	if err != nil {
		return nil, "", fmt.Errorf("searching reviews for %q: %w", term, err)
	}
	return items, capitalize(term), nil
}

// ByGenre returns public reviews of one genre, ignoring case.
//
// The genre comes from one of two form fields: the tag links on a review
// card post genreTag, the genre dropdown posts genre. A non-empty genreTag
// wins. When both are empty the result is empty.
func (s *CatalogService) ByGenre(ctx context.Context, genreTag, genre string) ([]model.Item, string, error) {
	selected := strings.TrimSpace(genreTag)
	if selected == "" {
		selected = strings.TrimSpace(genre)
	}
	if selected == "" {
		return []model.Item{}, "", nil
	}

	items, err := s.items.ListPublicByGenre(ctx, selected)
	if err != nil {
		return nil, "", fmt.Errorf("filtering reviews by genre %q: %w", selected, err)
	}
	return items, selected, nil
}

// Get returns one review, public or private.
func (s *CatalogService) Get(ctx context.Context, id int64) (*model.Item, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting review %d: %w", id, err)
	}
	return item, nil
}

// Create stores a review owned by owner.
//
// The review is private exactly when source is "users", the tag the form
// carries when it is submitted from the owner's own page. imagePath is the
// stored upload, or "" for none.
func (s *CatalogService) Create(ctx context.Context, owner *model.User, in ReviewInput, source, imagePath string) (*model.Item, error) {
	if owner == nil {
		return nil, apperror.Unauthorized("log in to add a review")
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	item := &model.Item{
		Title:     in.Title,
		Author:    in.Author,
		Genre:     in.Genre,
		Rating:    in.Rating,
		Review:    in.Review,
		ImagePath: imagePath,
		UserID:    owner.ID,
		IsPrivate: model.IsPrivateSource(source),
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("creating review: %w", err)
	}

	s.logger.Info("review created",
		slog.Int64("itemID", item.ID),
		slog.Int64("userID", owner.ID),
		slog.Bool("private", item.IsPrivate),
	)
	return item, nil
}

// Update replaces the editable fields of review id. Owner, visibility and
// image stay as they were.
//
// Any visitor may update any review; there is no ownership check.
func (s *CatalogService) Update(ctx context.Context, id int64, in ReviewInput) error {
	if err := in.normalize(); err != nil {
		return err
	}

	err := s.items.Update(ctx, &model.Item{
		ID:     id,
		Title:  in.Title,
		Author: in.Author,
		Genre:  in.Genre,
		Review: in.Review,
		Rating: in.Rating,
	})
	if err != nil {
		return fmt.Errorf("updating review %d: %w", id, err)
	}

	s.logger.Info("review updated", slog.Int64("itemID", id))
	return nil
}

// Delete removes review id and returns the removed row, so the caller can
// clean up its image.
func (s *CatalogService) Delete(ctx context.Context, id int64) (*model.Item, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("deleting review %d: %w", id, err)
	}
	if err := s.items.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("deleting review %d: %w", id, err)
	}

	s.logger.Info("review deleted", slog.Int64("itemID", id))
	return item, nil
}

// capitalize upper-cases the first letter of s.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
