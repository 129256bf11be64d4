package repository

import (
	"context"

	"github.com/iliyamo/movie-library-api/internal/database"
	"github.com/iliyamo/movie-library-api/internal/model"
)

// LibraryRepo manages the `user_library` table.
type LibraryRepo struct{ DB database.Querier }

func NewLibraryRepo(db database.Querier) *LibraryRepo { return &LibraryRepo{DB: db} }

// ListByEmail returns the user's saved movies, newest first.
func (r *LibraryRepo) ListByEmail(ctx context.Context, email string) ([]model.LibraryItem, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,email,imdb_id,title,poster,created_at FROM user_library WHERE email=? ORDER BY created_at DESC, id DESC",
		NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.LibraryItem, 0)
	for rows.Next() {
		var it model.LibraryItem
		if err := rows.Scan(&it.ID, &it.Email, &it.ImdbID, &it.Title, &it.Poster, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Save adds a movie to the user's library.  Saving the same imdbID twice
// yields ErrConflict.
func (r *LibraryRepo) Save(ctx context.Context, item model.LibraryItem) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO user_library (email, imdb_id, title, poster) VALUES (?,?,?,?)",
		NormalizeEmail(item.Email), item.ImdbID, item.Title, item.Poster)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Delete removes one movie from the user's library.  ErrNotFound is returned
// when the user had not saved it.
func (r *LibraryRepo) Delete(ctx context.Context, email, imdbID string) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM user_library WHERE imdb_id=? AND email=?",
		imdbID, NormalizeEmail(email))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
