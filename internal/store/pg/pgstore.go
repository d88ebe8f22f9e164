// Package pg implements the backend core on Postgres. The watch
// transaction runs serializable with row locks taken in sorted identity
// order, so two opposing transfers between the same pair of profiles
// cannot deadlock.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"skillreel.org/internal/blob"
	"skillreel.org/internal/ids"
	"skillreel.org/internal/points"
)

type Store struct {
	db *sql.DB
}

var _ points.Service = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle (used by tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) CreateProfile(ctx context.Context, identity, name string) (points.Profile, error) {
	identity = strings.TrimSpace(identity)
	name = strings.TrimSpace(name)
	if identity == "" || name == "" {
		return points.Profile{}, points.ErrInvalidArgument
	}

	res, err := s.db.ExecContext(ctx, `
		insert into profiles(id, name, points)
		values ($1, $2, $3)
		on conflict (id) do nothing
	`, identity, name, points.InitialGrant)
	if err != nil {
		return points.Profile{}, unavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return points.Profile{}, unavailable(err)
	}
	if affected == 0 {
		return points.Profile{}, points.ErrProfileExists
	}
	return points.Profile{
		ID:        identity,
		Name:      name,
		Points:    points.InitialGrant,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (s *Store) GetProfile(ctx context.Context, identity string) (points.Profile, bool, error) {
	var p points.Profile
	err := s.db.QueryRowContext(ctx, `
		select id, name, points, created_at from profiles where id = $1
	`, identity).Scan(&p.ID, &p.Name, &p.Points, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return points.Profile{}, false, nil
	}
	if err != nil {
		return points.Profile{}, false, unavailable(err)
	}
	return p, true, nil
}

func (s *Store) UpdateProfileName(ctx context.Context, identity, name string) (points.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return points.Profile{}, points.ErrInvalidArgument
	}

	var p points.Profile
	err := s.db.QueryRowContext(ctx, `
		update profiles set name = $2 where id = $1
		returning id, name, points, created_at
	`, identity, name).Scan(&p.ID, &p.Name, &p.Points, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return points.Profile{}, points.ErrProfileRequired
	}
	if err != nil {
		return points.Profile{}, unavailable(err)
	}
	return p, nil
}

func (s *Store) GetBalance(ctx context.Context, identity string) (int64, bool, error) {
	var bal int64
	err := s.db.QueryRowContext(ctx, `select points from profiles where id = $1`, identity).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, unavailable(err)
	}
	return bal, true, nil
}

func (s *Store) UploadVideo(ctx context.Context, creator string, in points.VideoInput) (points.Video, error) {
	if err := validateVideoInput(in); err != nil {
		return points.Video{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return points.Video{}, unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	var dummy int
	err = tx.QueryRowContext(ctx, `select 1 from profiles where id = $1`, creator).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return points.Video{}, points.ErrProfileRequired
	}
	if err != nil {
		return points.Video{}, unavailable(err)
	}

	res, err := tx.ExecContext(ctx, `
		insert into videos(id, title, description, category, creator, content_url)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (id) do nothing
	`, in.ID, in.Title, in.Description, in.Category, creator, in.Content.URL)
	if err != nil {
		return points.Video{}, unavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return points.Video{}, unavailable(err)
	}
	if affected == 0 {
		return points.Video{}, points.ErrVideoExists
	}
	if err := tx.Commit(); err != nil {
		return points.Video{}, unavailable(err)
	}

	return points.Video{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Creator:     creator,
		Content:     in.Content,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *Store) GetVideo(ctx context.Context, id string) (points.Video, error) {
	v, err := scanVideo(s.db.QueryRowContext(ctx, `
		select id, title, description, category, creator, content_url, created_at
		from videos where id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return points.Video{}, points.ErrVideoNotFound
	}
	if err != nil {
		return points.Video{}, unavailable(err)
	}
	return v, nil
}

func (s *Store) ListVideos(ctx context.Context) ([]points.Video, error) {
	return s.listVideos(ctx, `
		select id, title, description, category, creator, content_url, created_at
		from videos
	`)
}

func (s *Store) ListVideosByCreator(ctx context.Context, identity string) ([]points.Video, error) {
	return s.listVideos(ctx, `
		select id, title, description, category, creator, content_url, created_at
		from videos where creator = $1
	`, identity)
}

func (s *Store) listVideos(ctx context.Context, query string, args ...any) ([]points.Video, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var res []points.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		res = append(res, v)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return res, nil
}

// WatchVideo executes one watch transaction. The check order mirrors the
// in-memory store: video existence, self-watch, viewer profile, balance.
// Both profile rows are locked before any balance is read or written.
func (s *Store) WatchVideo(ctx context.Context, viewer, videoID string) (points.WatchRecord, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return points.WatchRecord{}, unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	var creator string
	err = tx.QueryRowContext(ctx, `select creator from videos where id = $1`, videoID).Scan(&creator)
	if errors.Is(err, sql.ErrNoRows) {
		return points.WatchRecord{}, points.ErrVideoNotFound
	}
	if err != nil {
		return points.WatchRecord{}, unavailable(err)
	}
	if creator == viewer {
		return points.WatchRecord{}, points.ErrSelfWatch
	}

	// Lock both rows in sorted order to avoid lock-order inversion
	// between opposing concurrent transfers.
	balances := map[string]int64{}
	for _, id := range sorted(viewer, creator) {
		var bal int64
		err := tx.QueryRowContext(ctx, `select points from profiles where id = $1 for update`, id).Scan(&bal)
		if errors.Is(err, sql.ErrNoRows) {
			if id == viewer {
				return points.WatchRecord{}, points.ErrProfileRequired
			}
			// Upload requires a creator profile and profiles are never
			// deleted, so a missing creator row is corruption.
			return points.WatchRecord{}, unavailable(fmt.Errorf("creator profile %s missing", id))
		}
		if err != nil {
			return points.WatchRecord{}, unavailable(err)
		}
		balances[id] = bal
	}
	if balances[viewer] < points.WatchFee {
		return points.WatchRecord{}, points.ErrInsufficientPoints
	}

	if _, err := tx.ExecContext(ctx, `
		update profiles set points = points - $2 where id = $1
	`, viewer, points.WatchFee); err != nil {
		return points.WatchRecord{}, unavailable(err)
	}
	if _, err := tx.ExecContext(ctx, `
		update profiles set points = points + $2 where id = $1
	`, creator, points.WatchFee); err != nil {
		return points.WatchRecord{}, unavailable(err)
	}

	rec := points.WatchRecord{ID: ids.New(), Viewer: viewer, VideoID: videoID}
	err = tx.QueryRowContext(ctx, `
		insert into watch_records(id, viewer, video_id)
		values ($1, $2, $3)
		returning sequence, watched_at
	`, rec.ID, viewer, videoID).Scan(&rec.Sequence, &rec.Timestamp)
	if err != nil {
		return points.WatchRecord{}, unavailable(err)
	}

	if err := tx.Commit(); err != nil {
		return points.WatchRecord{}, unavailable(err)
	}
	return rec, nil
}

func (s *Store) WatchHistory(ctx context.Context, viewer string) ([]points.WatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, viewer, video_id, sequence, watched_at
		from watch_records where viewer = $1
		order by sequence asc
	`, viewer)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var res []points.WatchRecord
	for rows.Next() {
		var rec points.WatchRecord
		if err := rows.Scan(&rec.ID, &rec.Viewer, &rec.VideoID, &rec.Sequence, &rec.Timestamp); err != nil {
			return nil, unavailable(err)
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return res, nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (points.Video, error) {
	var v points.Video
	var contentURL string
	if err := row.Scan(&v.ID, &v.Title, &v.Description, &v.Category, &v.Creator, &contentURL, &v.CreatedAt); err != nil {
		return points.Video{}, err
	}
	v.Content = blob.Ref{URL: contentURL}
	return v, nil
}

func validateVideoInput(in points.VideoInput) error {
	if strings.TrimSpace(in.ID) == "" ||
		strings.TrimSpace(in.Title) == "" ||
		strings.TrimSpace(in.Description) == "" ||
		!points.ValidCategory(in.Category) ||
		in.Content.IsZero() {
		return points.ErrInvalidArgument
	}
	return nil
}

func sorted(a, b string) []string {
	if a <= b {
		return []string{a, b}
	}
	return []string{b, a}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", points.ErrUnavailable, err)
}
