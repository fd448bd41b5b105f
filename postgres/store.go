package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

var _ guests.Store = &Store{}

// Store keeps guests in a PostgreSQL table. Insertion order is the table's
// sequence column and uniqueness is enforced on the normalized email.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to url with the lib/pq driver and checks the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return db, nil
}

// Migrate creates the guests table if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate guests table: %w", err)
	}
	return nil
}

const guestColumns = `name, email, date_of_birth, city, state, country, profession, registered_at`

func (s *Store) Append(ctx context.Context, guest guests.Guest) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	query := `
		INSERT INTO guests (email_key, ` + guestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (email_key) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		guests.NormalizeEmail(guest.Email),
		guest.Name,
		guest.Email,
		guest.DateOfBirth.Format(guests.DateLayout),
		guest.City,
		guest.State,
		guest.Country,
		guest.Profession,
		guest.RegisteredAt.UTC(),
	)
	if err != nil {
		if isTimeout(ctx, err) {
			return guests.NewTimeoutError("Append timed out")
		}
		return guests.NewFailedToWriteError("Failed to insert guest", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return guests.NewFailedToWriteError("Failed to read insert result", err)
	}
	if n == 0 {
		return guests.NewDuplicateEmailError(guest.Email, nil)
	}

	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]guests.Guest, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT seq, `+guestColumns+` FROM guests ORDER BY seq`)
	if err != nil {
		return nil, fetchError(ctx, "ListAll", err)
	}
	defer rows.Close()

	result, _, err := scanGuests(rows)
	if err != nil {
		return nil, fetchError(ctx, "ListAll", err)
	}
	return result, nil
}

func (s *Store) Search(ctx context.Context, query string) ([]guests.Guest, error) {
	q := strings.ToLower(query)
	if q == "" {
		return s.ListAll(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, `+guestColumns+`
		FROM guests
		WHERE strpos(lower(name), $1) > 0 OR strpos(lower(email), $1) > 0
		ORDER BY seq
	`, q)
	if err != nil {
		return nil, fetchError(ctx, "Search", err)
	}
	defer rows.Close()

	result, _, err := scanGuests(rows)
	if err != nil {
		return nil, fetchError(ctx, "Search", err)
	}
	return result, nil
}

func (s *Store) ListPage(ctx context.Context, limit int32, cursor *string) (guests.ListResponse, error) {
	limit = guests.PageLimit(limit)

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	var after int64
	if cursor != nil {
		var err error
		after, err = cursorToSeq(*cursor)
		if err != nil {
			return guests.ListResponse{}, guests.NewInvalidCursorError("Invalid cursor", err)
		}
	}

	// Fetch 1 more than limit to check if there is another page or not
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, `+guestColumns+`
		FROM guests
		WHERE seq > $1
		ORDER BY seq
		LIMIT $2
	`, after, int64(limit)+1)
	if err != nil {
		return guests.ListResponse{}, fetchError(ctx, "ListPage", err)
	}
	defer rows.Close()

	data, seqs, err := scanGuests(rows)
	if err != nil {
		return guests.ListResponse{}, fetchError(ctx, "ListPage", err)
	}

	hasNextPage := len(data) > int(limit)

	var newCursor *string
	if hasNextPage {
		c := seqToCursor(seqs[limit-1])
		newCursor = &c
	}

	return guests.ListResponse{
		Data:        data[:min(int(limit), len(data))],
		Cursor:      newCursor,
		HasNextPage: hasNextPage,
	}, nil
}

func scanGuests(rows *sql.Rows) ([]guests.Guest, []int64, error) {
	result := []guests.Guest{}
	var seqs []int64
	for rows.Next() {
		var g guests.Guest
		var seq int64
		err := rows.Scan(&seq, &g.Name, &g.Email, &g.DateOfBirth, &g.City, &g.State, &g.Country, &g.Profession, &g.RegisteredAt)
		if err != nil {
			return nil, nil, fmt.Errorf("scan guest: %w", err)
		}

		y, m, d := g.DateOfBirth.Date()
		g.DateOfBirth = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		g.RegisteredAt = g.RegisteredAt.UTC()

		result = append(result, g)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return result, seqs, nil
}

func seqToCursor(seq int64) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.FormatInt(seq, 10)))
}

func cursorToSeq(cursor string) (int64, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("failed to b64 decode: %w", err)
	}

	seq, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse sequence: %w", err)
	}
	if seq < 0 {
		return 0, fmt.Errorf("negative sequence %d", seq)
	}
	return seq, nil
}

func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func fetchError(ctx context.Context, op string, err error) error {
	if isTimeout(ctx, err) {
		return guests.NewTimeoutError(fmt.Sprintf("%s timed out", op))
	}
	return guests.NewFailedToFetchError("Failed to fetch guests from postgres", err)
}
