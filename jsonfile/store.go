package jsonfile

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	"github.com/International-Combat-Archery-Alliance/guest-registration/slices"
)

var _ guests.Store = &Store{}

// Store keeps the whole guest list as one JSON array on disk. Every write
// replaces the file through a rename, so readers see either the old or the new
// list and never a partial one.
type Store struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
}

type guestJSON struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	DateOfBirth      string `json:"date_of_birth"`
	City             string `json:"city"`
	State            string `json:"state"`
	Country          string `json:"country"`
	Profession       string `json:"profession"`
	RegistrationDate string `json:"registration_date"`
}

func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
	}
}

func guestToJSON(g guests.Guest) guestJSON {
	return guestJSON{
		Name:             g.Name,
		Email:            g.Email,
		DateOfBirth:      g.DateOfBirth.Format(guests.DateLayout),
		City:             g.City,
		State:            g.State,
		Country:          g.Country,
		Profession:       g.Profession,
		RegistrationDate: g.RegisteredAt.UTC().Format(guests.TimestampLayout),
	}
}

func jsonToGuest(g guestJSON) (guests.Guest, error) {
	dob, err := time.Parse(guests.DateLayout, g.DateOfBirth)
	if err != nil {
		return guests.Guest{}, fmt.Errorf("invalid date_of_birth for %q: %w", g.Email, err)
	}

	registeredAt, err := time.Parse(guests.TimestampLayout, g.RegistrationDate)
	if err != nil {
		return guests.Guest{}, fmt.Errorf("invalid registration_date for %q: %w", g.Email, err)
	}

	return guests.Guest{
		Name:         g.Name,
		Email:        g.Email,
		DateOfBirth:  dob,
		City:         g.City,
		State:        g.State,
		Country:      g.Country,
		Profession:   g.Profession,
		RegisteredAt: registeredAt,
	}, nil
}

// load reads the raw records. A missing or empty file is an empty list.
func (s *Store) load() ([]guestJSON, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, guests.NewFailedToFetchError(fmt.Sprintf("Failed to read guest file %q", s.path), err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []guestJSON
	err = json.Unmarshal(data, &records)
	if err != nil {
		return nil, guests.NewCorruptedStoreError(fmt.Sprintf("Guest file %q is not a JSON guest list", s.path), err)
	}

	return records, nil
}

func (s *Store) readAll(ctx context.Context) ([]guests.Guest, error) {
	records, err := s.load()
	if err != nil {
		if isCorrupted(err) {
			s.logger.WarnContext(ctx, "Guest file is corrupted, treating it as empty", slog.String("path", s.path), slog.String("error", err.Error()))
			return []guests.Guest{}, nil
		}
		return nil, err
	}

	result, err := slices.MapErr(records, jsonToGuest)
	if err != nil {
		s.logger.WarnContext(ctx, "Guest file has an unreadable record, treating it as empty", slog.String("path", s.path), slog.String("error", err.Error()))
		return []guests.Guest{}, nil
	}

	return result, nil
}

func (s *Store) Append(ctx context.Context, guest guests.Guest) error {
	if err := ctx.Err(); err != nil {
		return guests.NewFailedToWriteError("Append cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		if !isCorrupted(err) {
			return err
		}

		// The corrupted file is moved aside rather than overwritten so it can be
		// repaired by hand.
		backup := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
		s.logger.WarnContext(ctx, "Guest file is corrupted, moving it aside", slog.String("path", s.path), slog.String("backup", backup))
		if renameErr := os.Rename(s.path, backup); renameErr != nil {
			return guests.NewFailedToWriteError("Failed to move corrupted guest file aside", renameErr)
		}
		records = nil
	}

	key := guests.NormalizeEmail(guest.Email)
	for _, r := range records {
		if guests.NormalizeEmail(r.Email) == key {
			return guests.NewDuplicateEmailError(guest.Email, nil)
		}
	}

	records = append(records, guestToJSON(guest))

	return s.writeAll(records)
}

func (s *Store) writeAll(records []guestJSON) error {
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return guests.NewFailedToTranslateToDBModelError("Failed to encode guest list", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return guests.NewFailedToWriteError(fmt.Sprintf("Failed to create directory %q", dir), err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return guests.NewFailedToWriteError("Failed to create temp guest file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return guests.NewFailedToWriteError("Failed to write temp guest file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return guests.NewFailedToWriteError("Failed to sync temp guest file", err)
	}
	if err := tmp.Close(); err != nil {
		return guests.NewFailedToWriteError("Failed to close temp guest file", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return guests.NewFailedToWriteError(fmt.Sprintf("Failed to replace guest file %q", s.path), err)
	}

	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]guests.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readAll(ctx)
}

func (s *Store) Search(ctx context.Context, query string) ([]guests.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}

	return guests.Filter(all, query), nil
}

func (s *Store) ListPage(ctx context.Context, limit int32, cursor *string) (guests.ListResponse, error) {
	limit = guests.PageLimit(limit)

	offset := 0
	if cursor != nil {
		var err error
		offset, err = cursorToOffset(*cursor)
		if err != nil {
			return guests.ListResponse{}, guests.NewInvalidCursorError("Invalid cursor", err)
		}
	}

	s.mu.RLock()
	all, err := s.readAll(ctx)
	s.mu.RUnlock()
	if err != nil {
		return guests.ListResponse{}, err
	}

	start := min(offset, len(all))
	end := min(start+int(limit), len(all))
	hasNextPage := end < len(all)

	var newCursor *string
	if hasNextPage {
		c := offsetToCursor(end)
		newCursor = &c
	}

	return guests.ListResponse{
		Data:        all[start:end],
		Cursor:      newCursor,
		HasNextPage: hasNextPage,
	}, nil
}

func offsetToCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func cursorToOffset(cursor string) (int, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("failed to b64 decode: %w", err)
	}

	offset, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("failed to parse offset: %w", err)
	}
	if offset < 0 {
		return 0, fmt.Errorf("negative offset %d", offset)
	}

	return offset, nil
}

func isCorrupted(err error) bool {
	var guestErr *guests.Error
	return errors.As(err, &guestErr) && guestErr.Reason == guests.REASON_CORRUPTED_STORE
}
