package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Itinerary is one generated plan. Rows are append-only; a revision is a new
// row whose ParentID points at the row it was derived from.
type Itinerary struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	ParentID    sql.NullString  `json:"-" db:"parent_id"`
	Title       string          `json:"title" db:"title"`
	Destination string          `json:"destination" db:"destination"`
	StartDate   string          `json:"start_date" db:"start_date"`
	EndDate     string          `json:"end_date" db:"end_date"`
	Data        json.RawMessage `json:"itinerary_data" db:"itinerary_data"`
	Preferences json.RawMessage `json:"preferences" db:"preferences"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// ItinerarySummary is the list view; it leaves out the JSON payloads.
type ItinerarySummary struct {
	ID          string         `json:"id" db:"id"`
	Title       string         `json:"title" db:"title"`
	Destination string         `json:"destination" db:"destination"`
	StartDate   string         `json:"start_date" db:"start_date"`
	EndDate     string         `json:"end_date" db:"end_date"`
	ParentID    sql.NullString `json:"-" db:"parent_id"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

type ItineraryStore struct {
	db *sqlx.DB
}

func NewItineraryStore(db *sqlx.DB) *ItineraryStore {
	return &ItineraryStore{db: db}
}

// Insert stores the row and fills in CreatedAt.
func (s *ItineraryStore) Insert(ctx context.Context, it *Itinerary) error {
	prefs := it.Preferences
	if len(prefs) == 0 {
		prefs = json.RawMessage(`{}`)
	}

	// pq sends []byte as bytea, so the JSONB columns get strings
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO itineraries (id, user_id, parent_id, title, destination, start_date, end_date, itinerary_data, preferences)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		it.ID, it.UserID, it.ParentID, it.Title, it.Destination, it.StartDate, it.EndDate,
		string(it.Data), string(prefs)).Scan(&it.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert itinerary: %w", err)
	}
	return nil
}

// Get returns the itinerary only when it belongs to userID.
func (s *ItineraryStore) Get(ctx context.Context, id, userID string) (*Itinerary, error) {
	var it Itinerary
	err := s.db.GetContext(ctx, &it, `
		SELECT id, user_id, parent_id, title, destination, start_date, end_date,
		       itinerary_data, preferences, created_at
		FROM itineraries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &it, nil
}

// List returns every itinerary owned by userID, newest first.
func (s *ItineraryStore) List(ctx context.Context, userID string) ([]ItinerarySummary, error) {
	out := []ItinerarySummary{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, title, destination, start_date, end_date, parent_id, created_at
		FROM itineraries WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list itineraries: %w", err)
	}
	return out, nil
}
