package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/twpayne/go-polyline"
	_ "modernc.org/sqlite"

	"github.com/landloop/server/internal/lib/geo"
)

const territorySchema = `
CREATE TABLE IF NOT EXISTS territories (
	id          TEXT PRIMARY KEY,
	player_id   TEXT NOT NULL,
	path        TEXT NOT NULL,
	area_m2     REAL NOT NULL,
	point_count INTEGER NOT NULL,
	started_at  INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	active      INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_territories_player_active ON territories(player_id, active);
`

// SQLiteStore is a TerritoryStore backed by a local sqlite database. Vertex
// lists are stored as Google encoded polylines, which keeps the row compact
// and round-trips coordinates at 1e-5 degree precision (about a meter, well
// inside GPS noise).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the territory database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open territory db: %w", err)
	}

	if _, err := db.Exec(territorySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize territory schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Submit persists a validated territory.
func (s *SQLiteStore) Submit(ctx context.Context, territory Territory) error {
	if territory.ID == "" {
		return fmt.Errorf("territory is missing an id")
	}
	if len(territory.Points) < 3 {
		return fmt.Errorf("territory %s has fewer than 3 vertices", territory.ID)
	}

	encoded := encodePath(territory.Points)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO territories (id, player_id, path, area_m2, point_count, started_at, created_at, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		territory.ID,
		territory.PlayerID,
		encoded,
		territory.AreaM2,
		territory.PointCount,
		territory.StartedAt.Unix(),
		territory.CreatedAt.Unix(),
		boolToInt(territory.Active),
	)
	if err != nil {
		return fmt.Errorf("failed to insert territory %s: %w", territory.ID, err)
	}
	return nil
}

// ActiveTerritories returns every active territory not owned by the given
// player.
func (s *SQLiteStore) ActiveTerritories(ctx context.Context, excludePlayerID string) ([]Territory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_id, path, area_m2, point_count, started_at, created_at, active
		FROM territories
		WHERE active = 1 AND player_id != ?
		ORDER BY created_at`,
		excludePlayerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query territories: %w", err)
	}
	defer rows.Close()

	var territories []Territory
	for rows.Next() {
		var t Territory
		var encoded string
		var startedAt, createdAt int64
		var active int
		if err := rows.Scan(&t.ID, &t.PlayerID, &encoded, &t.AreaM2, &t.PointCount, &startedAt, &createdAt, &active); err != nil {
			return nil, fmt.Errorf("failed to scan territory row: %w", err)
		}

		points, err := decodePath(encoded)
		if err != nil {
			return nil, fmt.Errorf("territory %s has a corrupt path: %w", t.ID, err)
		}
		t.Points = points
		t.StartedAt = time.Unix(startedAt, 0).UTC()
		t.CreatedAt = time.Unix(createdAt, 0).UTC()
		t.Active = active != 0
		territories = append(territories, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read territory rows: %w", err)
	}
	return territories, nil
}

// SetActive flips the soft-deletion flag.
func (s *SQLiteStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE territories SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to update territory %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of territory %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("territory not found: %s", id)
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodePath(points []geo.Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

func decodePath(encoded string) ([]geo.Point, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	points := make([]geo.Point, len(coords))
	for i, c := range coords {
		points[i] = geo.Point{Latitude: c[0], Longitude: c[1]}
	}
	return points, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
