package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"multimesh/internal/domain"
	"multimesh/internal/mesherr"
	"multimesh/internal/repository"

	_ "modernc.org/sqlite"
)

// Repository implements repository.MeshRepository using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.MeshRepository = (*Repository)(nil)

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and serializes
	// writers without relying on busy retries.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if dbPath != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meshes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source_format TEXT NOT NULL,
		checksum TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		group_count INTEGER NOT NULL,
		entity_count INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mesh_groups (
		mesh_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		name_format TEXT NOT NULL,
		entity_count INTEGER NOT NULL,
		PRIMARY KEY (mesh_id, position),
		FOREIGN KEY (mesh_id) REFERENCES meshes(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS mesh_entities (
		mesh_id TEXT NOT NULL,
		group_position INTEGER NOT NULL,
		position INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (mesh_id, group_position, position),
		FOREIGN KEY (mesh_id, group_position) REFERENCES mesh_groups(mesh_id, position) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_meshes_checksum ON meshes(checksum);
	CREATE INDEX IF NOT EXISTS idx_meshes_created ON meshes(created_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Save stores rec and the contents of src. Dimension and counts of rec are
// filled in from src; CreatedAt defaults to now.
func (r *Repository) Save(ctx context.Context, rec *domain.MeshRecord, src domain.Source) error {
	if rec.ID == "" {
		return fmt.Errorf("mesh id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Dimension = src.Metadata().Dimension

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Counts are patched in once every group is written.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO meshes (id, name, source_format, checksum, dimension, group_count, entity_count, created_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?)
	`, rec.ID, rec.Name, rec.SourceFormat, rec.Checksum, rec.Dimension, timeToText(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert mesh: %w", err)
	}

	groupStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mesh_groups (mesh_id, position, kind, name, name_format, entity_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare group insert: %w", err)
	}
	defer groupStmt.Close()

	entityStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mesh_entities (mesh_id, group_position, position, payload)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare entity insert: %w", err)
	}
	defer entityStmt.Close()

	groups, entities := 0, 0
	for _, kind := range domain.EntityKinds {
		for g := range src.Groups(kind) {
			md := g.Metadata()
			if _, err := groupStmt.ExecContext(ctx, rec.ID, groups, kind.String(), md.Name.Raw(), md.Name.Format().String(), md.Len); err != nil {
				return fmt.Errorf("failed to insert group %s: %w", md.Name, err)
			}

			for i := range md.Len {
				item, ok := g.ItemAt(i)
				if !ok {
					return mesherr.BrokenInvariant("group %s reports %d items but item %d is missing", md.Name, md.Len, i)
				}
				payload, err := encodeEntity(item)
				if err != nil {
					return err
				}
				if _, err := entityStmt.ExecContext(ctx, rec.ID, groups, i, payload); err != nil {
					return fmt.Errorf("failed to insert entity %d of group %s: %w", i, md.Name, err)
				}
			}

			groups++
			entities += md.Len
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE meshes SET group_count = ?, entity_count = ? WHERE id = ?`, groups, entities, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update mesh counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	rec.GroupCount = groups
	rec.EntityCount = entities
	return nil
}

const recordColumns = `id, name, source_format, checksum, dimension, group_count, entity_count, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.MeshRecord, error) {
	var (
		rec       domain.MeshRecord
		createdAt string
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.SourceFormat, &rec.Checksum,
		&rec.Dimension, &rec.GroupCount, &rec.EntityCount, &createdAt); err != nil {
		return nil, err
	}

	t, err := textToTime(createdAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = t
	return &rec, nil
}

// Get retrieves a mesh record by id
func (r *Repository) Get(ctx context.Context, id string) (*domain.MeshRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM meshes WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query mesh: %w", err)
	}
	return rec, nil
}

// FindByChecksum returns the oldest mesh imported from identical bytes
func (r *Repository) FindByChecksum(ctx context.Context, checksum string) (*domain.MeshRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM meshes
		WHERE checksum = ?
		ORDER BY created_at, id
		LIMIT 1
	`, checksum)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query mesh by checksum: %w", err)
	}
	return rec, nil
}

// List returns all mesh records, oldest first
func (r *Repository) List(ctx context.Context) ([]*domain.MeshRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM meshes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query meshes: %w", err)
	}
	defer rows.Close()

	records := []*domain.MeshRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mesh: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meshes: %w", err)
	}
	return records, nil
}

type storedGroup struct {
	position int
	kind     domain.EntityKind
	name     domain.Name
	count    int
}

// Load replays the stored mesh into target. Groups are replayed in the
// order they were saved, with UIDs numbered from 1.
func (r *Repository) Load(ctx context.Context, id string, target domain.Target) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	groups, err := r.loadGroups(ctx, id)
	if err != nil {
		return err
	}

	if rec.Dimension > 0 {
		if err := target.SetDimension(rec.Dimension); err != nil {
			return mesherr.External(err)
		}
	}

	for _, sg := range groups {
		gd := domain.NewGroupData(uint64(sg.position+1), sg.name, sg.count, sg.kind)
		if err := target.GroupBegin(gd); err != nil {
			return mesherr.External(err)
		}
		if err := r.replayEntities(ctx, id, sg, gd, target); err != nil {
			return err
		}
		if err := target.GroupEnd(gd); err != nil {
			return mesherr.External(err)
		}
	}
	return nil
}

// loadGroups reads every group row up front so no result set stays open
// while the target runs.
func (r *Repository) loadGroups(ctx context.Context, id string) ([]storedGroup, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT position, kind, name, name_format, entity_count
		FROM mesh_groups WHERE mesh_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []storedGroup
	for rows.Next() {
		var (
			sg                  storedGroup
			kind, name, nameFmt string
		)
		if err := rows.Scan(&sg.position, &kind, &name, &nameFmt, &sg.count); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}

		if sg.kind, err = domain.ParseEntityKind(kind); err != nil {
			return nil, fmt.Errorf("group %d: %w", sg.position, err)
		}
		format, err := domain.ParseFormat(nameFmt)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", sg.position, err)
		}
		var ok bool
		if sg.name, ok = domain.ParseName(name, format, sg.kind); !ok {
			return nil, fmt.Errorf("group %d: stored name %q is not a valid %s %s name", sg.position, name, format, sg.kind)
		}
		groups = append(groups, sg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}
	return groups, nil
}

func (r *Repository) replayEntities(ctx context.Context, id string, sg storedGroup, gd domain.GroupData, target domain.Target) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payload FROM mesh_entities
		WHERE mesh_id = ? AND group_position = ?
		ORDER BY position
	`, id, sg.position)
	if err != nil {
		return fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("failed to scan entity: %w", err)
		}
		entity, err := decodeEntity(sg.kind, payload)
		if err != nil {
			return err
		}
		if err := domain.Deliver(target, entity, gd); err != nil {
			return mesherr.External(err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating entities: %w", err)
	}
	return nil
}

// Delete removes a mesh and, through cascading keys, its contents
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM meshes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mesh: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete mesh: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
