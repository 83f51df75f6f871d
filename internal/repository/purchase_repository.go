package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"beatstore-media-service/config"
	"beatstore-media-service/internal/errdefs"
	"beatstore-media-service/internal/interfaces"
	"beatstore-media-service/internal/models"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS beats (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		audio_path TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS packs (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS pack_beats (
		pack_id INTEGER NOT NULL REFERENCES packs(id) ON DELETE CASCADE,
		beat_id INTEGER NOT NULL REFERENCES beats(id) ON DELETE CASCADE,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (pack_id, beat_id)
	)`,
	`CREATE TABLE IF NOT EXISTS kits (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS kit_assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kit_id INTEGER NOT NULL REFERENCES kits(id) ON DELETE CASCADE,
		kind TEXT NOT NULL CHECK (kind IN ('beat', 'sample', 'item')),
		storage_key TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY,
		buyer_email TEXT NOT NULL,
		license_type TEXT NOT NULL DEFAULT '',
		license_path TEXT NOT NULL DEFAULT '',
		stems_path TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT 0,
		beat_id INTEGER REFERENCES beats(id),
		pack_id INTEGER REFERENCES packs(id),
		kit_id INTEGER REFERENCES kits(id)
	)`,
}

// PurchaseRepository каталог покупок в SQLite
type PurchaseRepository struct {
	db *sql.DB
}

var _ interfaces.PurchaseRepository = (*PurchaseRepository)(nil)

func NewPurchaseRepository(cfg *config.Config) (*PurchaseRepository, error) {
	if dir := filepath.Dir(cfg.Catalog.DSN); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	return OpenPurchaseRepository(cfg.Catalog.DSN)
}

// OpenPurchaseRepository открывает базу и создает схему
func OpenPurchaseRepository(dsn string) (*PurchaseRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Проверка соединения
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite: внешние ключи по умолчанию выключены
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	return &PurchaseRepository{db: db}, nil
}

// DB доступ к соединению для наполнения каталога
func (r *PurchaseRepository) DB() *sql.DB {
	return r.db
}

func (r *PurchaseRepository) Close() error {
	return r.db.Close()
}

func (r *PurchaseRepository) GetPurchase(ctx context.Context, id int64) (*models.Purchase, error) {
	var (
		p                     models.Purchase
		license               string
		createdAt             int64
		beatID, packID, kitID sql.NullInt64
	)

	row := r.db.QueryRowContext(ctx, `
		SELECT id, buyer_email, license_type, license_path, stems_path, created_at, beat_id, pack_id, kit_id
		FROM purchases WHERE id = ?`, id)
	err := row.Scan(&p.ID, &p.BuyerEmail, &license, &p.LicensePath, &p.StemsPath, &createdAt, &beatID, &packID, &kitID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.Wrapf(errdefs.ErrPurchaseNotFound, "purchase %d", id)
	}
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrDB, "get purchase %d: %v", id, err)
	}

	p.LicenseType, err = models.ParseLicenseType(license)
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrDB, "purchase %d: %v", id, err)
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()

	switch {
	case beatID.Valid:
		p.Beat, err = r.getBeat(ctx, beatID.Int64)
	case packID.Valid:
		p.Pack, err = r.getPack(ctx, packID.Int64)
	case kitID.Valid:
		p.Kit, err = r.getKit(ctx, kitID.Int64)
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *PurchaseRepository) getBeat(ctx context.Context, id int64) (*models.Beat, error) {
	var b models.Beat
	err := r.db.QueryRowContext(ctx, `SELECT id, title, audio_path FROM beats WHERE id = ?`, id).
		Scan(&b.ID, &b.Title, &b.AudioPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.Wrapf(errdefs.ErrTargetNotFound, "beat %d", id)
	}
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrDB, "get beat %d: %v", id, err)
	}
	return &b, nil
}

func (r *PurchaseRepository) getPack(ctx context.Context, id int64) (*models.Pack, error) {
	var p models.Pack
	err := r.db.QueryRowContext(ctx, `SELECT id, title FROM packs WHERE id = ?`, id).Scan(&p.ID, &p.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.Wrapf(errdefs.ErrTargetNotFound, "pack %d", id)
	}
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrDB, "get pack %d: %v", id, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.title, b.audio_path
		FROM pack_beats pb JOIN beats b ON b.id = pb.beat_id
		WHERE pb.pack_id = ?
		ORDER BY pb.position, b.id`, id)
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrDB, "list pack %d beats: %v", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var b models.Beat
		if err := rows.Scan(&b.ID, &b.Title, &b.AudioPath); err != nil {
			return nil, errdefs.Wrapf(errdefs.ErrDB, "scan pack %d beat: %v", id, err)
		}
		p.Beats = append(p.Beats, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrDB, "list pack %d beats: %v", id, err)
	}
	return &p, nil
}

func (r *PurchaseRepository) getKit(ctx context.Context, id int64) (*models.Kit, error) {
	var k models.Kit
	err := r.db.QueryRowContext(ctx, `SELECT id, title FROM kits WHERE id = ?`, id).Scan(&k.ID, &k.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.Wrapf(errdefs.ErrTargetNotFound, "kit %d", id)
	}
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrDB, "get kit %d: %v", id, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, storage_key, title FROM kit_assets
		WHERE kit_id = ? ORDER BY position, id`, id)
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrDB, "list kit %d assets: %v", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Asset
		var kind string
		if err := rows.Scan(&kind, &a.StorageKey, &a.Title); err != nil {
			return nil, errdefs.Wrapf(errdefs.ErrDB, "scan kit %d asset: %v", id, err)
		}
		a.Kind = models.AssetKind(kind)
		k.Assets = append(k.Assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrDB, "list kit %d assets: %v", id, err)
	}
	return &k, nil
}
