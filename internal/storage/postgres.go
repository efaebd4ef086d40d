package storage

import (
	"buddychat/backend/internal/config"
	"buddychat/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errInsertRace means another transaction created the key between our
// locking read (which found nothing to lock) and our insert.
var errInsertRace = errors.New("storage: key created concurrently")

// PostgresStore is a KVStore on a single kv_entries table. Update locks the
// row with SELECT ... FOR UPDATE for the duration of the read-modify-write.
type PostgresStore struct {
	DB *gorm.DB
}

// NewPostgresStore migrates the kv_entries table and returns the store.
func NewPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&models.KVEntry{}); err != nil {
		return nil, fmt.Errorf("migrate kv_entries: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.KVEntry
	err := s.DB.WithContext(ctx).Where("key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(entry.Value), true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	entry := models.KVEntry{Key: key, Value: string(value), UpdatedAt: time.Now()}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
}

func (s *PostgresStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).
		Where("key = ANY(?)", pq.Array(keys)).
		Delete(&models.KVEntry{}).Error
}

func (s *PostgresStore) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	var entries []models.KVEntry
	err := s.DB.WithContext(ctx).
		Where(`key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%").
		Find(&entries).Error
	if err != nil {
		log.Printf("ERROR: Failed to scan prefix %q: %v", prefix, err)
		return nil, err
	}

	out := make([][]byte, 0, len(entries))
	for _, e := range entries {
		out = append(out, []byte(e.Value))
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	for attempt := 0; attempt < config.MaxUpdateRetries; attempt++ {
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.updateTx(tx, key, fn)
		})
		if !errors.Is(err, errInsertRace) {
			return err
		}
	}
	log.Printf("WARNING: Postgres update of %s gave up after %d attempts", key, config.MaxUpdateRetries)
	return fmt.Errorf("%w: %s", ErrConflict, key)
}

func (s *PostgresStore) updateTx(tx *gorm.DB, key string, fn UpdateFunc) error {
	var (
		entry   models.KVEntry
		current []byte
		existed = true
	)

	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("key = ?", key).Take(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		existed = false
	case err != nil:
		return err
	default:
		current = []byte(entry.Value)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	switch {
	case next == nil && !existed:
		return nil
	case next == nil:
		return tx.Where("key = ?", key).Delete(&models.KVEntry{}).Error
	case existed:
		return tx.Model(&models.KVEntry{}).
			Where("key = ?", key).
			Updates(map[string]any{"value": string(next), "updated_at": time.Now()}).Error
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.KVEntry{Key: key, Value: string(next), UpdatedAt: time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errInsertRace
	}
	return nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// escapeLike quotes LIKE wildcards so prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
