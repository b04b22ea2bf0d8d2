// Package migration runs versioned schema changes against a gorm database.
//
//	r := migration.New(db,
//	    migration.Step{Name: "20260301000000_create_orders", Up: up, Down: down},
//	)
//	err := r.Run(ctx)      // all pending, one batch
//	err = r.Rollback(ctx)  // the most recent batch
package migration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/cartsync/pkg/logger"
)

// Step is one migration. Names must be unique; they are applied in
// lexicographic order, so prefix them with a timestamp.
type Step struct {
	Name string
	Up   func(tx *gorm.DB) error
	Down func(tx *gorm.DB) error
}

// migrationRecord is the GORM model stored in the tracking table.
type migrationRecord struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (migrationRecord) TableName() string { return "cartsync_migrations" }

// Runner executes and tracks migrations.
type Runner struct {
	db    *gorm.DB
	steps []Step
}

func New(db *gorm.DB, steps ...Step) *Runner {
	sorted := append([]Step(nil), steps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Runner{db: db, steps: sorted}
}

// Pending returns the names of steps that have not run yet.
func (r *Runner) Pending(ctx context.Context) ([]string, error) {
	steps, err := r.pending(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names, nil
}

func (r *Runner) pending(ctx context.Context) ([]Step, error) {
	db := r.db.WithContext(ctx)
	if err := db.AutoMigrate(&migrationRecord{}); err != nil {
		return nil, fmt.Errorf("migration: ensure table: %w", err)
	}

	var ran []migrationRecord
	if err := db.Find(&ran).Error; err != nil {
		return nil, fmt.Errorf("migration: fetch ran: %w", err)
	}
	done := make(map[string]bool, len(ran))
	for _, rec := range ran {
		done[rec.Name] = true
	}

	var out []Step
	for _, s := range r.steps {
		if !done[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}

// Run applies every pending step as one batch. Each step and its tracking
// row commit together.
func (r *Runner) Run(ctx context.Context) error {
	pending, err := r.pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.Debug("migration: nothing to migrate")
		return nil
	}

	batch, err := r.lastBatch(ctx)
	if err != nil {
		return err
	}
	batch++

	for _, s := range pending {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.Up(tx); err != nil {
				return err
			}
			return tx.Create(&migrationRecord{Name: s.Name, Batch: batch}).Error
		})
		if err != nil {
			return fmt.Errorf("migration: %s up: %w", s.Name, err)
		}
		logger.Info("migration: applied", "name", s.Name, "batch", batch)
	}
	return nil
}

// Rollback reverses every step of the most recent batch, newest first.
func (r *Runner) Rollback(ctx context.Context) error {
	if _, err := r.pending(ctx); err != nil {
		return err
	}
	batch, err := r.lastBatch(ctx)
	if err != nil || batch == 0 {
		return err
	}

	var records []migrationRecord
	if err := r.db.WithContext(ctx).Where("batch = ?", batch).Order("id desc").Find(&records).Error; err != nil {
		return fmt.Errorf("migration: fetch batch %d: %w", batch, err)
	}

	byName := make(map[string]Step, len(r.steps))
	for _, s := range r.steps {
		byName[s.Name] = s
	}

	for _, rec := range records {
		s, ok := byName[rec.Name]
		if !ok {
			return fmt.Errorf("migration: cannot roll back %s: unknown step", rec.Name)
		}
		rec := rec
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&rec).Error
		})
		if err != nil {
			return fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}
		logger.Info("migration: rolled back", "name", rec.Name, "batch", batch)
	}
	return nil
}

func (r *Runner) lastBatch(ctx context.Context) (int, error) {
	var max struct{ Max int }
	if err := r.db.WithContext(ctx).Model(&migrationRecord{}).Select("COALESCE(MAX(batch), 0) AS max").Scan(&max).Error; err != nil {
		return 0, fmt.Errorf("migration: last batch: %w", err)
	}
	return max.Max, nil
}
