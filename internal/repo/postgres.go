package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"eventform/internal/model"
)

const applicationColumns = `
	id, application_type, full_name, furigana, company_name, department, contact_person,
	email, phone_number, event_type, participation_date, number_of_people, exact_number,
	notes, hear_about, status, created_at, updated_at`

type PostgresRepository struct {
	db   *dbpg.DB
	log  *zerolog.Logger
	opts options
}

func NewPostgresRepository(db *dbpg.DB, log *zerolog.Logger, opts ...Option) (*PostgresRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &PostgresRepository{db: db, log: log, opts: buildOptions(opts)}, nil
}

func (r *PostgresRepository) MigrateUp(migrationsDir string) error {
	return r.applyMigrations(migrationsDir, "*.up.sql", false)
}

func (r *PostgresRepository) MigrateDown(migrationsDir string) error {
	return r.applyMigrations(migrationsDir, "*.down.sql", true)
}

func (r *PostgresRepository) applyMigrations(migrationsDir, pattern string, reverse bool) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, pattern))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations %s applied from %s", pattern, migrationsDir)
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, draft model.Application) (model.Application, error) {
	app := draft
	app.ID = r.opts.newID()
	app.Status = model.StatusPending
	app.CreatedAt = r.opts.now()

	query := `
		INSERT INTO applications (
			id, application_type, full_name, furigana, company_name, department, contact_person,
			email, phone_number, event_type, participation_date, number_of_people, exact_number,
			notes, hear_about, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at
	`
	row := r.db.QueryRowContext(ctx, query,
		app.ID, app.ApplicationType, app.FullName, app.Furigana, app.CompanyName, app.Department,
		app.ContactPerson, app.Email, app.PhoneNumber, app.EventType, app.ParticipationDate,
		app.NumberOfPeople, app.ExactNumber, app.Notes, app.HearAbout, app.Status, app.CreatedAt,
	)
	if err := row.Scan(&app.CreatedAt); err != nil {
		return model.Application{}, fmt.Errorf("failed to insert application: %w", err)
	}
	return app, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status model.Status) (model.Application, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return model.Application{}, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	app, err := scanApplication(tx.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return model.Application{}, ErrApplicationNotFound
		}
		return model.Application{}, fmt.Errorf("failed to select application: %w", err)
	}

	if !model.CanTransition(app.Status, status) {
		_ = tx.Rollback()
		return app, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, app.Status, status)
	}
	if app.Status == status {
		_ = tx.Rollback()
		return app, nil
	}

	app.Status = status
	app.UpdatedAt = r.opts.now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3`,
		app.Status, app.UpdatedAt, id,
	); err != nil {
		_ = tx.Rollback()
		return model.Application{}, fmt.Errorf("failed to update application status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Application{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return app, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (model.Application, error) {
	app, err := scanApplication(r.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Application{}, ErrApplicationNotFound
	}
	if err != nil {
		return model.Application{}, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]model.Application, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+applicationColumns+` FROM applications ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := make([]model.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applications: %w", err)
	}
	return apps, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(s scanner) (model.Application, error) {
	var (
		app       model.Application
		updatedAt sql.NullTime
	)
	err := s.Scan(
		&app.ID,
		&app.ApplicationType,
		&app.FullName,
		&app.Furigana,
		&app.CompanyName,
		&app.Department,
		&app.ContactPerson,
		&app.Email,
		&app.PhoneNumber,
		&app.EventType,
		&app.ParticipationDate,
		&app.NumberOfPeople,
		&app.ExactNumber,
		&app.Notes,
		&app.HearAbout,
		&app.Status,
		&app.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return model.Application{}, err
	}
	if updatedAt.Valid {
		app.UpdatedAt = updatedAt.Time
	}
	return app, nil
}
