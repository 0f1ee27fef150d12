package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"eventform/internal/model"
	"eventform/internal/projection"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	SheetName = "申込一覧"

	headerFill = "E0E0E0"
)

// ColumnWidths follows projection.Headers.
var ColumnWidths = []float64{36, 20, 12, 10, 20, 20, 30, 20, 30, 15, 15, 15, 10, 40, 15}

// Artifact is a rendered export on disk. Cleanup must be called once the
// file has been streamed, whatever the outcome.
type Artifact struct {
	Path        string
	Filename    string
	ContentType string
	log         *zerolog.Logger
}

func (a *Artifact) Cleanup() {
	if a == nil || a.Path == "" {
		return
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.log.Error().Err(err).Str("path", a.Path).Msg("failed to remove export artifact")
	}
}

type Service struct {
	dir string
	loc *time.Location
	now func() time.Time
	log *zerolog.Logger
}

func NewService(dir string, loc *time.Location, log *zerolog.Logger) *Service {
	return &Service{dir: dir, loc: loc, now: time.Now, log: log}
}

// Rows projects records in order.
func (s *Service) Rows(records []model.Application) []projection.Row {
	rows := make([]projection.Row, 0, len(records))
	for _, app := range records {
		rows = append(rows, projection.Project(app, s.loc))
	}
	return rows
}

func (s *Service) ToCSV(ctx context.Context, records []model.Application) (*Artifact, error) {
	rows := s.Rows(records)
	return s.render(ctx, FormatCSV, "text/csv; charset=utf-8", func(w io.Writer) error {
		return WriteCSV(w, rows)
	})
}

func (s *Service) ToSpreadsheet(ctx context.Context, records []model.Application) (*Artifact, error) {
	rows := s.Rows(records)
	return s.render(ctx, FormatXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", func(w io.Writer) error {
		return WriteSpreadsheet(w, rows)
	})
}

// render writes into a fresh file under dir. Any failure removes the partial
// file before returning.
func (s *Service) render(ctx context.Context, format, contentType string, write func(io.Writer) error) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stamp := s.now().UnixMilli()
	f, err := os.CreateTemp(s.dir, fmt.Sprintf("applications_%d_*.%s", stamp, format))
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}

	art := &Artifact{
		Path:        f.Name(),
		Filename:    fmt.Sprintf("applications_%d.%s", stamp, format),
		ContentType: contentType,
		log:         s.log,
	}

	if err := write(f); err != nil {
		_ = f.Close()
		art.Cleanup()
		return nil, fmt.Errorf("render %s export: %w", format, err)
	}
	if err := f.Close(); err != nil {
		art.Cleanup()
		return nil, fmt.Errorf("close %s export: %w", format, err)
	}

	s.log.Info().Str("format", format).Str("file", filepath.Base(art.Path)).Msg("export rendered")
	return art, nil
}

func WriteCSV(w io.Writer, rows []projection.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(projection.Headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteSpreadsheet(w io.Writer, rows []projection.Row) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}

	for i, width := range ColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return err
		}
	}

	if err := setRow(f, 1, projection.Headers); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
	})
	if err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(projection.Headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", style); err != nil {
		return err
	}

	for i, row := range rows {
		if err := setRow(f, i+2, row.Values()); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}

func setRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(SheetName, cell, &row)
}
