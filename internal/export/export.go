// Package export writes the local store to Parquet files for reporting.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/siae-sistema/cardlink/internal/models"
)

const (
	KindCards    = "cards"
	KindAccesses = "accesses"
)

var ErrUnknownKind = errors.New("unknown export kind")

// Source is the part of the store an export reads.
type Source interface {
	Students(ctx context.Context) ([]models.Student, error)
	Accesses(ctx context.Context) ([]models.Access, error)
}

// CardRow is one linked card with its student.
type CardRow struct {
	UID         string `parquet:"uid"`
	StudentID   string `parquet:"student_id"`
	StudentName string `parquet:"student_name"`
	LinkedAtMs  int64  `parquet:"linked_at_ms"`
}

// AccessRow is one registered access.
type AccessRow struct {
	UID          string `parquet:"uid"`
	Day          string `parquet:"day"`
	RecordedAtMs int64  `parquet:"recorded_at_ms"`
}

// Export writes rows of the given kind to path and returns how many were written.
func Export(ctx context.Context, src Source, kind, path string) (int, error) {
	switch kind {
	case KindCards:
		rows, err := cardRows(ctx, src)
		if err != nil {
			return 0, err
		}
		return len(rows), writeFile(path, rows)
	case KindAccesses:
		rows, err := accessRows(ctx, src)
		if err != nil {
			return 0, err
		}
		return len(rows), writeFile(path, rows)
	default:
		return 0, fmt.Errorf("%w: %s (supported: %s, %s)", ErrUnknownKind, kind, KindCards, KindAccesses)
	}
}

func cardRows(ctx context.Context, src Source) ([]CardRow, error) {
	students, err := src.Students(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]CardRow, 0, len(students))
	for _, s := range students {
		if s.Card == nil {
			continue
		}
		rows = append(rows, CardRow{
			UID:         s.Card.UID,
			StudentID:   s.ID,
			StudentName: s.Name,
			LinkedAtMs:  s.Card.CreatedAt.UnixMilli(),
		})
	}
	return rows, nil
}

func accessRows(ctx context.Context, src Source) ([]AccessRow, error) {
	accesses, err := src.Accesses(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]AccessRow, len(accesses))
	for i, a := range accesses {
		rows[i] = AccessRow{
			UID:          a.CardUID,
			Day:          a.Day,
			RecordedAtMs: a.RecordedAt.UnixMilli(),
		}
	}
	return rows, nil
}

func writeFile[T any](path string, rows []T) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	slog.Debug("Parquet export written", "path", path, "rows", len(rows))
	return file.Close()
}

// Read loads every row of a Parquet file written by Export.
func Read[T CardRow | AccessRow](path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[T](pf)
	defer reader.Close()

	records := make([]T, 0, pf.NumRows())
	rows := make([]T, 128)
	for {
		n, err := reader.Read(rows)
		records = append(records, rows[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return records, nil
}
