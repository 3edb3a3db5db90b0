// Package audit produces periodic booking exports and prunes old
// cancelled bookings past the retention window.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"zapisly/internal/models"
	"zapisly/internal/policy"
)

// Store provides the booking and catalog data the export needs.
type Store interface {
	ListBookingsInRange(ctx context.Context, from, to time.Time) ([]models.Booking, error)
	ListBusinesses(ctx context.Context) ([]models.Business, error)
	DeleteOldCancelled(ctx context.Context, before time.Time) (int64, error)
}

// Config holds audit settings.
type Config struct {
	// ExportDir is where monthly workbooks are written.
	ExportDir string

	// RetentionDays is how long cancelled bookings are kept.
	// Default: 90 days.
	RetentionDays int
}

// Service builds monthly Excel reports, one sheet per business, and
// deletes cancelled bookings older than the retention window.
type Service struct {
	config Config
	store  Store
	clock  policy.Clock
	logger zerolog.Logger
}

// NewService creates an audit service.
func NewService(config Config, store Store, clock policy.Clock, logger zerolog.Logger) *Service {
	if config.RetentionDays <= 0 {
		config.RetentionDays = 90
	}
	if config.ExportDir == "" {
		config.ExportDir = "exports"
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		config: config,
		store:  store,
		clock:  clock,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Run performs the export for the previous calendar month followed by
// the retention cleanup. Intended to be scheduled from a cron entry.
func (s *Service) Run(ctx context.Context) {
	if path, err := s.ExportPreviousMonth(ctx); err != nil {
		s.logger.Error().Err(err).Msg("monthly export failed")
	} else if path != "" {
		s.logger.Info().Str("path", path).Msg("monthly export written")
	}

	deleted, err := s.Cleanup(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("retention cleanup failed")
		return
	}
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("old cancelled bookings removed")
	}
}

// ExportPreviousMonth writes a workbook covering the previous calendar
// month and returns its path. Returns an empty path when there were no
// bookings in that month.
func (s *Service) ExportPreviousMonth(ctx context.Context) (string, error) {
	now := s.clock()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	from := monthStart.AddDate(0, -1, 0)

	path := filepath.Join(s.config.ExportDir, fmt.Sprintf("bookings_%s.xlsx", from.Format("2006-01")))
	return path, s.Export(ctx, from, monthStart, path)
}

// Export writes all bookings in [from, to) to an xlsx workbook at
// path, grouped into one sheet per business.
func (s *Service) Export(ctx context.Context, from, to time.Time, path string) error {
	bookings, err := s.store.ListBookingsInRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to load bookings: %w", err)
	}
	if len(bookings) == 0 {
		return nil
	}

	businesses, err := s.store.ListBusinesses(ctx)
	if err != nil {
		return fmt.Errorf("failed to load businesses: %w", err)
	}
	names := make(map[int64]string, len(businesses))
	for _, b := range businesses {
		names[b.ID] = b.Name
	}

	byBusiness := make(map[int64][]models.Booking)
	for _, b := range bookings {
		byBusiness[b.BusinessID] = append(byBusiness[b.BusinessID], b)
	}
	ids := make([]int64, 0, len(byBusiness))
	for id := range byBusiness {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for i, id := range ids {
		sheet := sheetName(names[id], id)
		if i == 0 {
			f.SetSheetName("Sheet1", sheet)
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
			}
		}
		if err := writeSheet(f, sheet, headerStyle, byBusiness[id]); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Cleanup deletes cancelled bookings older than the retention window.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	before := s.clock().AddDate(0, 0, -s.config.RetentionDays)
	return s.store.DeleteOldCancelled(ctx, before)
}

var exportColumns = []string{"ID", "Client", "Employee", "Start", "Duration (min)", "Status", "Paid"}

func writeSheet(f *excelize.File, sheet string, headerStyle int, bookings []models.Booking) error {
	for col, name := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}
	endCell, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
	_ = f.SetCellStyle(sheet, "A1", endCell, headerStyle)

	for row, b := range bookings {
		employee := ""
		if b.EmployeeID != nil {
			employee = fmt.Sprintf("%d", *b.EmployeeID)
		}
		values := []interface{}{
			b.ID,
			b.ClientID,
			employee,
			b.StartTime.Format("2006-01-02 15:04"),
			b.DurationMinutes,
			string(b.Status),
			b.Paid,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// sheetName builds a sheet title within Excel's 31-char limit.
func sheetName(name string, id int64) string {
	if name == "" {
		name = fmt.Sprintf("business_%d", id)
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
