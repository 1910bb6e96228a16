// Package export renders booking reports as xlsx files.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"renthub/internal/domain"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

// Exporter writes booking-range reports under the configured directory.
type Exporter struct {
	bookings domain.BookingService
	items    domain.ItemStore
	users    domain.UserStore
	dir      string
	logger   *zerolog.Logger
}

func NewExporter(bookings domain.BookingService, items domain.ItemStore, users domain.UserStore, dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		bookings: bookings,
		items:    items,
		users:    users,
		dir:      dir,
		logger:   logger,
	}
}

// BookingsReport renders every booking intersecting [from,to) into an
// xlsx file and returns its path: one header row, one row per booking,
// ordered as the store returns them.
func (e *Exporter) BookingsReport(ctx context.Context, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	bookings, err := e.bookings.ListByDateRange(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("error listing bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Bookings %s to %s",
		from.Format("2006-01-02"), to.Format("2006-01-02")))
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.MergeCell(sheetName, "A1", "H1")
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{"ID", "Item", "Owner", "Booker", "Start", "End", "Status", "Version"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	itemNames := make(map[int64]string)
	ownerNames := make(map[int64]string)
	userNames := make(map[int64]string)

	for i, booking := range bookings {
		row := i + 3
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), booking.ID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), e.itemLabel(ctx, booking.ItemID, itemNames, ownerNames))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), ownerNames[booking.ItemID])
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), e.userLabel(ctx, booking.BookerID, userNames))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), booking.Start.Format("2006-01-02 15:04"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), booking.End.Format("2006-01-02 15:04"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), string(booking.Status))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), booking.Version)
	}

	_ = f.SetColWidth(sheetName, "A", "A", 8)
	_ = f.SetColWidth(sheetName, "B", "D", 22)
	_ = f.SetColWidth(sheetName, "E", "F", 18)
	_ = f.SetColWidth(sheetName, "G", "H", 12)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	filePath := filepath.Join(e.dir, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("bookings report created")
	return filePath, nil
}

func (e *Exporter) itemLabel(ctx context.Context, itemID int64, itemNames, ownerNames map[int64]string) string {
	if name, ok := itemNames[itemID]; ok {
		return name
	}
	item, err := e.items.GetItem(ctx, itemID)
	if err != nil {
		e.logger.Warn().Err(err).Int64("item_id", itemID).Msg("item lookup failed during export")
		itemNames[itemID] = fmt.Sprintf("item %d", itemID)
		ownerNames[itemID] = ""
		return itemNames[itemID]
	}
	itemNames[itemID] = item.Name
	ownerNames[itemID] = e.userLabel(ctx, item.OwnerID, map[int64]string{})
	return item.Name
}

func (e *Exporter) userLabel(ctx context.Context, userID int64, userNames map[int64]string) string {
	if name, ok := userNames[userID]; ok {
		return name
	}
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		e.logger.Warn().Err(err).Int64("user_id", userID).Msg("user lookup failed during export")
		userNames[userID] = fmt.Sprintf("user %d", userID)
		return userNames[userID]
	}
	userNames[userID] = user.Name
	return user.Name
}
