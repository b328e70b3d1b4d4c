package circulation

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/knjiznica/internal/model"
)

// ListGroupedReturns rebuilds return batches from the stored return details.
// Batches appear in the order their first detail is read and keep their
// details in read order.
func (s *Service) ListGroupedReturns(ctx context.Context) ([]model.ReturnBatch, error) {
	rows, err := s.Store.ListReturnDetailsJoined(ctx)
	if err != nil {
		return nil, unavailable(err, "returns", 0, "list return details")
	}
	return GroupReturns(rows, s.FinePerDay, s.location()), nil
}

// GroupReturns groups joined return detail rows by return id. Each line keeps
// the recorded fine and status and gets a fresh assessment for display.
// Unreadable dates or amounts fall back to zero values.
func GroupReturns(rows []model.ReturnDetailRow, perDay decimal.Decimal, loc *time.Location) []model.ReturnBatch {
	batches := []model.ReturnBatch{}
	index := make(map[int64]int)

	for _, row := range rows {
		i, ok := index[row.ReturnID]
		if !ok {
			i = len(batches)
			index[row.ReturnID] = i
			batches = append(batches, model.ReturnBatch{
				ReturnID:        row.ReturnID,
				ReturnDate:      parseTimestamp(row.ReturnedAt, loc),
				TotalFine:       parseAmount(row.TotalFine),
				ProcessedBy:     row.ProcessedBy,
				ProcessedByName: processorLabel(row),
				Details:         []model.ReturnLine{},
			})
		}
		batches[i].Details = append(batches[i].Details, normalizeLine(row, perDay, loc))
	}
	return batches
}

// normalizeLine turns one joined row into a display line.
func normalizeLine(row model.ReturnDetailRow, perDay decimal.Decimal, loc *time.Location) model.ReturnLine {
	returnedAt := parseTimestamp(row.DetailReturnedAt, loc)
	if returnedAt.IsZero() {
		returnedAt = parseTimestamp(row.ReturnedAt, loc)
	}

	due, err := model.ParseDate(row.DueDate)
	if err != nil {
		due = model.Date{}
	}

	assessed := Assess(due, returnedAt, perDay)

	status := model.ReturnStatus(row.Status)
	if !status.Valid() {
		status = assessed.Status
	}

	return model.ReturnLine{
		DetailID:   row.DetailID,
		LoanID:     row.LoanID,
		BookID:     row.BookID,
		BookName:   row.BookName,
		MemberName: row.MemberName,
		DueDate:    due,
		ReturnDate: returnedAt,
		Fine:       parseAmount(row.Fine),
		Status:     status,
		Assessed:   assessed,
	}
}

func processorLabel(row model.ReturnDetailRow) string {
	if row.ProcessedByName != "" {
		return row.ProcessedByName
	}
	if row.ProcessedBy != nil {
		return "ID " + strconv.FormatInt(*row.ProcessedBy, 10)
	}
	return "-"
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	model.DateLayout,
}

// parseTimestamp reads a stored timestamp into loc, or returns the zero time.
func parseTimestamp(s string, loc *time.Location) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc)
		}
	}
	return time.Time{}
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
