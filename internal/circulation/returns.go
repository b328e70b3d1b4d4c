package circulation

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/knjiznica/internal/model"
)

// ReturnItem names one borrowed copy being brought back.
type ReturnItem struct {
	LoanID int64 `json:"borrow_id"`
	BookID int64 `json:"book_id"`
}

// ReturnRequest closes a batch of borrowed copies under one return.
//
// When ReturnID is set the copies are added to that existing return instead
// of a new one. ProcessedBy is the admin handling the return; when nil the
// loan's processing admin is used, then the admin who recorded the loan.
// A zero ReturnedAt means now.
type ReturnRequest struct {
	ReturnID    int64        `json:"return_id,omitempty"`
	ProcessedBy *int64       `json:"processed_by,omitempty"`
	ReturnedAt  time.Time    `json:"return_date"`
	Items       []ReturnItem `json:"items"`
}

// Return closes every requested copy, charging the late fine for each, and
// records them under one return batch. The result holds the batch header and
// the details added by this call.
func (s *Service) Return(ctx context.Context, req ReturnRequest) (*model.Return, error) {
	if len(req.Items) == 0 {
		return nil, validationError("return", "at least one book is required")
	}

	type pair struct{ loan, book int64 }
	seen := make(map[pair]bool, len(req.Items))
	for _, item := range req.Items {
		if item.LoanID <= 0 || item.BookID <= 0 {
			return nil, validationError("return", "loan and book are required for every item")
		}
		p := pair{item.LoanID, item.BookID}
		if seen[p] {
			return nil, validationError("return", "book %d of loan %d listed twice", item.BookID, item.LoanID)
		}
		seen[p] = true
	}

	at := req.ReturnedAt
	if at.IsZero() {
		at = s.now()
	} else {
		at = at.In(s.location())
	}

	loans := make(map[int64]*model.Loan)
	var first *model.Loan
	details := make([]model.ReturnDetail, 0, len(req.Items))
	for _, item := range req.Items {
		loan, ok := loans[item.LoanID]
		if !ok {
			var err error
			loan, err = s.Store.GetLoan(ctx, item.LoanID)
			if err != nil {
				return nil, unavailable(err, "loan", item.LoanID, "get loan")
			}
			if loan == nil {
				return nil, notFound("loan", item.LoanID)
			}
			loans[item.LoanID] = loan
		}
		if first == nil {
			first = loan
		}

		detail := loan.Detail(item.BookID)
		if detail == nil {
			return nil, notFound("loan book", item.BookID)
		}
		if detail.Status != model.LoanBorrowed {
			return nil, invalidState("loan book", item.BookID, "book was already returned on loan %d", loan.ID)
		}

		a := Assess(detail.DueDate, at, s.FinePerDay)
		details = append(details, model.ReturnDetail{
			LoanDetailID: detail.ID,
			LoanID:       loan.ID,
			BookID:       detail.BookID,
			ReturnedAt:   at,
			DueDate:      detail.DueDate,
			LateDays:     a.LateDays,
			Fine:         a.Fine,
			Status:       a.Status,
			BookName:     detail.BookName,
		})
	}

	adminID, err := s.resolveProcessor(ctx, req.ProcessedBy, first)
	if err != nil {
		return nil, err
	}

	var saved *model.Return
	if req.ReturnID > 0 {
		saved, err = s.Store.AppendReturnDetails(ctx, req.ReturnID, details)
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("return", req.ReturnID)
		}
	} else {
		saved, err = s.Store.CreateReturn(ctx, &model.Return{
			ReturnedAt:  at,
			TotalFine:   sumDetailFines(details),
			ProcessedBy: adminID,
			Details:     details,
		})
	}
	if errors.Is(err, ErrConflict) {
		return nil, &Error{Kind: KindInvalidState, Entity: "loan book", Msg: "book was already returned", Err: err}
	}
	if err != nil {
		return nil, unavailable(err, "return", req.ReturnID, "save return")
	}

	return withNewDetails(saved, details), nil
}

// resolveProcessor picks the admin credited with a return.
func (s *Service) resolveProcessor(ctx context.Context, explicit *int64, loan *model.Loan) (int64, error) {
	var id int64
	switch {
	case explicit != nil && *explicit > 0:
		id = *explicit
	case loan.ProcessedBy != nil && *loan.ProcessedBy > 0:
		id = *loan.ProcessedBy
	case loan.RecordedBy > 0:
		id = loan.RecordedBy
	default:
		return 0, validationError("return", "no admin to process the return")
	}
	if err := s.requireAdmin(ctx, id); err != nil {
		return 0, err
	}
	return id, nil
}

func sumDetailFines(details []model.ReturnDetail) decimal.Decimal {
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.Fine)
	}
	return total
}

// withNewDetails keeps only the details added by this call and fills in the
// late days, which are not stored.
func withNewDetails(saved *model.Return, added []model.ReturnDetail) *model.Return {
	byLoanDetail := make(map[int64]model.ReturnDetail, len(added))
	for _, d := range added {
		byLoanDetail[d.LoanDetailID] = d
	}

	out := *saved
	out.Details = make([]model.ReturnDetail, 0, len(added))
	for _, d := range saved.Details {
		a, ok := byLoanDetail[d.LoanDetailID]
		if !ok {
			continue
		}
		d.LateDays = a.LateDays
		if d.DueDate.IsZero() {
			d.DueDate = a.DueDate
		}
		if d.BookName == "" {
			d.BookName = a.BookName
		}
		out.Details = append(out.Details, d)
	}
	return &out
}

// DeleteReturnDetail removes one returned copy from its batch. The batch is
// removed with its last detail; deleted reports whether that happened.
func (s *Service) DeleteReturnDetail(ctx context.Context, returnID, detailID, bookID int64) (deleted bool, err error) {
	if returnID <= 0 || detailID <= 0 || bookID <= 0 {
		return false, validationError("return detail", "return, detail and book are required")
	}

	deleted, err = s.Store.DeleteReturnDetail(ctx, returnID, detailID, bookID)
	if errors.Is(err, ErrNotFound) {
		return false, notFound("return detail", detailID)
	}
	if err != nil {
		return false, unavailable(err, "return detail", detailID, "delete return detail")
	}
	return deleted, nil
}
