package circulation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/erazemk/knjiznica/internal/model"
)

// memStore is an in-memory Store with the same atomicity as the SQL one.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	members map[int64]*model.Member
	books   map[int64]*model.Book
	admins  map[int64]*model.Admin
	loans   map[int64]*model.Loan
	returns map[int64]*model.Return
}

func newMemStore() *memStore {
	return &memStore{
		members: make(map[int64]*model.Member),
		books:   make(map[int64]*model.Book),
		admins:  make(map[int64]*model.Admin),
		loans:   make(map[int64]*model.Loan),
		returns: make(map[int64]*model.Return),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addMember(name string, limit int) *model.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &model.Member{ID: s.id(), Name: name, BorrowLimit: limit, Status: model.MemberActive}
	s.members[m.ID] = m
	return m
}

func (s *memStore) addBook(name string) *model.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &model.Book{ID: s.id(), Name: name, Status: model.BookAvailable}
	s.books[b.ID] = b
	return b
}

func (s *memStore) addAdmin(username string) *model.Admin {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &model.Admin{ID: s.id(), Username: username, Name: "Admin " + username, Role: model.RoleLibrarian}
	s.admins[a.ID] = a
	return a
}

func (s *memStore) bookStatus(id int64) model.BookStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books[id].Status
}

func (s *memStore) GetMember(_ context.Context, id int64) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[id]; ok {
		c := *m
		return &c, nil
	}
	return nil, nil
}

func (s *memStore) GetBook(_ context.Context, id int64) (*model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.books[id]; ok {
		c := *b
		return &c, nil
	}
	return nil, nil
}

func (s *memStore) GetAdmin(_ context.Context, id int64) (*model.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.admins[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, nil
}

func copyLoan(l *model.Loan) *model.Loan {
	c := *l
	c.Books = append([]model.LoanDetail(nil), l.Books...)
	return &c
}

func (s *memStore) GetLoan(_ context.Context, id int64) (*model.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.loans[id]; ok {
		return copyLoan(l), nil
	}
	return nil, nil
}

func (s *memStore) CountActiveLoans(_ context.Context, memberID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.loans {
		if l.MemberID != memberID {
			continue
		}
		for _, d := range l.Books {
			if d.Status == model.LoanBorrowed {
				n++
			}
		}
	}
	return n, nil
}

func (s *memStore) CreateLoan(_ context.Context, loan *model.Loan) (*model.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range loan.Books {
		if b, ok := s.books[d.BookID]; !ok || b.Status != model.BookAvailable {
			return nil, ErrConflict
		}
	}

	l := copyLoan(loan)
	l.ID = s.id()
	l.Amount = len(l.Books)
	l.MemberName = s.members[l.MemberID].Name
	for i := range l.Books {
		l.Books[i].ID = s.id()
		l.Books[i].LoanID = l.ID
		l.Books[i].Status = model.LoanBorrowed
		s.books[l.Books[i].BookID].Status = model.BookBorrowed
	}
	s.loans[l.ID] = l
	return copyLoan(l), nil
}

func (s *memStore) DeleteLoan(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok {
		return ErrNotFound
	}
	for _, d := range l.Books {
		if d.Status == model.LoanBorrowed {
			s.books[d.BookID].Status = model.BookAvailable
		}
	}
	delete(s.loans, id)
	return nil
}

func (s *memStore) RenewLoanDetail(_ context.Context, loanID, bookID int64, due model.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[loanID]
	if !ok {
		return ErrConflict
	}
	d := l.Detail(bookID)
	if d == nil || d.Status != model.LoanBorrowed {
		return ErrConflict
	}
	d.DueDate = due
	d.RenewCount++
	return nil
}

func (s *memStore) findLoanDetail(id int64) *model.LoanDetail {
	for _, l := range s.loans {
		for i := range l.Books {
			if l.Books[i].ID == id {
				return &l.Books[i]
			}
		}
	}
	return nil
}

// closeDetails applies a return batch, or nothing if any detail lost the race.
func (s *memStore) closeDetails(r *model.Return, details []model.ReturnDetail) error {
	for _, d := range details {
		ld := s.findLoanDetail(d.LoanDetailID)
		if ld == nil || ld.Status != model.LoanBorrowed {
			return ErrConflict
		}
	}
	for _, d := range details {
		s.findLoanDetail(d.LoanDetailID).Status = d.Status.LoanStatus()
		s.books[d.BookID].Status = model.BookAvailable
		d.ID = s.id()
		d.ReturnID = r.ID
		if d.ReturnedAt.IsZero() {
			d.ReturnedAt = r.ReturnedAt
		}
		r.Details = append(r.Details, d)
		r.TotalFine = r.TotalFine.Add(d.Fine)
	}
	return nil
}

func copyReturn(r *model.Return) *model.Return {
	c := *r
	c.Details = append([]model.ReturnDetail(nil), r.Details...)
	return &c
}

func (s *memStore) CreateReturn(_ context.Context, r *model.Return) (*model.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := &model.Return{ID: s.id(), ReturnedAt: r.ReturnedAt, ProcessedBy: r.ProcessedBy, TotalFine: decimal.Zero}
	if err := s.closeDetails(saved, r.Details); err != nil {
		s.nextID--
		return nil, err
	}
	s.returns[saved.ID] = saved
	return copyReturn(saved), nil
}

func (s *memStore) AppendReturnDetails(_ context.Context, returnID int64, details []model.ReturnDetail) (*model.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.returns[returnID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := s.closeDetails(r, details); err != nil {
		return nil, err
	}
	return copyReturn(r), nil
}

func (s *memStore) DeleteReturnDetail(_ context.Context, returnID, detailID, bookID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.returns[returnID]
	if !ok {
		return false, ErrNotFound
	}
	for i, d := range r.Details {
		if d.ID != detailID || d.BookID != bookID {
			continue
		}
		r.Details = append(r.Details[:i], r.Details[i+1:]...)
		r.TotalFine = r.TotalFine.Sub(d.Fine)
		if len(r.Details) == 0 {
			delete(s.returns, returnID)
			return true, nil
		}
		return false, nil
	}
	return false, ErrNotFound
}

func (s *memStore) ListReturnDetailsJoined(_ context.Context) ([]model.ReturnDetailRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.returns))
	for id := range s.returns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	var rows []model.ReturnDetailRow
	for _, id := range ids {
		r := s.returns[id]
		processedBy := r.ProcessedBy
		for _, d := range r.Details {
			loanID := d.LoanID
			rows = append(rows, model.ReturnDetailRow{
				ReturnID:         r.ID,
				DetailID:         d.ID,
				LoanID:           &loanID,
				BookID:           d.BookID,
				BookName:         s.books[d.BookID].Name,
				DueDate:          d.DueDate.String(),
				DetailReturnedAt: d.ReturnedAt.Format(time.RFC3339Nano),
				ReturnedAt:       r.ReturnedAt.Format(time.RFC3339Nano),
				TotalFine:        r.TotalFine.String(),
				Fine:             d.Fine.String(),
				Status:           string(d.Status),
				ProcessedBy:      &processedBy,
				ProcessedByName:  s.admins[processedBy].Name,
			})
		}
	}
	return rows, nil
}

// mockStore injects storage failures.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*model.Member)
	return v, args.Error(1)
}

func (m *mockStore) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*model.Book)
	return v, args.Error(1)
}

func (m *mockStore) GetAdmin(ctx context.Context, id int64) (*model.Admin, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*model.Admin)
	return v, args.Error(1)
}

func (m *mockStore) GetLoan(ctx context.Context, id int64) (*model.Loan, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*model.Loan)
	return v, args.Error(1)
}

func (m *mockStore) CountActiveLoans(ctx context.Context, memberID int64) (int, error) {
	args := m.Called(ctx, memberID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) CreateLoan(ctx context.Context, loan *model.Loan) (*model.Loan, error) {
	args := m.Called(ctx, loan)
	v, _ := args.Get(0).(*model.Loan)
	return v, args.Error(1)
}

func (m *mockStore) DeleteLoan(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) RenewLoanDetail(ctx context.Context, loanID, bookID int64, due model.Date) error {
	return m.Called(ctx, loanID, bookID, due).Error(0)
}

func (m *mockStore) CreateReturn(ctx context.Context, r *model.Return) (*model.Return, error) {
	args := m.Called(ctx, r)
	v, _ := args.Get(0).(*model.Return)
	return v, args.Error(1)
}

func (m *mockStore) AppendReturnDetails(ctx context.Context, returnID int64, details []model.ReturnDetail) (*model.Return, error) {
	args := m.Called(ctx, returnID, details)
	v, _ := args.Get(0).(*model.Return)
	return v, args.Error(1)
}

func (m *mockStore) DeleteReturnDetail(ctx context.Context, returnID, detailID, bookID int64) (bool, error) {
	args := m.Called(ctx, returnID, detailID, bookID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ListReturnDetailsJoined(ctx context.Context) ([]model.ReturnDetailRow, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]model.ReturnDetailRow)
	return v, args.Error(1)
}
