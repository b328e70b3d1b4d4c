package circulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/model"
)

var testNow = time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)

func newTestService(st Store) *Service {
	return &Service{
		Store:      st,
		FinePerDay: DefaultFinePerDay,
		Location:   time.UTC,
		Now:        func() time.Time { return testNow },
	}
}

type fixture struct {
	store  *memStore
	svc    *Service
	admin  *model.Admin
	member *model.Member
}

func newFixture() *fixture {
	st := newMemStore()
	return &fixture{
		store:  st,
		svc:    newTestService(st),
		admin:  st.addAdmin("desk"),
		member: st.addMember("Ana", 5),
	}
}

func (f *fixture) issue(t *testing.T, due model.Date, books ...*model.Book) *model.Loan {
	t.Helper()
	req := IssueRequest{MemberID: f.member.ID, AdminID: f.admin.ID}
	for _, b := range books {
		req.Items = append(req.Items, model.LoanItem{BookID: b.ID, DueDate: due})
	}
	loan, err := f.svc.Issue(context.Background(), req)
	require.NoError(t, err)
	return loan
}

func TestIssue(t *testing.T) {
	f := newFixture()
	b1 := f.store.addBook("Dune")
	b2 := f.store.addBook("Emma")
	due := model.NewDate(2024, time.January, 10)

	loan := f.issue(t, due, b1, b2)

	assert.Equal(t, 2, loan.Amount)
	assert.Equal(t, f.admin.ID, loan.RecordedBy)
	assert.Equal(t, "Ana", loan.MemberName)
	assert.True(t, loan.BorrowedAt.Equal(testNow))
	require.Len(t, loan.Books, 2)
	for _, d := range loan.Books {
		assert.Equal(t, model.LoanBorrowed, d.Status)
		assert.Equal(t, due, d.DueDate)
	}
	assert.Equal(t, "Dune", loan.Books[0].BookName)
	assert.Equal(t, model.BookBorrowed, f.store.bookStatus(b1.ID))
	assert.Equal(t, model.BookBorrowed, f.store.bookStatus(b2.ID))
}

func TestIssueDueToday(t *testing.T) {
	f := newFixture()
	b := f.store.addBook("Dune")
	loan := f.issue(t, model.DateOf(testNow), b)
	assert.Len(t, loan.Books, 1)
}

func TestIssueValidation(t *testing.T) {
	f := newFixture()
	b := f.store.addBook("Dune")
	due := model.NewDate(2024, time.January, 10)

	tests := []struct {
		name string
		req  IssueRequest
	}{
		{"no items", IssueRequest{MemberID: f.member.ID, AdminID: f.admin.ID}},
		{"no member", IssueRequest{AdminID: f.admin.ID, Items: []model.LoanItem{{BookID: b.ID, DueDate: due}}}},
		{"no admin", IssueRequest{MemberID: f.member.ID, Items: []model.LoanItem{{BookID: b.ID, DueDate: due}}}},
		{"missing due date", IssueRequest{MemberID: f.member.ID, AdminID: f.admin.ID,
			Items: []model.LoanItem{{BookID: b.ID}}}},
		{"due before borrow date", IssueRequest{MemberID: f.member.ID, AdminID: f.admin.ID,
			Items: []model.LoanItem{{BookID: b.ID, DueDate: model.NewDate(2023, time.December, 31)}}}},
		{"duplicate book", IssueRequest{MemberID: f.member.ID, AdminID: f.admin.ID,
			Items: []model.LoanItem{{BookID: b.ID, DueDate: due}, {BookID: b.ID, DueDate: due}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Issue(context.Background(), tt.req)
			assert.Equal(t, KindValidation, KindOf(err), "err: %v", err)
		})
	}
	assert.Equal(t, model.BookAvailable, f.store.bookStatus(b.ID))
}

func TestIssueNotFound(t *testing.T) {
	f := newFixture()
	b := f.store.addBook("Dune")
	due := model.NewDate(2024, time.January, 10)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, IssueRequest{MemberID: 999, AdminID: f.admin.ID,
		Items: []model.LoanItem{{BookID: b.ID, DueDate: due}}})
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.svc.Issue(ctx, IssueRequest{MemberID: f.member.ID, AdminID: 999,
		Items: []model.LoanItem{{BookID: b.ID, DueDate: due}}})
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.svc.Issue(ctx, IssueRequest{MemberID: f.member.ID, AdminID: f.admin.ID,
		Items: []model.LoanItem{{BookID: b.ID, DueDate: due}, {BookID: 999, DueDate: due}}})
	assert.Equal(t, KindNotFound, KindOf(err))
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "book", e.Entity)
	assert.Equal(t, int64(999), e.ID)

	assert.Equal(t, model.BookAvailable, f.store.bookStatus(b.ID))
}

func TestIssueInvalidState(t *testing.T) {
	f := newFixture()
	due := model.NewDate(2024, time.January, 10)
	ctx := context.Background()

	t.Run("book already borrowed", func(t *testing.T) {
		b := f.store.addBook("Dune")
		f.issue(t, due, b)

		_, err := f.svc.Issue(ctx, IssueRequest{MemberID: f.member.ID, AdminID: f.admin.ID,
			Items: []model.LoanItem{{BookID: b.ID, DueDate: due}}})
		assert.Equal(t, KindInvalidState, KindOf(err))
	})

	t.Run("inactive member", func(t *testing.T) {
		m := f.store.addMember("Bor", 5)
		f.store.members[m.ID].Status = model.MemberInactive
		b := f.store.addBook("Emma")

		_, err := f.svc.Issue(ctx, IssueRequest{MemberID: m.ID, AdminID: f.admin.ID,
			Items: []model.LoanItem{{BookID: b.ID, DueDate: due}}})
		assert.Equal(t, KindInvalidState, KindOf(err))
		assert.Equal(t, model.BookAvailable, f.store.bookStatus(b.ID))
	})

	t.Run("borrow limit", func(t *testing.T) {
		m := f.store.addMember("Cene", 2)
		b1, b2, b3 := f.store.addBook("One"), f.store.addBook("Two"), f.store.addBook("Three")
		_, err := f.svc.Issue(ctx, IssueRequest{MemberID: m.ID, AdminID: f.admin.ID,
			Items: []model.LoanItem{{BookID: b1.ID, DueDate: due}, {BookID: b2.ID, DueDate: due}}})
		require.NoError(t, err)

		_, err = f.svc.Issue(ctx, IssueRequest{MemberID: m.ID, AdminID: f.admin.ID,
			Items: []model.LoanItem{{BookID: b3.ID, DueDate: due}}})
		assert.Equal(t, KindInvalidState, KindOf(err))
	})
}

func TestIssueStorageFailureLeavesNothing(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()
	due := model.NewDate(2024, time.January, 10)

	st.On("GetMember", ctx, int64(1)).Return(&model.Member{ID: 1, Name: "Ana", Status: model.MemberActive}, nil)
	st.On("GetAdmin", ctx, int64(2)).Return(&model.Admin{ID: 2}, nil)
	st.On("GetBook", ctx, int64(3)).Return(&model.Book{ID: 3, Status: model.BookAvailable}, nil)
	st.On("GetBook", ctx, int64(4)).Return(&model.Book{ID: 4, Status: model.BookAvailable}, nil)
	st.On("CreateLoan", ctx, mock.MatchedBy(func(l *model.Loan) bool {
		return len(l.Books) == 2 && l.Amount == 2
	})).Return(nil, errors.New("disk I/O error"))

	_, err := svc.Issue(ctx, IssueRequest{MemberID: 1, AdminID: 2, Items: []model.LoanItem{
		{BookID: 3, DueDate: due}, {BookID: 4, DueDate: due},
	}})
	assert.Equal(t, KindDataUnavailable, KindOf(err))
	e, _ := AsError(err)
	assert.NotContains(t, e.Message(), "disk I/O")
	st.AssertExpectations(t)
}

func TestIssueReadFailure(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	st.On("GetMember", ctx, int64(1)).Return(nil, context.DeadlineExceeded)

	_, err := svc.Issue(ctx, IssueRequest{MemberID: 1, AdminID: 2, Items: []model.LoanItem{
		{BookID: 3, DueDate: model.NewDate(2024, time.January, 10)},
	}})
	assert.Equal(t, KindDataUnavailable, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	st.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
}

func TestIssueLostRaceIsInvalidState(t *testing.T) {
	st := new(mockStore)
	svc := newTestService(st)
	ctx := context.Background()

	st.On("GetMember", ctx, int64(1)).Return(&model.Member{ID: 1, Status: model.MemberActive}, nil)
	st.On("GetAdmin", ctx, int64(2)).Return(&model.Admin{ID: 2}, nil)
	st.On("GetBook", ctx, int64(3)).Return(&model.Book{ID: 3, Status: model.BookAvailable}, nil)
	st.On("CreateLoan", ctx, mock.Anything).Return(nil, ErrConflict)

	_, err := svc.Issue(ctx, IssueRequest{MemberID: 1, AdminID: 2, Items: []model.LoanItem{
		{BookID: 3, DueDate: model.NewDate(2024, time.January, 10)},
	}})
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestDeleteLoanRestoresCopies(t *testing.T) {
	f := newFixture()
	b := f.store.addBook("Dune")
	loan := f.issue(t, model.NewDate(2024, time.January, 10), b)

	require.NoError(t, f.svc.DeleteLoan(context.Background(), loan.ID))
	assert.Equal(t, model.BookAvailable, f.store.bookStatus(b.ID))

	_, err := f.svc.Loan(context.Background(), loan.ID)
	assert.Equal(t, KindNotFound, KindOf(err))

	err = f.svc.DeleteLoan(context.Background(), loan.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestRenew(t *testing.T) {
	f := newFixture()
	b := f.store.addBook("Dune")
	due := model.NewDate(2024, time.January, 10)
	loan := f.issue(t, due, b)
	ctx := context.Background()

	renewed, err := f.svc.Renew(ctx, loan.ID, b.ID, due.AddDays(14))
	require.NoError(t, err)
	assert.Equal(t, due.AddDays(14), renewed.Books[0].DueDate)
	assert.Equal(t, 1, renewed.Books[0].RenewCount)

	_, err = f.svc.Renew(ctx, loan.ID, b.ID, due)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.svc.Renew(ctx, loan.ID, b.ID, model.NewDate(2023, time.December, 31))
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.svc.Renew(ctx, loan.ID, 999, due.AddDays(30))
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.svc.Return(ctx, ReturnRequest{Items: []ReturnItem{{LoanID: loan.ID, BookID: b.ID}}})
	require.NoError(t, err)

	_, err = f.svc.Renew(ctx, loan.ID, b.ID, due.AddDays(30))
	assert.Equal(t, KindInvalidState, KindOf(err))
}
