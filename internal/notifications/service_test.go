package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/angelmondragon/khatabook-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type stubInbox struct {
	list    func(q pageQuery) ([]models.Notification, *pagination.Cursor, error)
	unread  func(f Filter) (int64, error)
	read    func(userID, id uuid.UUID, now time.Time) (readOutcome, error)
	readAll func(f Filter, now time.Time) (int64, error)
}

func (s *stubInbox) WithTx(*gorm.DB) Repository { return s }

func (s *stubInbox) Create(context.Context, *models.Notification) error { return nil }

func (s *stubInbox) DeleteReadBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *stubInbox) List(_ context.Context, q pageQuery) ([]models.Notification, *pagination.Cursor, error) {
	if s.list == nil {
		return nil, nil, nil
	}
	return s.list(q)
}

func (s *stubInbox) CountUnread(_ context.Context, f Filter) (int64, error) {
	if s.unread == nil {
		return 0, nil
	}
	return s.unread(f)
}

func (s *stubInbox) MarkRead(_ context.Context, userID, id uuid.UUID, now time.Time) (readOutcome, error) {
	if s.read == nil {
		return readApplied, nil
	}
	return s.read(userID, id, now)
}

func (s *stubInbox) MarkAllRead(_ context.Context, f Filter, now time.Time) (int64, error) {
	if s.readAll == nil {
		return 0, nil
	}
	return s.readAll(f, now)
}

var fixedNow = time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, repo Repository) *service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	impl := svc.(*service)
	impl.now = func() time.Time { return fixedNow }
	return impl
}

func TestListReturnsItemsCursorAndBadge(t *testing.T) {
	orderID := uuid.New()
	readAt := fixedNow.Add(-time.Minute)
	first := models.Notification{ID: uuid.New(), OrderID: &orderID, ReadAt: &readAt, CreatedAt: fixedNow}
	next := pagination.Cursor{CreatedAt: fixedNow.Add(-time.Hour), ID: uuid.New()}

	repo := &stubInbox{
		list: func(q pageQuery) ([]models.Notification, *pagination.Cursor, error) {
			if q.Limit != 1 || q.OrderID == nil || *q.OrderID != orderID || !q.UnreadOnly {
				t.Fatalf("unexpected query %+v", q)
			}
			return []models.Notification{first}, &next, nil
		},
		unread: func(f Filter) (int64, error) {
			if f.OrderID == nil || *f.OrderID != orderID {
				t.Fatalf("badge lost order filter: %+v", f)
			}
			return 4, nil
		},
	}

	out, err := newTestService(t, repo).List(context.Background(), ListParams{
		UserID: uuid.New(), OrderID: &orderID, Limit: 1, UnreadOnly: true,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out.Items) != 1 || !out.Items[0].Read || out.Unread != 4 {
		t.Fatalf("unexpected result %+v", out)
	}
	decoded, err := pagination.ParseCursor(out.Cursor)
	if err != nil || decoded.ID != next.ID {
		t.Fatalf("cursor %q did not round trip: %v", out.Cursor, err)
	}
}

func TestListEmptyPageEncodesEmptySlice(t *testing.T) {
	out, err := newTestService(t, &stubInbox{}).List(context.Background(), ListParams{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out.Items == nil || out.Cursor != "" {
		t.Fatalf("unexpected empty page %+v", out)
	}
}

func TestListRejectsBadCursor(t *testing.T) {
	_, err := newTestService(t, &stubInbox{}).List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "%%%"})
	if got := pkgerrors.As(err).Code(); got != pkgerrors.CodeValidation {
		t.Fatalf("expected validation, got %s", got)
	}
}

func TestMarkReadOutcomes(t *testing.T) {
	cases := map[readOutcome]pkgerrors.Code{
		readApplied: "",
		readAlready: "",
		readMissing: pkgerrors.CodeNotFound,
	}
	for outcome, want := range cases {
		repo := &stubInbox{read: func(_, _ uuid.UUID, now time.Time) (readOutcome, error) {
			if !now.Equal(fixedNow) {
				t.Fatalf("unexpected clock %s", now)
			}
			return outcome, nil
		}}
		err := newTestService(t, repo).MarkRead(context.Background(), uuid.New(), uuid.New())
		if want == "" && err != nil {
			t.Fatalf("outcome %d: unexpected error %v", outcome, err)
		}
		if want != "" && pkgerrors.As(err).Code() != want {
			t.Fatalf("outcome %d: expected %s, got %v", outcome, want, err)
		}
	}
}

func TestMarkAllReadScopesToOrder(t *testing.T) {
	orderID := uuid.New()
	repo := &stubInbox{readAll: func(f Filter, _ time.Time) (int64, error) {
		if f.OrderID == nil || *f.OrderID != orderID {
			t.Fatalf("unexpected filter %+v", f)
		}
		return 3, nil
	}}
	n, err := newTestService(t, repo).MarkAllRead(context.Background(), uuid.New(), &orderID)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 rows, got %d (%v)", n, err)
	}
}

func TestRepositoryFailuresAreDependencyErrors(t *testing.T) {
	boom := errors.New("boom")
	repo := &stubInbox{
		unread:  func(Filter) (int64, error) { return 0, boom },
		readAll: func(Filter, time.Time) (int64, error) { return 0, boom },
	}
	svc := newTestService(t, repo)

	if _, err := svc.UnreadCount(context.Background(), uuid.New(), nil); pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("unread count: %v", err)
	}
	if _, err := svc.MarkAllRead(context.Background(), uuid.New(), nil); pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("mark all: %v", err)
	}
}

func TestOperationsRequireUser(t *testing.T) {
	svc := newTestService(t, &stubInbox{})
	ctx := context.Background()
	if _, err := svc.List(ctx, ListParams{}); err == nil {
		t.Fatal("list without user")
	}
	if _, err := svc.UnreadCount(ctx, uuid.Nil, nil); err == nil {
		t.Fatal("count without user")
	}
	if err := svc.MarkRead(ctx, uuid.Nil, uuid.New()); err == nil {
		t.Fatal("mark read without user")
	}
	if err := svc.MarkRead(ctx, uuid.New(), uuid.Nil); err == nil {
		t.Fatal("mark read without id")
	}
	if _, err := svc.MarkAllRead(ctx, uuid.Nil, nil); err == nil {
		t.Fatal("mark all without user")
	}
}
