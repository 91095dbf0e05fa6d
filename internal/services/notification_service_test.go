package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestInboxLifecycle(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)
	f.submit(t, f.submitter, report.ID)
	f.submit(t, f.submitter2, report.ID)

	items, total, err := f.inbox.List(f.ctx, f.reviewer.ID, InboxFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("List() = %d items, total %d", len(items), total)
	}

	unread, err := f.inbox.UnreadCount(f.ctx, f.reviewer.ID)
	if err != nil || unread != 2 {
		t.Fatalf("UnreadCount() = %d, %v", unread, err)
	}

	if err := f.inbox.MarkRead(f.ctx, f.reviewer.ID, items[0].ID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if err := f.inbox.MarkRead(f.ctx, f.reviewer2.ID, items[0].ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("MarkRead() by another user error = %v", err)
	}
	if err := f.inbox.MarkRead(f.ctx, f.reviewer.ID, uuid.New()); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("MarkRead() unknown id error = %v", err)
	}

	onlyUnread, total, _ := f.inbox.List(f.ctx, f.reviewer.ID, InboxFilter{UnreadOnly: true})
	if total != 1 || len(onlyUnread) != 1 || onlyUnread[0].ID == items[0].ID {
		t.Fatalf("List(unread) = %+v", onlyUnread)
	}

	page, total, _ := f.inbox.List(f.ctx, f.reviewer.ID, InboxFilter{Limit: 1, Offset: 1})
	if total != 2 || len(page) != 1 {
		t.Fatalf("List(page) = %d items, total %d", len(page), total)
	}

	marked, err := f.inbox.MarkAllRead(f.ctx, f.reviewer.ID)
	if err != nil || marked != 1 {
		t.Fatalf("MarkAllRead() = %d, %v", marked, err)
	}
	if unread, _ := f.inbox.UnreadCount(f.ctx, f.reviewer.ID); unread != 0 {
		t.Fatalf("UnreadCount() after read-all = %d", unread)
	}

	cleared, err := f.inbox.Clear(f.ctx, f.reviewer.ID)
	if err != nil || cleared != 2 {
		t.Fatalf("Clear() = %d, %v", cleared, err)
	}
	if unread, _ := f.inbox.UnreadCount(f.ctx, f.reviewer2.ID); unread != 2 {
		t.Fatalf("other reviewer inbox touched: %d unread", unread)
	}
}
