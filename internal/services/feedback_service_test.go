package services

import (
	"errors"
	"testing"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
)

func TestPostFeedbackRejectsBlankContent(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)

	for _, content := range []string{"", "   ", "\n\t"} {
		if _, err := f.feedback.Post(f.ctx, f.reviewer, report.ID, nil, content); !errors.Is(err, ErrEmptyContent) || !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("Post(%q) error = %v", content, err)
		}
	}
}

func TestFeedbackThreadIsAppendOnly(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)
	sub := f.submit(t, f.submitter, report.ID)

	posts := []struct {
		author  string
		content string
	}{
		{"reviewer", "Please attach the signed copy."},
		{"submitter", "Attached, thank you."},
		{"reviewer", "Received."},
	}
	for _, p := range posts {
		actor := f.reviewer
		if p.author == "submitter" {
			actor = f.submitter
		}
		if _, err := f.feedback.Post(f.ctx, actor, report.ID, &sub.ID, p.content); err != nil {
			t.Fatalf("Post(%q) error = %v", p.content, err)
		}
	}

	first, err := f.feedback.Thread(f.ctx, f.submitter, report.ID, &sub.ID)
	if err != nil {
		t.Fatalf("Thread() error = %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("Thread() = %d entries", len(first))
	}
	for i, e := range first {
		if e.Seq != i+1 || e.Content != posts[i].content {
			t.Fatalf("entry %d = seq %d %q", i, e.Seq, e.Content)
		}
		if e.Mine != (posts[i].author == "submitter") {
			t.Fatalf("entry %d mine = %v", i, e.Mine)
		}
	}

	if _, err := f.feedback.Post(f.ctx, f.reviewer, report.ID, nil, "General note."); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	again, _ := f.feedback.Thread(f.ctx, f.reviewer, report.ID, nil)
	if len(again) != 4 {
		t.Fatalf("Thread() after post = %d entries", len(again))
	}
	for i := range first {
		if again[i].ID != first[i].ID || again[i].Content != first[i].Content || !again[i].CreatedAt.Equal(first[i].CreatedAt) {
			t.Fatalf("entry %d changed", i)
		}
	}
}

func TestFeedbackRecipients(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)
	sub := f.submit(t, f.submitter, report.ID)

	if _, err := f.feedback.Post(f.ctx, f.reviewer, report.ID, &sub.ID, "Needs the annex."); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if n := f.countNotifications(t, f.submitter.ID, EventFeedbackPosted); n != 1 {
		t.Fatalf("owner notifications = %d", n)
	}
	if n := f.countNotifications(t, f.submitter2.ID, EventFeedbackPosted); n != 0 {
		t.Fatalf("other submitter notifications = %d", n)
	}

	if _, err := f.feedback.Post(f.ctx, f.submitter, report.ID, &sub.ID, "Will do."); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	for _, r := range []struct {
		name string
		n    int64
	}{
		{"reviewer", f.countNotifications(t, f.reviewer.ID, EventFeedbackPosted)},
		{"reviewer2", f.countNotifications(t, f.reviewer2.ID, EventFeedbackPosted)},
	} {
		if r.n != 1 {
			t.Fatalf("%s notifications = %d", r.name, r.n)
		}
	}
	// the author is never notified of their own post
	if n := f.countNotifications(t, f.submitter.ID, EventFeedbackPosted); n != 1 {
		t.Fatalf("author notifications = %d", n)
	}
}

func TestFeedbackVisibilityForSubmitters(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)
	mine := f.submit(t, f.submitter, report.ID)
	theirs := f.submit(t, f.submitter2, report.ID)

	if _, err := f.feedback.Post(f.ctx, f.submitter, report.ID, &theirs.ID, "Not mine"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("Post() on foreign submission error = %v", err)
	}

	f.feedback.Post(f.ctx, f.reviewer, report.ID, &mine.ID, "For submitter one")
	f.feedback.Post(f.ctx, f.reviewer, report.ID, &theirs.ID, "For submitter two")
	f.feedback.Post(f.ctx, f.reviewer, report.ID, nil, "For everyone")

	thread, err := f.feedback.Thread(f.ctx, f.submitter, report.ID, nil)
	if err != nil {
		t.Fatalf("Thread() error = %v", err)
	}
	if len(thread) != 2 || thread[0].Content != "For submitter one" || thread[1].Content != "For everyone" {
		t.Fatalf("Thread() = %+v", thread)
	}

	all, _ := f.feedback.Thread(f.ctx, f.reviewer, report.ID, nil)
	if len(all) != 3 {
		t.Fatalf("reviewer Thread() = %d entries", len(all))
	}
}
