package service

import (
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"gorm.io/gorm"
)

func TestBuildChatTree(t *testing.T) {
	flat := []entity.TimesheetChat{
		{ID: "a"},
		{ID: "b", ParentID: ptr("a")},
		{ID: "c"},
		{ID: "d", ParentID: ptr("b")},
		{ID: "e", ParentID: ptr("gone")},
		{ID: "f", ParentID: ptr("a")},
	}
	tree := BuildChatTree(flat)
	if len(tree) != 3 || tree[0].ID != "a" || tree[1].ID != "c" || tree[2].ID != "e" {
		t.Fatalf("roots = %+v", tree)
	}
	a := tree[0]
	if len(a.Replies) != 2 || a.Replies[0].ID != "b" || a.Replies[1].ID != "f" {
		t.Fatalf("replies of a = %+v", a.Replies)
	}
	if len(a.Replies[0].Replies) != 1 || a.Replies[0].Replies[0].ID != "d" {
		t.Errorf("replies of b = %+v", a.Replies[0].Replies)
	}
}

func TestTimesheetChats(t *testing.T) {
	f := newFixture(t)
	ts := f.submitted()

	_, err := f.svc.Timesheet.AddChat(f.ctx, f.pm(), ts.ID, nil, "  ")
	wantKind(t, err, KindValidation)
	_, err = f.svc.Timesheet.AddChat(f.ctx, f.actor(f.org.Peer), ts.ID, nil, "hi")
	wantKind(t, err, KindAuthorization)
	_, err = f.svc.Timesheet.AddChat(f.ctx, f.pm(), "ts-missing", nil, "hi")
	wantKind(t, err, KindNotFound)
	_, err = f.svc.Timesheet.AddChat(f.ctx, f.pm(), ts.ID, ptr("chat-missing"), "hi")
	wantKind(t, err, KindValidation)

	question, err := f.svc.Timesheet.AddChat(f.ctx, f.pm(), ts.ID, nil, "Why 6h on Wednesday?")
	mustNoErr(t, err)
	answer, err := f.svc.Timesheet.AddChat(f.ctx, f.employee(), ts.ID, &question.ID, "Half day off")
	mustNoErr(t, err)
	_, err = f.svc.Timesheet.AddChat(f.ctx, f.pm(), ts.ID, &answer.ID, "Thanks")
	mustNoErr(t, err)
	_, err = f.svc.Timesheet.AddChat(f.ctx, f.dm(), ts.ID, ptr(""), "Looks fine")
	mustNoErr(t, err)

	tree, err := f.svc.Timesheet.ListChats(f.ctx, f.employee(), ts.ID)
	mustNoErr(t, err)
	if len(tree) != 2 || tree[0].ID != question.ID {
		t.Fatalf("roots = %d", len(tree))
	}
	if len(tree[0].Replies) != 1 || len(tree[0].Replies[0].Replies) != 1 || tree[0].Replies[0].Replies[0].Message != "Thanks" {
		t.Errorf("thread = %+v", tree[0])
	}

	err = f.svc.Timesheet.DeleteChat(f.ctx, f.employee(), ts.ID, question.ID)
	wantKind(t, err, KindAuthorization)
	err = f.svc.Timesheet.DeleteChat(f.ctx, f.pm(), "ts-other", question.ID)
	wantKind(t, err, KindNotFound)

	mustNoErr(t, f.svc.Timesheet.DeleteChat(f.ctx, f.pm(), ts.ID, question.ID))
	tree, err = f.svc.Timesheet.ListChats(f.ctx, f.pm(), ts.ID)
	mustNoErr(t, err)
	if len(tree) != 1 || tree[0].Message != "Looks fine" || len(tree[0].Replies) != 0 {
		t.Errorf("after cascade delete = %+v", tree)
	}
}

// failChats makes every statement of kind op on the chat table fail.
func failChats(t *testing.T, db *gorm.DB, op string) {
	t.Helper()
	fail := func(tx *gorm.DB) {
		if tx.Statement.Table == "timesheet_chats" {
			tx.AddError(errors.New("chat storage unavailable"))
		}
	}
	var err error
	switch op {
	case "query":
		err = db.Callback().Query().Before("gorm:query").Register("test:fail_chats", fail)
	case "delete":
		err = db.Callback().Delete().Before("gorm:delete").Register("test:fail_chats", fail)
	}
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
}

func TestAddChatReportsStorageErrors(t *testing.T) {
	f := newFixture(t)
	ts := f.submitted()
	question, err := f.svc.Timesheet.AddChat(f.ctx, f.pm(), ts.ID, nil, "Why 6h?")
	mustNoErr(t, err)

	failChats(t, f.db, "query")
	_, err = f.svc.Timesheet.AddChat(f.ctx, f.employee(), ts.ID, &question.ID, "Half day off")
	if err == nil {
		t.Fatal("expected an error when the parent cannot be loaded")
	}
	if kind := KindOf(err); kind == KindValidation || kind == KindNotFound {
		t.Fatalf("storage failure reported as %s: %v", kind, err)
	}
}

func TestDeleteChatFailureKeepsThread(t *testing.T) {
	f := newFixture(t)
	ts := f.submitted()
	question, err := f.svc.Timesheet.AddChat(f.ctx, f.pm(), ts.ID, nil, "Why 6h?")
	mustNoErr(t, err)
	_, err = f.svc.Timesheet.AddChat(f.ctx, f.employee(), ts.ID, &question.ID, "Half day off")
	mustNoErr(t, err)

	failChats(t, f.db, "delete")
	err = f.svc.Timesheet.DeleteChat(f.ctx, f.pm(), ts.ID, question.ID)
	if err == nil || KindOf(err) == KindNotFound {
		t.Fatalf("DeleteChat = %v", err)
	}
	var n int64
	f.db.Model(&entity.TimesheetChat{}).Where("timesheet_id = ?", ts.ID).Count(&n)
	if n != 2 {
		t.Errorf("chats after failed delete = %d, want 2", n)
	}
}
