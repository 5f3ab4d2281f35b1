package service

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/bitfantasy/nimo-hr/internal/hr/notify"
)

func TestBulkUpdateStatusRecordsItemFailures(t *testing.T) {
	f := newFixture(t)
	var ids []string
	for i := 0; i < 10; i++ {
		switch i {
		case 2, 5, 9:
			ids = append(ids, fmt.Sprintf("missing-%d", i))
		default:
			ids = append(ids, f.assign("task", 2, entity.TaskStatusToDo).ID)
		}
	}

	op, err := f.svc.Bulk.Execute(f.ctx, f.pm(), BulkRequest{
		OperationType: entity.BulkOpUpdateStatus,
		TaskIDs:       ids,
		Parameters:    json.RawMessage(`{"status":"done"}`),
	})
	mustNoErr(t, err)
	if op.Status != entity.BulkStatusCompleted || op.TotalTasks != 10 || op.ProcessedTasks != 10 || op.FailedTasks != 3 {
		t.Fatalf("op = status %s total %d processed %d failed %d", op.Status, op.TotalTasks, op.ProcessedTasks, op.FailedTasks)
	}
	if len(op.ErrorLog) != 3 {
		t.Fatalf("error log = %+v", op.ErrorLog)
	}
	for i, want := range []string{ids[2], ids[5], ids[9]} {
		if op.ErrorLog[i].TaskID != want || op.ErrorLog[i].Error == "" {
			t.Errorf("error_log[%d] = %+v, want task %s", i, op.ErrorLog[i], want)
		}
	}
	if op.StartedAt == nil || op.CompletedAt == nil || op.CompletedAt.Before(*op.StartedAt) {
		t.Errorf("timestamps = %v %v", op.StartedAt, op.CompletedAt)
	}

	task, err := f.svc.Task.Get(f.ctx, f.pm(), ids[0])
	mustNoErr(t, err)
	if task.Status != entity.TaskStatusDone || task.ProgressPoints != 100 {
		t.Errorf("task after bulk = %s/%d", task.Status, task.ProgressPoints)
	}
	row, err := f.repos.Workload.FindByEmployeeWeek(f.ctx, f.org.Employee.ID, f.svc.Workload.CurrentWeek())
	mustNoErr(t, err)
	if row.CurrentPlannedHours != 0 || row.ActiveTaskCount != 0 {
		t.Errorf("workload after bulk = %v/%d", row.CurrentPlannedHours, row.ActiveTaskCount)
	}

	stored, err := f.svc.Bulk.Get(f.ctx, f.pm(), op.ID)
	mustNoErr(t, err)
	if stored.FailedTasks != 3 || len(stored.ErrorLog) != 3 || len(stored.TaskIDs) != 10 {
		t.Errorf("stored op = %+v", stored)
	}

	got := f.notes.For(f.org.PM.ID)
	if len(got) != 1 || got[0].Event != notify.EventBulkFinished || got[0].Ref["operation_id"] != op.ID {
		t.Errorf("notifications = %+v", got)
	}
}

func TestBulkRejectsMalformedRequests(t *testing.T) {
	f := newFixture(t)
	task := f.assign("task", 2, entity.TaskStatusToDo)

	tests := []struct {
		name string
		req  BulkRequest
	}{
		{"unknown type", BulkRequest{OperationType: "archive", TaskIDs: []string{task.ID}}},
		{"no ids", BulkRequest{OperationType: entity.BulkOpDelete}},
		{"duplicate ids", BulkRequest{OperationType: entity.BulkOpDelete, TaskIDs: []string{task.ID, task.ID}}},
		{"bad status", BulkRequest{OperationType: entity.BulkOpUpdateStatus, TaskIDs: []string{task.ID}, Parameters: json.RawMessage(`{"status":"later"}`)}},
		{"bad date", BulkRequest{OperationType: entity.BulkOpUpdateDueDate, TaskIDs: []string{task.ID}, Parameters: json.RawMessage(`{"due_date":"10/20/2026"}`)}},
		{"missing assignee", BulkRequest{OperationType: entity.BulkOpReassign, TaskIDs: []string{task.ID}}},
		{"missing flag", BulkRequest{OperationType: entity.BulkOpSetImportant, TaskIDs: []string{task.ID}, Parameters: json.RawMessage(`{}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := f.svc.Bulk.Execute(f.ctx, f.pm(), tt.req)
			wantKind(t, err, KindValidation)
			if op == nil || op.Status != entity.BulkStatusFailed || op.ProcessedTasks != 0 || len(op.ErrorLog) != 1 {
				t.Fatalf("op = %+v", op)
			}
			stored, err := f.repos.Bulk.FindByID(f.ctx, op.ID)
			mustNoErr(t, err)
			if stored.Status != entity.BulkStatusFailed || stored.CompletedAt == nil {
				t.Errorf("stored op = %+v", stored)
			}
		})
	}

	if _, err := f.svc.Task.Get(f.ctx, f.pm(), task.ID); err != nil {
		t.Errorf("rejected batches must not touch tasks: %v", err)
	}
}

func TestBulkAccess(t *testing.T) {
	f := newFixture(t)
	task := f.assign("task", 2, entity.TaskStatusToDo)

	_, err := f.svc.Bulk.Execute(f.ctx, f.employee(), BulkRequest{OperationType: entity.BulkOpDelete, TaskIDs: []string{task.ID}})
	wantKind(t, err, KindAuthorization)

	op, err := f.svc.Bulk.Execute(f.ctx, f.pm(), BulkRequest{
		OperationType: entity.BulkOpSetImportant,
		TaskIDs:       []string{task.ID},
		Parameters:    json.RawMessage(`{"important":true}`),
	})
	mustNoErr(t, err)
	if op.FailedTasks != 0 {
		t.Fatalf("error log = %+v", op.ErrorLog)
	}

	_, err = f.svc.Bulk.Get(f.ctx, f.dm(), op.ID)
	wantKind(t, err, KindAuthorization)
	if _, err := f.svc.Bulk.Get(f.ctx, f.admin(), op.ID); err != nil {
		t.Errorf("admin get: %v", err)
	}
	_, err = f.svc.Bulk.Get(f.ctx, f.pm(), "op-missing")
	wantKind(t, err, KindNotFound)

	items, total, err := f.svc.Bulk.ListMine(f.ctx, f.pm(), 0, 0)
	mustNoErr(t, err)
	if total != 1 || items[0].ID != op.ID {
		t.Errorf("list = %d", total)
	}
	_, total, err = f.svc.Bulk.ListMine(f.ctx, f.dm(), 1, 20)
	mustNoErr(t, err)
	if total != 0 {
		t.Errorf("dm list = %d", total)
	}

	// reassigning to the current assignee fails the item, not the batch
	op, err = f.svc.Bulk.Execute(f.ctx, f.gm(), BulkRequest{OperationType: entity.BulkOpReassign, TaskIDs: []string{task.ID}, Parameters: json.RawMessage(`{"assignee_id":"emp-1"}`)})
	mustNoErr(t, err)
	if op.Status != entity.BulkStatusCompleted || op.FailedTasks != 1 {
		t.Errorf("reassign to current assignee = %+v", op)
	}
}

func TestBulkCountersUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	var ids []string
	missing := 0
	for i := 0; i < 40; i++ {
		if i%5 == 0 {
			ids = append(ids, fmt.Sprintf("missing-%d", i))
			missing++
			continue
		}
		ids = append(ids, f.assign(fmt.Sprintf("task %d", i), 1, entity.TaskStatusToDo).ID)
	}

	op, err := f.svc.Bulk.Execute(f.ctx, f.pm(), BulkRequest{
		OperationType: entity.BulkOpUpdateStatus,
		TaskIDs:       ids,
		Parameters:    json.RawMessage(`{"status":"done"}`),
	})
	mustNoErr(t, err)
	if op.ProcessedTasks != len(ids) || op.FailedTasks != missing || len(op.ErrorLog) != missing {
		t.Fatalf("processed %d failed %d log %d, want %d/%d", op.ProcessedTasks, op.FailedTasks, len(op.ErrorLog), len(ids), missing)
	}
	for i, e := range op.ErrorLog {
		if want := ids[i*5]; e.TaskID != want {
			t.Errorf("error_log[%d] = %s, want %s", i, e.TaskID, want)
		}
	}

	var done int64
	f.db.Model(&entity.Task{}).Where("status = ?", entity.TaskStatusDone).Count(&done)
	if int(done) != len(ids)-missing {
		t.Errorf("done tasks = %d, want %d", done, len(ids)-missing)
	}
	var rows int64
	f.db.Model(&entity.EmployeeWorkloadCapacity{}).Where("employee_id = ?", f.org.Employee.ID).Count(&rows)
	row, err := f.repos.Workload.FindByEmployeeWeek(f.ctx, f.org.Employee.ID, f.svc.Workload.CurrentWeek())
	mustNoErr(t, err)
	if rows != 1 || row.CurrentPlannedHours != 0 || row.ActiveTaskCount != 0 {
		t.Errorf("workload rows=%d planned=%v count=%d", rows, row.CurrentPlannedHours, row.ActiveTaskCount)
	}
}

func TestBulkFinishesOnce(t *testing.T) {
	f := newFixture(t)
	task := f.assign("task", 2, entity.TaskStatusToDo)
	op, err := f.svc.Bulk.Execute(f.ctx, f.pm(), BulkRequest{
		OperationType: entity.BulkOpSetImportant,
		TaskIDs:       []string{task.ID},
		Parameters:    json.RawMessage(`{"important":true}`),
	})
	mustNoErr(t, err)
	completedAt := *op.CompletedAt

	err = f.svc.Bulk.finish(f.ctx, op, entity.BulkStatusFailed, nil)
	wantKind(t, err, KindInvalidState)
	stored, err := f.repos.Bulk.FindByID(f.ctx, op.ID)
	mustNoErr(t, err)
	if stored.Status != entity.BulkStatusCompleted || !stored.CompletedAt.Equal(completedAt) {
		t.Errorf("stored op = %s at %v", stored.Status, stored.CompletedAt)
	}
}
