package service

import (
	"testing"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
)

func TestTaskCreateRules(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Task.Create(f.ctx, f.employee(), CreateTaskReq{Kind: "epic", Title: "x"})
	wantKind(t, err, KindValidation)
	_, err = f.svc.Task.Create(f.ctx, f.employee(), CreateTaskReq{Kind: entity.TaskKindPersonal, Title: "   "})
	wantKind(t, err, KindValidation)
	_, err = f.svc.Task.Create(f.ctx, f.employee(), CreateTaskReq{Kind: entity.TaskKindPersonal, Title: "x", ProgressPoints: 101})
	wantKind(t, err, KindValidation)
	_, err = f.svc.Task.Create(f.ctx, f.employee(), CreateTaskReq{Kind: entity.TaskKindPersonal, Title: "x", EstimatedHours: ptr(-1.0)})
	wantKind(t, err, KindValidation)
	_, err = f.svc.Task.Create(f.ctx, f.employee(), CreateTaskReq{Kind: entity.TaskKindProject, Title: "x"})
	wantKind(t, err, KindValidation)
	_, err = f.svc.Task.Create(f.ctx, f.employee(), CreateTaskReq{Kind: entity.TaskKindProject, Title: "x", ProjectID: ptr("proj-none")})
	wantKind(t, err, KindNotFound)
	_, err = f.svc.Task.Create(f.ctx, f.employee(), CreateTaskReq{
		Kind: entity.TaskKindAssigned, Title: "x", AssigneeID: ptr(f.org.Peer.ID), PermissionLevel: entity.PermissionFullEdit,
	})
	wantKind(t, err, KindAuthorization)
	_, err = f.svc.Task.Create(f.ctx, f.pm(), CreateTaskReq{
		Kind: entity.TaskKindAssigned, Title: "x", AssigneeID: ptr(f.org.Peer.ID), PermissionLevel: "owner",
	})
	wantKind(t, err, KindValidation)
	_, err = f.svc.Task.Create(f.ctx, f.pm(), CreateTaskReq{
		Kind: entity.TaskKindAssigned, Title: "x", AssigneeID: ptr("emp-none"), PermissionLevel: entity.PermissionFullEdit,
	})
	wantKind(t, err, KindNotFound)

	task, err := f.svc.Task.Create(f.ctx, f.employee(), CreateTaskReq{
		Kind:        entity.TaskKindPersonal,
		Title:       "  write notes ",
		ProjectID:   ptr(f.org.Project.ID),
		IsImportant: true,
	})
	mustNoErr(t, err)
	if task.Title != "write notes" || task.ProjectID != nil || task.Status != entity.TaskStatusToDo || task.OwnerID != f.org.Employee.ID {
		t.Errorf("task = %+v", task)
	}
}

func TestTaskPermissionLevels(t *testing.T) {
	f := newFixture(t)
	create := func(level string) *entity.Task {
		task, err := f.svc.Task.Create(f.ctx, f.pm(), CreateTaskReq{
			Kind: entity.TaskKindAssigned, Title: level, AssigneeID: ptr(f.org.Employee.ID), PermissionLevel: level,
		})
		mustNoErr(t, err)
		return task
	}
	viewOnly := create(entity.PermissionViewOnly)
	progress := create(entity.PermissionEditProgress)
	full := create(entity.PermissionFullEdit)

	doing := UpdateTaskReq{Status: ptr(entity.TaskStatusDoing), ProgressPoints: ptr(30)}
	rename := UpdateTaskReq{Title: ptr("renamed")}

	_, err := f.svc.Task.Update(f.ctx, f.employee(), viewOnly.ID, doing)
	wantKind(t, err, KindAuthorization)

	got, err := f.svc.Task.Update(f.ctx, f.employee(), progress.ID, doing)
	mustNoErr(t, err)
	if got.Status != entity.TaskStatusDoing || got.ProgressPoints != 30 {
		t.Errorf("progress update = %s/%d", got.Status, got.ProgressPoints)
	}
	_, err = f.svc.Task.Update(f.ctx, f.employee(), progress.ID, rename)
	wantKind(t, err, KindAuthorization)

	got, err = f.svc.Task.Update(f.ctx, f.employee(), full.ID, rename)
	mustNoErr(t, err)
	if got.Title != "renamed" {
		t.Errorf("title = %q", got.Title)
	}

	// the peer sees none of them
	_, err = f.svc.Task.Get(f.ctx, f.actor(f.org.Peer), full.ID)
	wantKind(t, err, KindAuthorization)
	_, err = f.svc.Task.Update(f.ctx, f.actor(f.org.Peer), full.ID, doing)
	wantKind(t, err, KindAuthorization)

	_, err = f.svc.Task.Update(f.ctx, f.pm(), full.ID, UpdateTaskReq{})
	wantKind(t, err, KindValidation)
	_, err = f.svc.Task.Update(f.ctx, f.pm(), "task-none", rename)
	wantKind(t, err, KindNotFound)
}

func TestTaskCompletion(t *testing.T) {
	f := newFixture(t)
	task, err := f.svc.Task.Create(f.ctx, f.employee(), CreateTaskReq{Kind: entity.TaskKindPersonal, Title: "ship", ProgressPoints: 40})
	mustNoErr(t, err)

	done, err := f.svc.Task.Update(f.ctx, f.employee(), task.ID, UpdateTaskReq{Status: ptr(entity.TaskStatusDone)})
	mustNoErr(t, err)
	if done.ProgressPoints != 100 || done.CompletedAt == nil {
		t.Fatalf("done task = progress %d completed %v", done.ProgressPoints, done.CompletedAt)
	}

	reopened, err := f.svc.Task.Update(f.ctx, f.employee(), task.ID, UpdateTaskReq{Status: ptr(entity.TaskStatusDoing)})
	mustNoErr(t, err)
	if reopened.CompletedAt != nil {
		t.Errorf("completed_at must clear when a task leaves done")
	}

	day, err := f.repos.Analytics.FindDay(f.ctx, f.org.Employee.ID, fixtureStart)
	mustNoErr(t, err)
	if day.TasksCompleted != 0 || day.TasksCreated != 1 {
		t.Errorf("analytics = completed %d created %d", day.TasksCompleted, day.TasksCreated)
	}
}

func TestPersonalTasksArePrivate(t *testing.T) {
	f := newFixture(t)
	personal, err := f.svc.Task.Create(f.ctx, f.employee(), CreateTaskReq{Kind: entity.TaskKindPersonal, Title: "dentist"})
	mustNoErr(t, err)
	project, err := f.svc.Task.Create(f.ctx, f.employee(), CreateTaskReq{Kind: entity.TaskKindProject, Title: "design review", ProjectID: ptr(f.org.Project.ID)})
	mustNoErr(t, err)

	_, err = f.svc.Task.Get(f.ctx, f.pm(), personal.ID)
	wantKind(t, err, KindAuthorization)
	if _, err := f.svc.Task.Get(f.ctx, f.pm(), project.ID); err != nil {
		t.Errorf("managers see project tasks: %v", err)
	}
	if _, err := f.svc.Task.Get(f.ctx, f.admin(), personal.ID); err != nil {
		t.Errorf("admins see personal tasks: %v", err)
	}

	items, total, err := f.svc.Task.List(f.ctx, f.pm(), repository.TaskFilter{})
	mustNoErr(t, err)
	if total != 1 || items[0].ID != project.ID {
		t.Errorf("pm list = %d items", total)
	}
	_, total, err = f.svc.Task.List(f.ctx, f.actor(f.org.Peer), repository.TaskFilter{})
	mustNoErr(t, err)
	if total != 0 {
		t.Errorf("peer list = %d items", total)
	}
	_, total, err = f.svc.Task.List(f.ctx, f.employee(), repository.TaskFilter{Kind: entity.TaskKindPersonal})
	mustNoErr(t, err)
	if total != 1 {
		t.Errorf("own personal list = %d items", total)
	}
	_, _, err = f.svc.Task.List(f.ctx, f.employee(), repository.TaskFilter{Status: "later"})
	wantKind(t, err, KindValidation)
}

func TestTaskReassign(t *testing.T) {
	f := newFixture(t)
	task := f.assign("api", 12, entity.TaskStatusToDo)
	week := f.svc.Workload.CurrentWeek()

	_, err := f.svc.Task.Reassign(f.ctx, f.pm(), task.ID, f.org.Employee.ID)
	wantKind(t, err, KindValidation)
	_, err = f.svc.Task.Reassign(f.ctx, f.employee(), task.ID, f.org.Peer.ID)
	wantKind(t, err, KindAuthorization)
	_, err = f.svc.Task.Reassign(f.ctx, f.pm(), task.ID, "emp-none")
	wantKind(t, err, KindNotFound)

	personal, err := f.svc.Task.Create(f.ctx, f.employee(), CreateTaskReq{Kind: entity.TaskKindPersonal, Title: "solo"})
	mustNoErr(t, err)
	_, err = f.svc.Task.Reassign(f.ctx, f.employee(), personal.ID, f.org.Peer.ID)
	wantKind(t, err, KindInvalidState)

	moved, err := f.svc.Task.Reassign(f.ctx, f.pm(), task.ID, f.org.Peer.ID)
	mustNoErr(t, err)
	if *moved.AssigneeID != f.org.Peer.ID || moved.Assignment.AssigneeID != f.org.Peer.ID {
		t.Fatalf("assignee = %v", *moved.AssigneeID)
	}

	before, err := f.repos.Workload.FindByEmployeeWeek(f.ctx, f.org.Employee.ID, week)
	mustNoErr(t, err)
	after, err := f.repos.Workload.FindByEmployeeWeek(f.ctx, f.org.Peer.ID, week)
	mustNoErr(t, err)
	if before.CurrentPlannedHours != 0 || after.CurrentPlannedHours != 12 || after.WorkloadPercentage != 30 {
		t.Errorf("workload old=%v new=%v/%v", before.CurrentPlannedHours, after.CurrentPlannedHours, after.WorkloadPercentage)
	}
}

func TestTaskDeleteAndActivity(t *testing.T) {
	f := newFixture(t)
	task := f.assign("api", 8, entity.TaskStatusToDo)
	_, err := f.svc.Task.Update(f.ctx, f.employee(), task.ID, UpdateTaskReq{Status: ptr(entity.TaskStatusBlocked)})
	mustNoErr(t, err)
	_, err = f.svc.Task.Update(f.ctx, f.pm(), task.ID, UpdateTaskReq{IsPinned: ptr(true), EstimatedHours: ptr(10.0)})
	mustNoErr(t, err)

	logs, total, err := f.svc.Task.Activity(f.ctx, f.employee(), task.ID, 1, 50)
	mustNoErr(t, err)
	if total != 4 {
		t.Fatalf("activity total = %d, want 4", total)
	}
	actions := map[string]entity.TaskActivityLog{}
	for _, l := range logs {
		actions[l.Action] = l
	}
	if blocked := actions[entity.TaskActionBlocked]; blocked.OldValue != entity.TaskStatusToDo || blocked.NewValue != entity.TaskStatusBlocked || blocked.ActorID != f.org.Employee.ID {
		t.Errorf("blocked log = %+v", blocked)
	}
	if est := actions[entity.TaskActionUpdated]; est.Field != "estimated_hours" || est.OldValue != "8.00" || est.NewValue != "10.00" {
		t.Errorf("estimate log = %+v", est)
	}
	if _, ok := actions[entity.TaskActionPinned]; !ok {
		t.Error("missing pinned log")
	}

	_, _, err = f.svc.Task.Activity(f.ctx, f.actor(f.org.Peer), task.ID, 1, 50)
	wantKind(t, err, KindAuthorization)

	err = f.svc.Task.Delete(f.ctx, f.employee(), task.ID)
	wantKind(t, err, KindAuthorization)
	mustNoErr(t, f.svc.Task.Delete(f.ctx, f.pm(), task.ID))

	_, err = f.svc.Task.Get(f.ctx, f.pm(), task.ID)
	wantKind(t, err, KindNotFound)
	_, total, err = f.svc.Task.Activity(f.ctx, f.pm(), task.ID, 1, 50)
	mustNoErr(t, err)
	if total != 5 {
		t.Errorf("activity after delete = %d, want 5", total)
	}
	_, _, err = f.svc.Task.Activity(f.ctx, f.employee(), task.ID, 1, 50)
	wantKind(t, err, KindNotFound)
}
