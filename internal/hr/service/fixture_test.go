package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/bitfantasy/nimo-hr/internal/hr/notify"
	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
	"github.com/bitfantasy/nimo-hr/internal/testutil"
	"gorm.io/gorm"
)

// fixtureStart is a Wednesday.
var fixtureStart = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	db    *gorm.DB
	repos *repository.Repositories
	svc   *Services
	clock *testutil.Clock
	notes *notify.Recorder
	org   *testutil.Org
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	org := testutil.SeedOrg(t, db)
	repos := repository.NewRepositories(db)
	clock := testutil.NewClock(fixtureStart)
	notes := &notify.Recorder{}
	svc := NewServices(repos, testutil.TestConfig(), Options{Notifier: notes, Now: clock.Now})
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		db:    db,
		repos: repos,
		svc:   svc,
		clock: clock,
		notes: notes,
		org:   org,
	}
}

// actor builds the caller for a seeded employee. The department manager
// also manages dept-eng.
func (f *fixture) actor(e *entity.Employee) Actor {
	a := Actor{EmployeeID: e.ID, Roles: e.RoleCodes()}
	if e.ID == f.org.DM.ID {
		a.ManagedDepartments = []string{f.org.Department.ID}
	}
	return a
}

func (f *fixture) employee() Actor { return f.actor(f.org.Employee) }
func (f *fixture) pm() Actor       { return f.actor(f.org.PM) }
func (f *fixture) dm() Actor       { return f.actor(f.org.DM) }
func (f *fixture) gm() Actor       { return f.actor(f.org.GM) }
func (f *fixture) admin() Actor    { return f.actor(f.org.Admin) }

func ptr[T any](v T) *T { return &v }

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			t.Fatalf("unexpected %s error: %v", se.Kind, err)
		}
		t.Fatalf("unexpected error: %v", err)
	}
}
