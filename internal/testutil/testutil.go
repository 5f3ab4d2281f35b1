// Package testutil provides databases, clocks, tokens and seed data for the
// hr tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/config"
	"github.com/bitfantasy/nimo-hr/internal/database"
	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_hr"
	JWTSecret  = "nimo-hr-test-secret"
	JWTIssuer  = "nimo-hr"
)

// projectRoot returns the directory holding go.mod.
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func loadEnv() {
	if root := projectRoot(); root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB returns a migrated database private to the test. It uses a
// sqlite file in t.TempDir() unless TEST_DB_DRIVER=postgres, in which case
// every test gets its own schema that is dropped afterwards.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	var db *gorm.DB
	if config.GetEnvOrDefault("TEST_DB_DRIVER", "sqlite") == "postgres" {
		db = setupPostgres(t)
	} else {
		db = setupSQLite(t)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}
	return db
}

func gormTestConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
}

func setupSQLite(t *testing.T) *gorm.DB {
	path := filepath.Join(t.TempDir(), "hr.db")
	db, err := gorm.Open(sqlite.Open(database.SQLiteDSN(path)), gormTestConfig())
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func setupPostgres(t *testing.T) *gorm.DB {
	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		config.GetEnvOrDefault("DB_HOST", "127.0.0.1"),
		config.GetEnvOrDefault("DB_PORT", "5432"),
		config.GetEnvOrDefault("DB_USER", "nimo"),
		config.GetEnvOrDefault("DB_PASSWORD", "nimo123"),
		config.GetEnvOrDefault("DB_NAME", "nimo_hr"),
	)
	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// search_path in the DSN so every pooled connection uses the schema
	db, err := gorm.Open(postgres.Open(fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)), gormTestConfig())
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return
		}
		cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
		if sqlClean, _ := cleanDB.DB(); sqlClean != nil {
			sqlClean.Close()
		}
	})
	return db
}

// TestConfig returns the configuration defaults used by the services.
func TestConfig() *config.Config {
	return &config.Config{
		JWT:       config.JWTConfig{Secret: JWTSecret, Issuer: JWTIssuer},
		Redis:     config.RedisConfig{CacheTTL: time.Minute},
		Workload:  config.WorkloadConfig{DefaultCapacityHours: 40},
		Analytics: config.AnalyticsConfig{TrendWindowDays: 7, ImprovingRatio: 1.10, DecliningRatio: 0.90},
		Bulk:      config.BulkConfig{MaxTasks: 500, Concurrency: 4},
		I18n:      config.I18nConfig{DefaultLocale: "en"},
	}
}

// Clock is a test clock that advances by Step on every reading so that
// timestamps written in sequence are strictly ordered.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewClock starts at start (converted to UTC) with a one second step.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC(), Step: time.Second}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Date is a UTC midnight date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SetupRouter returns a gin engine in test mode.
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// GenerateTestToken signs a token carrying the given roles and managed
// departments.
func GenerateTestToken(userID string, roles, departments []string) string {
	if roles == nil {
		roles = []string{}
	}
	if departments == nil {
		departments = []string{}
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  "Test " + userID,
		"email": userID + "@test.com",
		"roles": roles,
		"depts": departments,
		"iss":   JWTIssuer,
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest executes an HTTP request against the router.
func DoRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse decodes the JSON envelope.
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedDepartment creates a department managed by managerID (may be empty).
func SeedDepartment(t *testing.T, db *gorm.DB, id, name, managerID string) *entity.Department {
	t.Helper()
	dept := &entity.Department{ID: id, Name: name}
	if managerID != "" {
		dept.ManagerID = &managerID
	}
	if err := db.Create(dept).Error; err != nil {
		t.Fatalf("Failed to seed department: %v", err)
	}
	return dept
}

// SeedEmployee creates an active employee with the given roles.
func SeedEmployee(t *testing.T, db *gorm.DB, id, name, departmentID string, roles ...string) *entity.Employee {
	t.Helper()
	emp := &entity.Employee{
		ID:     id,
		Name:   name,
		Email:  strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@test.com",
		Status: "active",
	}
	if departmentID != "" {
		emp.DepartmentID = &departmentID
	}
	for _, r := range roles {
		emp.Roles = append(emp.Roles, entity.EmployeeRole{ID: id + "-" + r, EmployeeID: id, Role: r})
	}
	if err := db.Create(emp).Error; err != nil {
		t.Fatalf("Failed to seed employee: %v", err)
	}
	return emp
}

// SeedProject creates an active project managed by managerID (may be empty).
func SeedProject(t *testing.T, db *gorm.DB, id, name, managerID string) *entity.Project {
	t.Helper()
	p := &entity.Project{ID: id, Code: strings.ToUpper(id), Name: name, Status: "active"}
	if managerID != "" {
		p.ManagerID = &managerID
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed project: %v", err)
	}
	return p
}

// Org is the standard fixture: one department, one project and one holder
// of each role.
type Org struct {
	Department *entity.Department
	Project    *entity.Project
	Employee   *entity.Employee
	Peer       *entity.Employee
	PM         *entity.Employee
	DM         *entity.Employee
	GM         *entity.Employee
	Admin      *entity.Employee
}

// SeedOrg creates the standard fixture:
//
//	dept-eng  managed by dm-1
//	proj-apollo managed by pm-1
//	emp-1, emp-2 (employees of dept-eng), gm-1, admin-1
func SeedOrg(t *testing.T, db *gorm.DB) *Org {
	t.Helper()
	o := &Org{}
	o.DM = SeedEmployee(t, db, "dm-1", "Dana Manager", "", entity.RoleDM)
	o.Department = SeedDepartment(t, db, "dept-eng", "Engineering", o.DM.ID)
	o.PM = SeedEmployee(t, db, "pm-1", "Pat Lead", "dept-eng", entity.RolePM)
	o.GM = SeedEmployee(t, db, "gm-1", "Gale Director", "", entity.RoleGM)
	o.Admin = SeedEmployee(t, db, "admin-1", "Ari Admin", "", entity.RoleAdmin)
	o.Employee = SeedEmployee(t, db, "emp-1", "Eli Worker", "dept-eng", entity.RoleEmployee)
	o.Peer = SeedEmployee(t, db, "emp-2", "Mo Worker", "dept-eng", entity.RoleEmployee)
	o.Project = SeedProject(t, db, "proj-apollo", "Apollo", o.PM.ID)
	return o
}
