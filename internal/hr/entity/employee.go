package entity

import "time"

// Role codes carried by employees and JWT claims.
const (
	RoleEmployee = "employee"
	RolePM       = "pm"
	RoleDM       = "dm"
	RoleGM       = "gm"
	RoleAdmin    = "hr_admin"
)

// Department owns employees; its manager is the DM approver for them.
type Department struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	ManagerID *string   `json:"manager_id" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Department) TableName() string {
	return "departments"
}

// Employee is the reference record other hr tables point at. Its CRUD lives
// outside this service.
type Employee struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Name         string    `json:"name" gorm:"size:128;not null"`
	Email        string    `json:"email" gorm:"size:256"`
	DepartmentID *string   `json:"department_id" gorm:"size:36;index"`
	Status       string    `json:"status" gorm:"size:16;not null;default:'active'"`
	Locale       string    `json:"locale" gorm:"size:8"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Roles      []EmployeeRole `json:"roles,omitempty" gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE"`
	Department *Department    `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
}

func (Employee) TableName() string {
	return "employees"
}

// RoleCodes flattens the role rows.
func (e *Employee) RoleCodes() []string {
	codes := make([]string, 0, len(e.Roles))
	for _, r := range e.Roles {
		codes = append(codes, r.Role)
	}
	return codes
}

// EmployeeRole one role code held by an employee.
type EmployeeRole struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	EmployeeID string `json:"employee_id" gorm:"size:36;not null;uniqueIndex:idx_employee_role"`
	Role       string `json:"role" gorm:"size:16;not null;uniqueIndex:idx_employee_role;index"`
}

func (EmployeeRole) TableName() string {
	return "employee_roles"
}

// Project is referenced by timesheet rows and project tasks. Its manager is the PM approver.
type Project struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Code      string    `json:"code" gorm:"size:32"`
	Name      string    `json:"name" gorm:"size:256;not null"`
	ManagerID *string   `json:"manager_id" gorm:"size:36;index"`
	Status    string    `json:"status" gorm:"size:16;not null;default:'active'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}
