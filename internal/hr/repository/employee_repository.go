package repository

import (
	"context"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"gorm.io/gorm"
)

// EmployeeRepository reads the employee, department and project reference tables.
type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// FindByID loads an employee with roles.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*entity.Employee, error) {
	var emp entity.Employee
	err := r.db.WithContext(ctx).
		Preload("Roles").
		Where("id = ?", id).
		First(&emp).Error
	if err != nil {
		return nil, translate(err)
	}
	return &emp, nil
}

// LockByID takes a row lock on the employee for the rest of the transaction.
func (r *EmployeeRepository) LockByID(ctx context.Context, id string) (*entity.Employee, error) {
	var emp entity.Employee
	err := forUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&emp).Error
	if err != nil {
		return nil, translate(err)
	}
	return &emp, nil
}

// FindDepartment loads a department.
func (r *EmployeeRepository) FindDepartment(ctx context.Context, id string) (*entity.Department, error) {
	var dept entity.Department
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dept).Error; err != nil {
		return nil, translate(err)
	}
	return &dept, nil
}

// FindProject loads a project.
func (r *EmployeeRepository) FindProject(ctx context.Context, id string) (*entity.Project, error) {
	var project entity.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, translate(err)
	}
	return &project, nil
}

// FirstWithRole returns the earliest-created active employee holding role.
func (r *EmployeeRepository) FirstWithRole(ctx context.Context, role string) (*entity.Employee, error) {
	var emp entity.Employee
	err := r.db.WithContext(ctx).
		Joins("JOIN employee_roles ON employee_roles.employee_id = employees.id").
		Where("employee_roles.role = ? AND employees.status = ?", role, "active").
		Order("employees.created_at ASC, employees.id ASC").
		First(&emp).Error
	if err != nil {
		return nil, translate(err)
	}
	return &emp, nil
}

// HasRole reports whether the employee holds role.
func (r *EmployeeRepository) HasRole(ctx context.Context, employeeID, role string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.EmployeeRole{}).
		Where("employee_id = ? AND role = ?", employeeID, role).
		Count(&count).Error
	return count > 0, err
}

// ListIDsByDepartment returns the active members of a department.
func (r *EmployeeRepository) ListIDsByDepartment(ctx context.Context, departmentID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&entity.Employee{}).
		Where("department_id = ? AND status = ?", departmentID, "active").
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// ListActiveIDs returns every active employee id.
func (r *EmployeeRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&entity.Employee{}).
		Where("status = ?", "active").
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
