package entity

import "time"

// Workload status
const (
	WorkloadUnderUtilized = "under_utilized"
	WorkloadOptimal       = "optimal"
	WorkloadOverLoaded    = "over_loaded"
	WorkloadCritical      = "critical"
)

// EmployeeWorkloadCapacity planned load of one employee in one ISO week. It is
// a projection of the active assigned tasks and can be regenerated at any time.
type EmployeeWorkloadCapacity struct {
	ID                  string    `json:"id" gorm:"primaryKey;size:36"`
	EmployeeID          string    `json:"employee_id" gorm:"size:36;not null;uniqueIndex:idx_workload_employee_week"`
	WeekStartDate       time.Time `json:"week_start_date" gorm:"type:date;not null;uniqueIndex:idx_workload_employee_week"`
	WeeklyCapacityHours float64   `json:"weekly_capacity_hours" gorm:"type:decimal(6,2);not null"`
	CurrentPlannedHours float64   `json:"current_planned_hours" gorm:"type:decimal(8,2);not null"`
	WorkloadPercentage  float64   `json:"workload_percentage" gorm:"type:decimal(7,2);not null"`
	WorkloadStatus      string    `json:"workload_status" gorm:"size:20;not null"`
	ActiveTaskCount     int       `json:"active_task_count" gorm:"not null"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	Employee *Employee `json:"employee,omitempty" gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE"`
}

func (EmployeeWorkloadCapacity) TableName() string {
	return "employee_workload_capacities"
}
