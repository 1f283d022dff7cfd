package signup

import "time"

type SignupRequest struct {
	ID          int64      `gorm:"primaryKey"`
	FirstName   string     `gorm:"column:first_name;size:100;not null"`
	LastName    string     `gorm:"column:last_name;size:100;not null"`
	Email       string     `gorm:"column:email;index;not null"`
	EmployeeID  string     `gorm:"column:employee_id;size:50;not null"`
	Phone       string     `gorm:"column:phone;not null"`
	Status      string     `gorm:"column:status;size:20;index;not null"`
	RequestDate time.Time  `gorm:"column:request_date;not null"`
	ApprovedBy  *int64     `gorm:"column:approved_by"`
	ApprovedOn  *time.Time `gorm:"column:approved_on"`
}

func (SignupRequest) TableName() string {
	return "signup_requests"
}
