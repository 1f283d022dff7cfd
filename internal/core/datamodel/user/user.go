package user

import "time"

type User struct {
	ID               int64      `gorm:"primaryKey"`
	EmployeeID       string     `gorm:"column:employee_id;size:50;uniqueIndex;not null"`
	FirstName        string     `gorm:"column:first_name;size:100;not null"`
	LastName         string     `gorm:"column:last_name;size:100;not null"`
	Email            string     `gorm:"column:email;uniqueIndex;not null"`
	Phone            string     `gorm:"column:phone;not null"`
	PasswordHash     string     `gorm:"column:password_hash;not null"`
	Role             string     `gorm:"column:role;size:20;index;not null"`
	PositionID       *int64     `gorm:"column:position_id;index"`
	ProfileImage     *string    `gorm:"column:profile_image"`
	Signature        *string    `gorm:"column:signature"`
	FailedLoginCount int        `gorm:"column:failed_login_count;not null;default:0"`
	FirstFailedAt    *time.Time `gorm:"column:first_failed_at"`
	LockoutEnd       *time.Time `gorm:"column:lockout_end"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`

	Address          *Address         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	AccountDetails   *AccountDetails  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	InvoiceData      []InvoiceData    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	InvoiceHistories []InvoiceHistory `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`
}

func (User) TableName() string {
	return "users"
}

type Address struct {
	ID           int64  `gorm:"primaryKey"`
	UserID       int64  `gorm:"column:user_id;uniqueIndex;not null"`
	AddressLine1 string `gorm:"column:address_line1;size:200;not null"`
	AddressLine2 string `gorm:"column:address_line2;size:200"`
	City         string `gorm:"column:city;size:100;not null"`
	State        string `gorm:"column:state;size:100"`
	PostalCode   string `gorm:"column:postal_code;size:20;not null"`
	Country      string `gorm:"column:country;size:100;not null"`
}

func (Address) TableName() string {
	return "addresses"
}

type AccountDetails struct {
	ID            int64  `gorm:"primaryKey"`
	UserID        int64  `gorm:"column:user_id;uniqueIndex;not null"`
	BankName      string `gorm:"column:bank_name;size:100;not null"`
	AccountNumber string `gorm:"column:account_number;size:50;not null"`
	Branch        string `gorm:"column:branch;size:100"`
	SwiftCode     string `gorm:"column:swift_code;size:20"`
}

func (AccountDetails) TableName() string {
	return "account_details"
}

type InvoiceData struct {
	ID            int64   `gorm:"primaryKey"`
	UserID        int64   `gorm:"column:user_id;index;not null"`
	Description   string  `gorm:"column:description;size:500;not null"`
	Rate          float64 `gorm:"column:rate;type:numeric(18,2);not null"`
	GrossTotal    float64 `gorm:"column:gross_total;type:numeric(18,2);not null"`
	InvoiceNumber string  `gorm:"column:invoice_number;size:50;uniqueIndex;not null"`
}

func (InvoiceData) TableName() string {
	return "invoice_data"
}

type InvoiceHistory struct {
	ID            int64     `gorm:"primaryKey"`
	UserID        int64     `gorm:"column:user_id;index;not null"`
	InvoiceDataID *int64    `gorm:"column:invoice_data_id"`
	Action        string    `gorm:"column:action;size:50;not null"`
	Details       string    `gorm:"column:details"`
	Timestamp     time.Time `gorm:"column:timestamp;not null"`
}

func (InvoiceHistory) TableName() string {
	return "invoice_histories"
}
