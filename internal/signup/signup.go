// Package signup handles self-service account requests that an administrator approves or rejects.
package signup

import (
	"strings"
	"time"

	"github.com/frahmantamala/invoice-admin/internal"
	"github.com/frahmantamala/invoice-admin/internal/core/common/validation"
	signupDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/signup"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

func ParseStatus(s string) (Status, bool) {
	for _, st := range []Status{StatusPending, StatusApproved, StatusRejected} {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

type Request struct {
	ID          int64      `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email"`
	EmployeeID  string     `json:"employeeId"`
	Phone       string     `json:"phone"`
	Status      Status     `json:"status"`
	RequestDate time.Time  `json:"requestDate"`
	ApprovedBy  *int64     `json:"approvedBy,omitempty"`
	ApprovedOn  *time.Time `json:"approvedOn,omitempty"`
	UserID      *int64     `json:"userId,omitempty"`
}

func FromDataModel(r *signupDatamodel.SignupRequest) *Request {
	return &Request{
		ID:          r.ID,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		EmployeeID:  r.EmployeeID,
		Phone:       r.Phone,
		Status:      Status(r.Status),
		RequestDate: r.RequestDate,
		ApprovedBy:  r.ApprovedBy,
		ApprovedOn:  r.ApprovedOn,
	}
}

type SubmitDTO struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	EmployeeID string `json:"employeeId"`
	Phone      string `json:"phone"`
}

func (d *SubmitDTO) Normalize() {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.EmployeeID = strings.TrimSpace(d.EmployeeID)
	d.Phone = strings.TrimSpace(d.Phone)
}

func (d SubmitDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("firstName", d.FirstName).Required().MaxLength(100)
	v.Field("lastName", d.LastName).Required().MaxLength(100)
	v.Field("email", d.Email).Required().MaxLength(256).Email()
	v.Field("employeeId", d.EmployeeID).Required().MaxLength(50)
	v.Field("phone", d.Phone).Required().MaxLength(25)
	return v.Validate()
}

// ApproveDTO carries what the request itself does not: the initial password and an optional position.
type ApproveDTO struct {
	Password   string `json:"password"`
	PositionID *int64 `json:"positionId,omitempty"`
}

type RequestsResponse struct {
	Requests []*Request `json:"requests"`
}
