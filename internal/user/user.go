package user

import (
	"errors"
	"strings"
	"time"

	userDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/user"
)

// ErrUniqueViolation is returned by repositories when a write loses a uniqueness race.
var ErrUniqueViolation = errors.New("unique constraint violated")

type User struct {
	ID             int64            `json:"id"`
	EmployeeID     string           `json:"employeeId"`
	FirstName      string           `json:"firstName"`
	LastName       string           `json:"lastName"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone"`
	Role           string           `json:"role"`
	PositionID     *int64           `json:"positionId,omitempty"`
	ProfileImage   *string          `json:"profileImage,omitempty"`
	Signature      *string          `json:"signature,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	Permissions    []string         `json:"permissions,omitempty"`
	Address        *Address         `json:"address,omitempty"`
	AccountDetails *AccountDetails  `json:"accountDetails,omitempty"`
	InvoiceData    []InvoiceData    `json:"invoiceData,omitempty"`
	InvoiceHistory []InvoiceHistory `json:"invoiceHistory,omitempty"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type Address struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"userId"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

type AccountDetails struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"userId"`
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	Branch        string `json:"branch,omitempty"`
	SwiftCode     string `json:"swiftCode,omitempty"`
}

type InvoiceData struct {
	ID            int64   `json:"id"`
	UserID        int64   `json:"userId"`
	Description   string  `json:"description"`
	Rate          float64 `json:"rate"`
	GrossTotal    float64 `json:"grossTotal"`
	InvoiceNumber string  `json:"invoiceNumber"`
}

type InvoiceHistory struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"userId"`
	InvoiceDataID *int64    `json:"invoiceDataId,omitempty"`
	Action        string    `json:"action"`
	Details       string    `json:"details,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// History actions.
const (
	HistoryActionCreated = "Created"
	HistoryActionUpdated = "Updated"
)

// IncludeOptions selects which sub-records are loaded with a user.
type IncludeOptions struct {
	Address        bool
	AccountDetails bool
	InvoiceHistory bool
	InvoiceData    bool
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SearchOptions drives ListUsers.
type SearchOptions struct {
	SearchTerm     string
	Role           string
	PositionID     *int64
	SortBy         string
	SortDescending bool
	Skip           int
	Take           int
	Include        IncludeOptions
}

var sortColumns = map[string]string{
	"id":         "id",
	"email":      "email",
	"first_name": "first_name",
	"firstname":  "first_name",
	"created_at": "created_at",
	"createdat":  "created_at",
}

// SortColumn maps SortBy onto a column, falling back to id.
func (o SearchOptions) SortColumn() string {
	if col, ok := sortColumns[strings.ToLower(strings.TrimSpace(o.SortBy))]; ok {
		return col
	}
	return "id"
}

// Normalize clamps paging values.
func (o SearchOptions) Normalize() SearchOptions {
	o.SearchTerm = strings.TrimSpace(o.SearchTerm)
	if o.Skip < 0 {
		o.Skip = 0
	}
	if o.Take <= 0 {
		o.Take = DefaultPageSize
	}
	if o.Take > MaxPageSize {
		o.Take = MaxPageSize
	}
	return o
}

type UserPage struct {
	Items []*User `json:"items"`
	Total int64   `json:"total"`
	Skip  int     `json:"skip"`
	Take  int     `json:"take"`
}

func FromDataModel(u *userDatamodel.User) *User {
	out := &User{
		ID:           u.ID,
		EmployeeID:   u.EmployeeID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		Phone:        u.Phone,
		Role:         u.Role,
		PositionID:   u.PositionID,
		ProfileImage: u.ProfileImage,
		Signature:    u.Signature,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.Address != nil {
		out.Address = addressFromDataModel(u.Address)
	}
	if u.AccountDetails != nil {
		out.AccountDetails = accountDetailsFromDataModel(u.AccountDetails)
	}
	for i := range u.InvoiceData {
		out.InvoiceData = append(out.InvoiceData, *invoiceDataFromDataModel(&u.InvoiceData[i]))
	}
	for _, h := range u.InvoiceHistories {
		out.InvoiceHistory = append(out.InvoiceHistory, InvoiceHistory{
			ID:            h.ID,
			UserID:        h.UserID,
			InvoiceDataID: h.InvoiceDataID,
			Action:        h.Action,
			Details:       h.Details,
			Timestamp:     h.Timestamp,
		})
	}
	return out
}

func addressFromDataModel(a *userDatamodel.Address) *Address {
	return &Address{
		ID:           a.ID,
		UserID:       a.UserID,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
	}
}

func accountDetailsFromDataModel(a *userDatamodel.AccountDetails) *AccountDetails {
	return &AccountDetails{
		ID:            a.ID,
		UserID:        a.UserID,
		BankName:      a.BankName,
		AccountNumber: a.AccountNumber,
		Branch:        a.Branch,
		SwiftCode:     a.SwiftCode,
	}
}

func invoiceDataFromDataModel(d *userDatamodel.InvoiceData) *InvoiceData {
	return &InvoiceData{
		ID:            d.ID,
		UserID:        d.UserID,
		Description:   d.Description,
		Rate:          d.Rate,
		GrossTotal:    d.GrossTotal,
		InvoiceNumber: d.InvoiceNumber,
	}
}
