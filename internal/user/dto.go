package user

import (
	"regexp"
	"strings"

	"github.com/frahmantamala/invoice-admin/internal"
	"github.com/frahmantamala/invoice-admin/internal/core/common/validation"
	userDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/user"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,24}$`)

type CreateUserDTO struct {
	EmployeeID string `json:"employeeId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	PositionID *int64 `json:"positionId,omitempty"`
}

// Normalize trims fields and lowercases the email.
func (d *CreateUserDTO) Normalize() {
	d.EmployeeID = strings.TrimSpace(d.EmployeeID)
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Phone = strings.TrimSpace(d.Phone)
	d.Role = strings.TrimSpace(d.Role)
}

func (d CreateUserDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("employeeId", d.EmployeeID).Required().MaxLength(50)
	v.Field("firstName", d.FirstName).Required().MaxLength(100)
	v.Field("lastName", d.LastName).Required().MaxLength(100)
	v.Field("email", d.Email).Required().MaxLength(256).Email()
	v.Field("phone", d.Phone).Required().
		Matches(phonePattern, "phone must be a valid phone number", internal.ErrCodeValidationFailed)
	v.Field("password", d.Password).Required().MinLength(8).MaxLength(100).StrongPassword()
	if d.PositionID != nil {
		v.Field("positionId", *d.PositionID).Custom(positiveID("positionId"))
	}
	return v.Validate()
}

func positiveID(field string) validation.ValidatorFunc {
	return func(value interface{}) *internal.AppError {
		if id, ok := value.(int64); ok && id <= 0 {
			return internal.NewValidationFieldError(field, field+" must be a positive integer", internal.ErrCodeValidationFailed)
		}
		return nil
	}
}

type UpdatePositionDTO struct {
	PositionID int64 `json:"positionId"`
}

func (d UpdatePositionDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("positionId", d.PositionID).Required().Custom(positiveID("positionId"))
	return v.Validate()
}

type AddressDTO struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

func (d *AddressDTO) Normalize() {
	d.AddressLine1 = strings.TrimSpace(d.AddressLine1)
	d.AddressLine2 = strings.TrimSpace(d.AddressLine2)
	d.City = strings.TrimSpace(d.City)
	d.State = strings.TrimSpace(d.State)
	d.PostalCode = strings.TrimSpace(d.PostalCode)
	d.Country = strings.TrimSpace(d.Country)
}

func (d AddressDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("addressLine1", d.AddressLine1).Required().MaxLength(200)
	v.Field("addressLine2", d.AddressLine2).MaxLength(200)
	v.Field("city", d.City).Required().MaxLength(100)
	v.Field("state", d.State).MaxLength(100)
	v.Field("postalCode", d.PostalCode).Required().MaxLength(20)
	v.Field("country", d.Country).Required().MaxLength(100)
	return v.Validate()
}

func (d AddressDTO) apply(a *userDatamodel.Address) {
	a.AddressLine1 = d.AddressLine1
	a.AddressLine2 = d.AddressLine2
	a.City = d.City
	a.State = d.State
	a.PostalCode = d.PostalCode
	a.Country = d.Country
}

type AccountDetailsDTO struct {
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	Branch        string `json:"branch"`
	SwiftCode     string `json:"swiftCode"`
}

func (d *AccountDetailsDTO) Normalize() {
	d.BankName = strings.TrimSpace(d.BankName)
	d.AccountNumber = strings.TrimSpace(d.AccountNumber)
	d.Branch = strings.TrimSpace(d.Branch)
	d.SwiftCode = strings.ToUpper(strings.TrimSpace(d.SwiftCode))
}

func (d AccountDetailsDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("bankName", d.BankName).Required().MaxLength(100)
	v.Field("accountNumber", d.AccountNumber).Required().MaxLength(50)
	v.Field("branch", d.Branch).MaxLength(100)
	v.Field("swiftCode", d.SwiftCode).MaxLength(20)
	return v.Validate()
}

func (d AccountDetailsDTO) apply(a *userDatamodel.AccountDetails) {
	a.BankName = d.BankName
	a.AccountNumber = d.AccountNumber
	a.Branch = d.Branch
	a.SwiftCode = d.SwiftCode
}

type InvoiceDataDTO struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	Description   string  `json:"description"`
	Rate          float64 `json:"rate"`
	GrossTotal    float64 `json:"grossTotal"`
}

func (d *InvoiceDataDTO) Normalize() {
	d.InvoiceNumber = strings.TrimSpace(d.InvoiceNumber)
	d.Description = strings.TrimSpace(d.Description)
}

func (d InvoiceDataDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("invoiceNumber", d.InvoiceNumber).Required().MaxLength(50)
	v.Field("description", d.Description).Required().MaxLength(500)
	v.Field("rate", d.Rate).PositiveFloat()
	v.Field("grossTotal", d.GrossTotal).PositiveFloat()
	return v.Validate()
}

func (d InvoiceDataDTO) apply(row *userDatamodel.InvoiceData) {
	row.InvoiceNumber = d.InvoiceNumber
	row.Description = d.Description
	row.Rate = d.Rate
	row.GrossTotal = d.GrossTotal
}

type SignatureResponse struct {
	UserID    int64  `json:"userId"`
	Signature string `json:"signature"`
}
