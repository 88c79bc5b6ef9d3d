package ticket

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Status string

const (
	StatusNew    Status = "new"
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type Ticket struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Product     string    `json:"product"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateTicketRequest struct {
	Product     string `json:"product" validate:"required"`
	Description string `json:"description" validate:"required"`
}

func (r CreateTicketRequest) Validate() error {
	r.Product = strings.TrimSpace(r.Product)
	r.Description = strings.TrimSpace(r.Description)
	if err := validate.Struct(r); err != nil {
		return ValidationError("Please add a products and description")
	}
	return nil
}

// Patch is a partial update. Nil fields are left untouched. The id and owner
// of a ticket are never part of a patch.
type Patch struct {
	Product     *string `json:"product,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

func (p Patch) Apply(t Ticket) Ticket {
	if p.Product != nil {
		t.Product = *p.Product
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	return t
}

// ValidateStatus rejects a status outside new/open/closed. Only enforced in strict mode.
func (p Patch) ValidateStatus() error {
	if p.Status == nil {
		return nil
	}
	if err := validate.Var(string(*p.Status), "oneof=new open closed"); err != nil {
		return ValidationError("Invalid ticket status")
	}
	return nil
}

type ValidationError string

func (e ValidationError) Error() string { return string(e) }
