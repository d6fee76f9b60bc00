package dashboard

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// FieldErrors maps a form field (its JSON name) to the message shown under it.
type FieldErrors map[string]string

// ValidateForm runs the struct's validate tags. It never modifies form, so a failed
// submit keeps what the user typed. A nil result means the form may be submitted.
func ValidateForm(form interface{}) FieldErrors {
	err := formValidator().Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"": err.Error()}
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "latitude", "longitude":
		return "Enter a valid coordinate"
	}
	return "Invalid value"
}

// Forms of the CRUD screens.

type BusForm struct {
	BusNumber          string `json:"busNumber" validate:"required"`
	RegistrationNumber string `json:"registrationNumber"`
	Capacity           int    `json:"capacity" validate:"gte=0"`
	OwnerID            uint   `json:"ownerId,omitempty"`
	RouteID            *uint  `json:"routeId,omitempty"`
}

type StopForm struct {
	Name string  `json:"name" validate:"required"`
	Seq  int     `json:"seq" validate:"gte=0"`
	Lat  float64 `json:"lat" validate:"latitude"`
	Lng  float64 `json:"lng" validate:"longitude"`
}

type SectionForm struct {
	Category string  `json:"category" validate:"required"`
	Price    float64 `json:"price" validate:"gt=0"`
}

type ExpenseTypeForm struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type UserForm struct {
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	Phone          string `json:"phone"`
	Role           string `json:"role" validate:"required,oneof=super-admin bus-owner manager"`
	AssignedBusIDs []uint `json:"assignedBusIds,omitempty"`
}

// Submit validates form and, when it passes, POSTs it to path. Field errors come back
// untouched so the form can stay open.
func (c *Client) Submit(ctx context.Context, path string, form, out interface{}) (FieldErrors, error) {
	if fe := ValidateForm(form); fe != nil {
		return fe, nil
	}
	return nil, c.Post(ctx, path, form, out)
}
