package admission

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FamilyForm is step one: parent details and category.
type FamilyForm struct {
	FatherName       string         `json:"father_name" validate:"required,max=120"`
	MotherName       string         `json:"mother_name" validate:"omitempty,max=120"`
	Email            string         `json:"email" validate:"required,email"`
	Phone            string         `json:"phone" validate:"required,min=7,max=20"`
	Address          string         `json:"address" validate:"omitempty,max=255"`
	ParentCategory   ParentCategory `json:"parent_category" validate:"required,oneof=normal teacher staff"`
	ExistingParentID int64          `json:"existing_parent_id,omitempty" validate:"omitempty,gt=0"`
}

// StudentForm is step two: the child and the documents handed in.
type StudentForm struct {
	FirstName      string   `json:"first_name" validate:"required,max=80"`
	LastName       string   `json:"last_name" validate:"omitempty,max=80"`
	DateOfBirth    string   `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Gender         string   `json:"gender" validate:"required,oneof=male female"`
	ClassID        int64    `json:"class_id" validate:"required,gt=0"`
	BaseFee        Money    `json:"base_fee" validate:"gt=0"`
	PreviousSchool string   `json:"previous_school,omitempty" validate:"omitempty,max=160"`
	Documents      []string `json:"documents,omitempty" validate:"omitempty,dive,required,max=255"`
}

// TransportForm is step three.
type TransportForm struct {
	Required bool   `json:"required"`
	RouteID  int64  `json:"route_id,omitempty" validate:"required_if=Required true"`
	PickUp   string `json:"pick_up,omitempty" validate:"omitempty,max=160"`
	Fee      Money  `json:"fee" validate:"gte=0"`
}

// ConfirmForm is the declaration on the last step.
type ConfirmForm struct {
	AcceptTerms bool   `json:"accept_terms" validate:"required"`
	Remarks     string `json:"remarks,omitempty" validate:"omitempty,max=500"`
}

// NewForm returns an empty form for step, or nil for steps without one.
func NewForm(step Step) interface{} {
	switch step {
	case StepFamily:
		return &FamilyForm{}
	case StepStudent:
		return &StudentForm{}
	case StepTransport:
		return &TransportForm{}
	case StepConfirm:
		return &ConfirmForm{}
	default:
		return nil
	}
}

// NewValidator returns a validator reporting fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	useJSONNames(v)
	return v
}

func useJSONNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// fieldStep locates the step owning a submitted field.
var fieldStep = func() map[string]Step {
	out := make(map[string]Step)
	for step := StepFamily; step <= StepConfirm; step++ {
		form := NewForm(step)
		if form == nil {
			continue
		}
		t := reflect.TypeOf(form).Elem()
		for i := 0; i < t.NumField(); i++ {
			name := strings.SplitN(t.Field(i).Tag.Get("json"), ",", 2)[0]
			if name != "" && name != "-" {
				out[name] = step
			}
		}
	}
	return out
}()

func validationMessages(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"form": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = describe(fe)
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must not be negative"
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	default:
		return "is invalid"
	}
}
