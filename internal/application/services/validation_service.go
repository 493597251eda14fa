package services

import (
	"fmt"
	"time"

	"github.com/preceptly/backend/internal/domain/models"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/errors"
	"github.com/preceptly/backend/pkg/logger"
	"github.com/preceptly/backend/pkg/validator"
)

// FieldRule declares validation for one form field of a step
type FieldRule struct {
	Field     string
	Required  bool
	Validator string
	Config    map[string]interface{}
	Message   string
}

// crossCheck validates relationships between fields of one submission. It
// only runs when every field it names passed its own rule, and returns a
// (field, message) pair on failure.
type crossCheck struct {
	fields []string
	check  func(data models.StepData) (string, string)
}

// ValidationService checks step submissions against the declarative
// per-step rule tables before any session state is touched.
type ValidationService struct {
	rules     map[constants.StepID][]FieldRule
	crossed   map[constants.StepID][]crossCheck
	validator *validator.Registry
	log       *logger.Logger
}

// NewValidationService creates a ValidationService with the built-in rules
func NewValidationService(log *logger.Logger) *ValidationService {
	vs := &ValidationService{
		rules:     make(map[constants.StepID][]FieldRule),
		crossed:   make(map[constants.StepID][]crossCheck),
		validator: validator.GetRegistry(),
		log:       log,
	}
	vs.registerBuiltinRules()
	return vs
}

// ValidateStep validates one submission. It collects every field failure
// into a single ValidationError so the client can render all of them at
// once. A panicking validator is reported as a validation failure, never a
// crash.
func (vs *ValidationService) ValidateStep(step constants.StepID, data models.StepData) (err error) {
	defer func() {
		if r := recover(); r != nil {
			vs.log.Error("validator panic", "step", step, "panic", r)
			err = errors.NewValidationError(string(step), "validation failed unexpectedly")
		}
	}()

	fieldErrors := make(map[string]string)

	for _, rule := range vs.rules[step] {
		val, exists := data[rule.Field]

		if rule.Required && isEmpty(val, exists) {
			fieldErrors[rule.Field] = "is required"
			continue
		}
		if isEmpty(val, exists) {
			continue
		}

		if rule.Validator == "" {
			continue
		}
		if verr := vs.validator.Validate(rule.Validator, val, rule.Config); verr != nil {
			msg := rule.Message
			if msg == "" {
				msg = verr.Error()
			}
			fieldErrors[rule.Field] = msg
		}
	}

	for _, cc := range vs.crossed[step] {
		if anyFailed(fieldErrors, cc.fields) {
			continue
		}
		if field, msg := cc.check(data); field != "" {
			fieldErrors[field] = msg
		}
	}

	if len(fieldErrors) > 0 {
		return errors.NewValidationErrors(fieldErrors)
	}
	return nil
}

// RulesFor exposes the rule table for a step (used by the progress view to
// report required fields).
func (vs *ValidationService) RulesFor(step constants.StepID) []FieldRule {
	return vs.rules[step]
}

func (vs *ValidationService) registerBuiltinRules() {
	roleValues := make([]string, 0)
	for _, r := range constants.AllRoles() {
		roleValues = append(roleValues, string(r))
	}

	vs.rules[constants.StepRoleSelection] = []FieldRule{
		{Field: constants.FormFieldRole, Required: true, Validator: "enum",
			Config:  map[string]interface{}{"values": roleValues},
			Message: "must be a recognized role"},
	}

	vs.rules[constants.StepBasicInfo] = []FieldRule{
		{Field: constants.FormFieldFirstName, Required: true, Validator: "length",
			Config: map[string]interface{}{"min": 1, "max": 100}},
		{Field: constants.FormFieldLastName, Required: true, Validator: "length",
			Config: map[string]interface{}{"min": 1, "max": 100}},
		{Field: constants.FormFieldDateOfBirth, Validator: "date",
			Config:  map[string]interface{}{"not_future": true},
			Message: "must be a past date in YYYY-MM-DD format"},
	}

	vs.rules[constants.StepContactInfo] = []FieldRule{
		{Field: constants.FormFieldEmail, Required: true, Validator: "email"},
		{Field: constants.FormFieldPhone, Validator: "phone"},
	}

	vs.rules[constants.StepSchoolSelection] = []FieldRule{
		{Field: constants.FormFieldSchoolID, Required: true},
	}

	vs.rules[constants.StepProgramSelection] = []FieldRule{
		{Field: constants.FormFieldProgramID, Required: true},
	}

	vs.rules[constants.StepEnrollmentDetails] = []FieldRule{
		{Field: constants.FormFieldEnrollmentDate, Required: true, Validator: "date",
			Config:  map[string]interface{}{"not_past": true},
			Message: "must be today or a future date in YYYY-MM-DD format"},
		{Field: constants.FormFieldExpectedGraduation, Required: true, Validator: "date",
			Message: "must be a date in YYYY-MM-DD format"},
	}
	vs.crossed[constants.StepEnrollmentDetails] = []crossCheck{
		{
			fields: []string{constants.FormFieldEnrollmentDate, constants.FormFieldExpectedGraduation},
			check: func(data models.StepData) (string, string) {
				enrolled, err1 := parseDateField(data[constants.FormFieldEnrollmentDate])
				graduates, err2 := parseDateField(data[constants.FormFieldExpectedGraduation])
				if err1 != nil || err2 != nil {
					return "", ""
				}
				if !graduates.After(enrolled) {
					return constants.FormFieldExpectedGraduation, "must be after the enrollment date"
				}
				return "", ""
			},
		},
	}

	vs.rules[constants.StepCredentialVerification] = []FieldRule{
		{Field: constants.FormFieldLicenseNumber, Required: true, Validator: "alphanumeric",
			Message: "may only contain letters, numbers, and dashes"},
		{Field: constants.FormFieldLicenseState, Required: true, Validator: "length",
			Config:  map[string]interface{}{"min": 2, "max": 2},
			Message: "must be a two-letter state code"},
		{Field: constants.FormFieldLicenseExpiry, Required: true, Validator: "date",
			Config:  map[string]interface{}{"not_past": true},
			Message: "license must not be expired"},
		{Field: constants.FormFieldSpecialty, Validator: "length",
			Config: map[string]interface{}{"max": 200}},
	}

	vs.rules[constants.StepSchoolSetup] = []FieldRule{
		{Field: constants.FormFieldSchoolName, Required: true, Validator: "length",
			Config: map[string]interface{}{"min": 2, "max": 200}},
		{Field: constants.FormFieldSchoolAddress, Validator: "length",
			Config: map[string]interface{}{"max": 500}},
		{Field: constants.FormFieldAccreditationID, Validator: "alphanumeric",
			Message: "may only contain letters, numbers, and dashes"},
	}

	vs.rules[constants.StepProgramSetup] = []FieldRule{
		{Field: constants.FormFieldProgramName, Required: true, Validator: "length",
			Config: map[string]interface{}{"min": 2, "max": 200}},
		{Field: constants.FormFieldDiscipline, Required: true, Validator: "length",
			Config: map[string]interface{}{"min": 2, "max": 100}},
		{Field: constants.FormFieldSeatCount, Validator: "range",
			Config:  map[string]interface{}{"min": 1.0},
			Message: "must be at least 1"},
	}

	vs.rules[constants.StepReviewConfirm] = []FieldRule{
		{Field: constants.FormFieldAcceptTerms, Required: true, Validator: "accepted",
			Message: "must be accepted to finish onboarding"},
	}
}

func isEmpty(val interface{}, exists bool) bool {
	if !exists || val == nil {
		return true
	}
	if s, ok := val.(string); ok {
		return s == ""
	}
	return false
}

func anyFailed(fieldErrors map[string]string, fields []string) bool {
	for _, f := range fields {
		if _, failed := fieldErrors[f]; failed {
			return true
		}
	}
	return false
}

func parseDateField(val interface{}) (time.Time, error) {
	s, ok := val.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected string date")
	}
	return time.Parse(constants.DateLayout, s)
}
