package constants

// Form field names accumulated in session form_data, keyed by step
const (
	FormFieldRole                 = "role"
	FormFieldFirstName            = "first_name"
	FormFieldLastName             = "last_name"
	FormFieldDateOfBirth          = "date_of_birth"
	FormFieldEmail                = "email"
	FormFieldPhone                = "phone"
	FormFieldSchoolID             = "school_id"
	FormFieldSchoolName           = "school_name"
	FormFieldSchoolAddress        = "address"
	FormFieldAccreditationID      = "accreditation_id"
	FormFieldProgramID            = "program_id"
	FormFieldProgramName          = "program_name"
	FormFieldDiscipline           = "discipline"
	FormFieldSeatCount            = "seat_count"
	FormFieldEnrollmentDate       = "enrollment_date"
	FormFieldExpectedGraduation   = "expected_graduation"
	FormFieldLicenseNumber        = "license_number"
	FormFieldLicenseState         = "license_state"
	FormFieldLicenseExpiry        = "license_expiry"
	FormFieldSpecialty            = "specialty"
	FormFieldAcceptTerms          = "accept_terms"
	FormFieldInvitedSchoolID      = "invited_school_id"
	FormFieldPreassignedProgramID = "preassigned_program_id"
	FormFieldHasExistingPrograms  = "has_existing_programs"
)

// DateLayout is the wire format for all date-valued form fields
const DateLayout = "2006-01-02"
