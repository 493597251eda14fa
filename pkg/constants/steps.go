package constants

// StepID identifies one step of the onboarding wizard
type StepID string

const (
	StepRoleSelection          StepID = "role-selection"
	StepBasicInfo              StepID = "basic-info"
	StepContactInfo            StepID = "contact-info"
	StepSchoolSelection        StepID = "school-selection"
	StepProgramSelection       StepID = "program-selection"
	StepEnrollmentDetails      StepID = "enrollment-details"
	StepCredentialVerification StepID = "credential-verification"
	StepSchoolSetup            StepID = "school-setup"
	StepProgramSetup           StepID = "program-setup"
	StepReviewConfirm          StepID = "review-confirm"

	// StepComplete is the terminal sentinel returned by the catalog when no
	// reachable step remains. It is never submitted and never persisted in
	// completed_steps.
	StepComplete StepID = "complete"
)

// AllSteps returns every submittable step id (excludes the terminal sentinel)
func AllSteps() []StepID {
	return []StepID{
		StepRoleSelection,
		StepBasicInfo,
		StepContactInfo,
		StepSchoolSelection,
		StepProgramSelection,
		StepEnrollmentDetails,
		StepCredentialVerification,
		StepSchoolSetup,
		StepProgramSetup,
		StepReviewConfirm,
	}
}

// IsValidStep checks whether s names a submittable catalog step
func IsValidStep(s string) bool {
	for _, step := range AllSteps() {
		if string(step) == s {
			return true
		}
	}
	return false
}
