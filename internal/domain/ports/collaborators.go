package ports

import (
	"context"

	"github.com/preceptly/backend/pkg/constants"
)

// Assignment is the onboarding outcome handed to the collaborators: the
// principal's committed role plus the school/program bindings captured in
// the wizard.
type Assignment struct {
	PrincipalID string
	Role        constants.Role
	SchoolID    string
	ProgramID   string
}

// RoleProvisioner persists the principal's role/school/program assignment in
// the directory (the ORM-side collaborator). A failure aborts completion.
type RoleProvisioner interface {
	AssignRole(ctx context.Context, assignment Assignment) error
}

// SeatAssigner reserves or purchases a seat for the principal (the billing
// collaborator). A failure aborts completion.
type SeatAssigner interface {
	AssignSeat(ctx context.Context, assignment Assignment) error
}
