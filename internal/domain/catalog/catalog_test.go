package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preceptly/backend/internal/domain/models"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/expression"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	return New(expression.NewEngine())
}

func sessionWithRole(role constants.Role, completed ...constants.StepID) *models.OnboardingSession {
	s := &models.OnboardingSession{
		SessionID:      "obs_test",
		PrincipalID:    "principal-1",
		Status:         constants.SessionStatusActive,
		CompletedSteps: completed,
		FormData:       models.FormData{},
	}
	if role != "" {
		s.SelectedRole = &role
	}
	return s
}

func TestRequirementsFor(t *testing.T) {
	c := newTestCatalog(t)

	tests := []struct {
		name string
		role constants.Role
		want []constants.StepID
	}{
		{
			name: "student walks the full enrollment route",
			role: constants.RoleStudent,
			want: []constants.StepID{
				constants.StepRoleSelection,
				constants.StepBasicInfo,
				constants.StepContactInfo,
				constants.StepSchoolSelection,
				constants.StepProgramSelection,
				constants.StepEnrollmentDetails,
				constants.StepReviewConfirm,
			},
		},
		{
			name: "preceptor verifies credentials instead of enrolling",
			role: constants.RoleClinicalPreceptor,
			want: []constants.StepID{
				constants.StepRoleSelection,
				constants.StepBasicInfo,
				constants.StepContactInfo,
				constants.StepSchoolSelection,
				constants.StepCredentialVerification,
				constants.StepReviewConfirm,
			},
		},
		{
			name: "institution admin sets up school and program",
			role: constants.RoleInstitutionAdmin,
			want: []constants.StepID{
				constants.StepRoleSelection,
				constants.StepBasicInfo,
				constants.StepContactInfo,
				constants.StepSchoolSetup,
				constants.StepProgramSetup,
				constants.StepReviewConfirm,
			},
		},
		{
			name: "platform admin goes straight to review",
			role: constants.RolePlatformAdmin,
			want: []constants.StepID{
				constants.StepRoleSelection,
				constants.StepBasicInfo,
				constants.StepContactInfo,
				constants.StepReviewConfirm,
			},
		},
		{
			name: "unfrozen role only sees the common prefix",
			role: "",
			want: []constants.StepID{
				constants.StepRoleSelection,
				constants.StepBasicInfo,
				constants.StepContactInfo,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.RequirementsFor(tt.role))
		})
	}
}

func TestNext(t *testing.T) {
	c := newTestCatalog(t)

	t.Run("advances to the following route step", func(t *testing.T) {
		s := sessionWithRole(constants.RoleStudent, constants.StepRoleSelection)
		next, skipped, err := c.Next(s, constants.StepRoleSelection)
		require.NoError(t, err)
		assert.Equal(t, constants.StepBasicInfo, next)
		assert.Empty(t, skipped)
	})

	t.Run("skips school selection for invited principals", func(t *testing.T) {
		s := sessionWithRole(constants.RoleStudent,
			constants.StepRoleSelection, constants.StepBasicInfo, constants.StepContactInfo)
		s.FormData = models.FormData{
			constants.StepContactInfo: {constants.FormFieldInvitedSchoolID: "school-42"},
		}
		next, skipped, err := c.Next(s, constants.StepContactInfo)
		require.NoError(t, err)
		assert.Equal(t, constants.StepProgramSelection, next)
		assert.Equal(t, []constants.StepID{constants.StepSchoolSelection}, skipped)
	})

	t.Run("collapses a chain of skippable steps transitively", func(t *testing.T) {
		s := sessionWithRole(constants.RoleStudent,
			constants.StepRoleSelection, constants.StepBasicInfo, constants.StepContactInfo)
		s.FormData = models.FormData{
			constants.StepContactInfo: {
				constants.FormFieldInvitedSchoolID:      "school-42",
				constants.FormFieldPreassignedProgramID: "program-7",
			},
		}
		next, skipped, err := c.Next(s, constants.StepContactInfo)
		require.NoError(t, err)
		assert.Equal(t, constants.StepEnrollmentDetails, next)
		assert.Equal(t, []constants.StepID{
			constants.StepSchoolSelection,
			constants.StepProgramSelection,
		}, skipped)
	})

	t.Run("passes over already completed steps without reporting them", func(t *testing.T) {
		s := sessionWithRole(constants.RoleStudent,
			constants.StepRoleSelection, constants.StepBasicInfo,
			constants.StepContactInfo, constants.StepSchoolSelection)
		next, skipped, err := c.Next(s, constants.StepBasicInfo)
		require.NoError(t, err)
		assert.Equal(t, constants.StepProgramSelection, next)
		assert.Empty(t, skipped)
	})

	t.Run("skips program setup when programs already exist", func(t *testing.T) {
		s := sessionWithRole(constants.RoleInstitutionAdmin,
			constants.StepRoleSelection, constants.StepBasicInfo,
			constants.StepContactInfo, constants.StepSchoolSetup)
		s.FormData = models.FormData{
			constants.StepSchoolSetup: {constants.FormFieldHasExistingPrograms: true},
		}
		next, skipped, err := c.Next(s, constants.StepSchoolSetup)
		require.NoError(t, err)
		assert.Equal(t, constants.StepReviewConfirm, next)
		assert.Equal(t, []constants.StepID{constants.StepProgramSetup}, skipped)
	})

	t.Run("returns the terminal sentinel past the last step", func(t *testing.T) {
		s := sessionWithRole(constants.RolePlatformAdmin,
			constants.StepRoleSelection, constants.StepBasicInfo,
			constants.StepContactInfo, constants.StepReviewConfirm)
		next, skipped, err := c.Next(s, constants.StepReviewConfirm)
		require.NoError(t, err)
		assert.Equal(t, constants.StepComplete, next)
		assert.Empty(t, skipped)
	})

	t.Run("rejects a step outside the route", func(t *testing.T) {
		s := sessionWithRole(constants.RolePlatformAdmin)
		_, _, err := c.Next(s, constants.StepEnrollmentDetails)
		assert.Error(t, err)
	})
}

func TestMissingDependencies(t *testing.T) {
	c := newTestCatalog(t)

	t.Run("blocks a step whose dependency is incomplete", func(t *testing.T) {
		s := sessionWithRole(constants.RoleStudent, constants.StepRoleSelection)
		missing, err := c.MissingDependencies(s, constants.StepContactInfo)
		require.NoError(t, err)
		assert.Equal(t, []constants.StepID{constants.StepBasicInfo}, missing)
	})

	t.Run("treats skipped dependencies as satisfied", func(t *testing.T) {
		s := sessionWithRole(constants.RoleStudent,
			constants.StepRoleSelection, constants.StepBasicInfo, constants.StepContactInfo)
		s.FormData = models.FormData{
			constants.StepContactInfo: {constants.FormFieldInvitedSchoolID: "school-42"},
		}
		missing, err := c.MissingDependencies(s, constants.StepProgramSelection)
		require.NoError(t, err)
		assert.Empty(t, missing)
	})

	t.Run("ignores dependencies outside the role route", func(t *testing.T) {
		s := sessionWithRole(constants.RolePlatformAdmin,
			constants.StepRoleSelection, constants.StepBasicInfo, constants.StepContactInfo)
		missing, err := c.MissingDependencies(s, constants.StepReviewConfirm)
		require.NoError(t, err)
		assert.Empty(t, missing)
	})

	t.Run("review is blocked until the role tail is done", func(t *testing.T) {
		s := sessionWithRole(constants.RoleClinicalPreceptor,
			constants.StepRoleSelection, constants.StepBasicInfo,
			constants.StepContactInfo, constants.StepSchoolSelection)
		missing, err := c.MissingDependencies(s, constants.StepReviewConfirm)
		require.NoError(t, err)
		assert.Equal(t, []constants.StepID{constants.StepCredentialVerification}, missing)
	})
}

func TestIsRouteComplete(t *testing.T) {
	c := newTestCatalog(t)

	t.Run("incomplete route", func(t *testing.T) {
		s := sessionWithRole(constants.RoleStudent, constants.StepRoleSelection)
		done, err := c.IsRouteComplete(s)
		require.NoError(t, err)
		assert.False(t, done)
	})

	t.Run("complete route counts skipped steps", func(t *testing.T) {
		s := sessionWithRole(constants.RoleStudent,
			constants.StepRoleSelection, constants.StepBasicInfo,
			constants.StepContactInfo, constants.StepEnrollmentDetails,
			constants.StepReviewConfirm)
		s.FormData = models.FormData{
			constants.StepContactInfo: {
				constants.FormFieldInvitedSchoolID:      "school-42",
				constants.FormFieldPreassignedProgramID: "program-7",
			},
		}
		done, err := c.IsRouteComplete(s)
		require.NoError(t, err)
		assert.True(t, done)
	})
}

func TestTerminalStepFor(t *testing.T) {
	c := newTestCatalog(t)
	assert.Equal(t, constants.StepReviewConfirm, c.TerminalStepFor(constants.RoleStudent))
	assert.Equal(t, constants.StepContactInfo, c.TerminalStepFor(""))
}

func TestStepLookup(t *testing.T) {
	c := newTestCatalog(t)

	step, ok := c.Step(constants.StepCredentialVerification)
	require.True(t, ok)
	assert.Equal(t, "Verify your credentials", step.Title)
	assert.True(t, step.Required)

	_, ok = c.Step("nonexistent")
	assert.False(t, ok)
}
