// Package catalog is the static registry of onboarding steps: display
// metadata, dependency edges, skip predicates, and the per-role routes that
// drive all branching. Routing lives here as data so adding a role or step
// never touches the transition engine.
package catalog

import (
	"fmt"

	"github.com/preceptly/backend/internal/domain/models"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/expression"
)

// Step is one immutable catalog entry
type Step struct {
	ID               constants.StepID
	Title            string
	Required         bool
	EstimatedMinutes int
	DependsOn        []constants.StepID
	// SkipIf is an expr predicate over {role, form, completed}; empty means
	// the step is never skipped.
	SkipIf string
}

// Catalog is the pure, stateless lookup table for steps and role routes
type Catalog struct {
	steps  map[constants.StepID]*Step
	routes map[constants.Role][]constants.StepID
	engine *expression.Engine
}

// commonPrefix is the route segment shared by every role, walked before the
// role is frozen.
var commonPrefix = []constants.StepID{
	constants.StepRoleSelection,
	constants.StepBasicInfo,
	constants.StepContactInfo,
}

// New builds the default catalog. Panics on an invalid skip predicate; the
// catalog is static program data, so that is a programmer error caught at
// startup.
func New(engine *expression.Engine) *Catalog {
	c := &Catalog{
		steps:  make(map[constants.StepID]*Step),
		routes: make(map[constants.Role][]constants.StepID),
		engine: engine,
	}

	c.add(&Step{
		ID:               constants.StepRoleSelection,
		Title:            "Select your role",
		Required:         true,
		EstimatedMinutes: 1,
	})
	c.add(&Step{
		ID:               constants.StepBasicInfo,
		Title:            "Basic information",
		Required:         true,
		EstimatedMinutes: 2,
		DependsOn:        []constants.StepID{constants.StepRoleSelection},
	})
	c.add(&Step{
		ID:               constants.StepContactInfo,
		Title:            "Contact information",
		Required:         true,
		EstimatedMinutes: 2,
		DependsOn:        []constants.StepID{constants.StepBasicInfo},
	})
	c.add(&Step{
		ID:               constants.StepSchoolSelection,
		Title:            "Select your school",
		Required:         true,
		EstimatedMinutes: 3,
		DependsOn:        []constants.StepID{constants.StepContactInfo},
		// Invitations pre-bind the school
		SkipIf: `HAS(form, "invited_school_id")`,
	})
	c.add(&Step{
		ID:               constants.StepProgramSelection,
		Title:            "Select your program",
		Required:         true,
		EstimatedMinutes: 2,
		DependsOn:        []constants.StepID{constants.StepSchoolSelection},
		SkipIf:           `HAS(form, "preassigned_program_id")`,
	})
	c.add(&Step{
		ID:               constants.StepEnrollmentDetails,
		Title:            "Enrollment details",
		Required:         true,
		EstimatedMinutes: 3,
		DependsOn:        []constants.StepID{constants.StepProgramSelection},
	})
	c.add(&Step{
		ID:               constants.StepCredentialVerification,
		Title:            "Verify your credentials",
		Required:         true,
		EstimatedMinutes: 5,
		DependsOn:        []constants.StepID{constants.StepSchoolSelection},
	})
	c.add(&Step{
		ID:               constants.StepSchoolSetup,
		Title:            "Set up your school",
		Required:         true,
		EstimatedMinutes: 5,
		DependsOn:        []constants.StepID{constants.StepContactInfo},
	})
	c.add(&Step{
		ID:               constants.StepProgramSetup,
		Title:            "Set up your first program",
		Required:         false,
		EstimatedMinutes: 4,
		DependsOn:        []constants.StepID{constants.StepSchoolSetup},
		SkipIf:           `form.has_existing_programs == true`,
	})
	c.add(&Step{
		ID:               constants.StepReviewConfirm,
		Title:            "Review and confirm",
		Required:         true,
		EstimatedMinutes: 2,
		// Role-specific tails are covered because out-of-route and skipped
		// dependencies count as satisfied.
		DependsOn: []constants.StepID{
			constants.StepContactInfo,
			constants.StepEnrollmentDetails,
			constants.StepCredentialVerification,
			constants.StepProgramSetup,
		},
	})

	c.routes[constants.RoleStudent] = withPrefix(
		constants.StepSchoolSelection,
		constants.StepProgramSelection,
		constants.StepEnrollmentDetails,
		constants.StepReviewConfirm,
	)
	c.routes[constants.RoleClinicalPreceptor] = withPrefix(
		constants.StepSchoolSelection,
		constants.StepCredentialVerification,
		constants.StepReviewConfirm,
	)
	c.routes[constants.RoleClinicalSupervisor] = withPrefix(
		constants.StepSchoolSelection,
		constants.StepCredentialVerification,
		constants.StepReviewConfirm,
	)
	c.routes[constants.RoleInstitutionAdmin] = withPrefix(
		constants.StepSchoolSetup,
		constants.StepProgramSetup,
		constants.StepReviewConfirm,
	)
	c.routes[constants.RolePlatformAdmin] = withPrefix(
		constants.StepReviewConfirm,
	)

	for _, step := range c.steps {
		if step.SkipIf == "" {
			continue
		}
		if err := engine.Validate(step.SkipIf); err != nil {
			panic(fmt.Sprintf("catalog: invalid skip predicate for step %s: %v", step.ID, err))
		}
	}

	return c
}

func withPrefix(tail ...constants.StepID) []constants.StepID {
	route := make([]constants.StepID, 0, len(commonPrefix)+len(tail))
	route = append(route, commonPrefix...)
	route = append(route, tail...)
	return route
}

func (c *Catalog) add(step *Step) {
	c.steps[step.ID] = step
}

// Step returns the catalog entry for the given id
func (c *Catalog) Step(id constants.StepID) (*Step, bool) {
	step, ok := c.steps[id]
	return step, ok
}

// RequirementsFor returns the ordered steps a role must walk. Before the
// role is frozen only the common prefix is reachable.
func (c *Catalog) RequirementsFor(role constants.Role) []constants.StepID {
	if route, ok := c.routes[role]; ok {
		out := make([]constants.StepID, len(route))
		copy(out, route)
		return out
	}
	out := make([]constants.StepID, len(commonPrefix))
	copy(out, commonPrefix)
	return out
}

// TerminalStepFor returns the last step of the role's route
func (c *Catalog) TerminalStepFor(role constants.Role) constants.StepID {
	route := c.RequirementsFor(role)
	return route[len(route)-1]
}

// InRoute reports whether the step is reachable for the role
func (c *Catalog) InRoute(role constants.Role, step constants.StepID) bool {
	for _, s := range c.RequirementsFor(role) {
		if s == step {
			return true
		}
	}
	return false
}

// ShouldSkip evaluates the step's skip predicate against the session
func (c *Catalog) ShouldSkip(step *Step, session *models.OnboardingSession) (bool, error) {
	if step.SkipIf == "" {
		return false, nil
	}
	return c.engine.EvaluateBool(step.SkipIf, predicateEnv(session))
}

// Next resolves the step that follows `from` on the session's route,
// re-checking skip predicates transitively: a chain of skippable steps
// collapses to the first non-skippable one or to the terminal sentinel.
// Steps already completed are passed over silently; skipped steps are
// reported so the engine can emit step_skipped events.
func (c *Catalog) Next(session *models.OnboardingSession, from constants.StepID) (constants.StepID, []constants.StepID, error) {
	route := c.RequirementsFor(session.Role())

	idx := -1
	for i, s := range route {
		if s == from {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", nil, fmt.Errorf("step %s is not on the %s route", from, session.Role())
	}

	var skipped []constants.StepID
	for _, candidate := range route[idx+1:] {
		if session.HasCompleted(candidate) {
			continue
		}
		step := c.steps[candidate]
		skip, err := c.ShouldSkip(step, session)
		if err != nil {
			return "", nil, fmt.Errorf("skip predicate for step %s: %w", candidate, err)
		}
		if skip {
			skipped = append(skipped, candidate)
			continue
		}
		return candidate, skipped, nil
	}

	return constants.StepComplete, skipped, nil
}

// MissingDependencies returns the depends-on steps that block submission of
// the given step. A dependency is satisfied when it is completed, skipped by
// its predicate, or absent from the session's route.
func (c *Catalog) MissingDependencies(session *models.OnboardingSession, stepID constants.StepID) ([]constants.StepID, error) {
	step, ok := c.steps[stepID]
	if !ok {
		return nil, fmt.Errorf("unknown step %s", stepID)
	}

	var missing []constants.StepID
	for _, dep := range step.DependsOn {
		if session.HasCompleted(dep) {
			continue
		}
		if !c.InRoute(session.Role(), dep) {
			continue
		}
		depStep := c.steps[dep]
		skip, err := c.ShouldSkip(depStep, session)
		if err != nil {
			return nil, fmt.Errorf("skip predicate for step %s: %w", dep, err)
		}
		if skip {
			continue
		}
		missing = append(missing, dep)
	}
	return missing, nil
}

// IsRouteComplete reports whether every non-skipped step of the session's
// route is in the completed history.
func (c *Catalog) IsRouteComplete(session *models.OnboardingSession) (bool, error) {
	for _, stepID := range c.RequirementsFor(session.Role()) {
		if session.HasCompleted(stepID) {
			continue
		}
		skip, err := c.ShouldSkip(c.steps[stepID], session)
		if err != nil {
			return false, err
		}
		if !skip {
			return false, nil
		}
	}
	return true, nil
}

// predicateEnv builds the environment skip predicates evaluate against
func predicateEnv(session *models.OnboardingSession) map[string]interface{} {
	completed := make([]string, 0, len(session.CompletedSteps))
	for _, s := range session.CompletedSteps {
		completed = append(completed, string(s))
	}
	return map[string]interface{}{
		"role":      string(session.Role()),
		"form":      session.FlattenedForm(),
		"completed": completed,
	}
}
