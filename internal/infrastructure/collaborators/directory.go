// Package collaborators holds the clients for the systems onboarding hands
// off to at completion: the principal directory and the billing service.
package collaborators

import (
	"context"
	"fmt"
	"time"

	"github.com/preceptly/backend/internal/domain/ports"
	"github.com/preceptly/backend/internal/infrastructure/database"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/logger"
)

// DirectoryProvisioner writes the committed role assignment into the
// portal's principal directory. Upsert keyed by principal: re-running a
// completion never duplicates the assignment.
type DirectoryProvisioner struct {
	db  *database.MySQLConnection
	log *logger.Logger
}

// Ensure DirectoryProvisioner implements ports.RoleProvisioner at compile time
var _ ports.RoleProvisioner = (*DirectoryProvisioner)(nil)

// NewDirectoryProvisioner creates the directory client
func NewDirectoryProvisioner(db *database.MySQLConnection, log *logger.Logger) *DirectoryProvisioner {
	return &DirectoryProvisioner{db: db, log: log}
}

// AssignRole upserts the principal's role and school/program bindings
func (p *DirectoryProvisioner) AssignRole(ctx context.Context, assignment ports.Assignment) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, role, school_id, program_id, assigned_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE role = VALUES(role), school_id = VALUES(school_id),
		program_id = VALUES(program_id), assigned_at = VALUES(assigned_at)`,
		constants.TablePrincipalAssignment, constants.FieldPrincipalID)

	_, err := p.db.ExecContext(ctx, query,
		assignment.PrincipalID, assignment.Role,
		nullable(assignment.SchoolID), nullable(assignment.ProgramID),
		time.Now())
	if err != nil {
		return fmt.Errorf("failed to assign role for principal %s: %w", assignment.PrincipalID, err)
	}

	p.log.Info("role assigned in directory",
		"principal_id", assignment.PrincipalID, "role", assignment.Role)
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
