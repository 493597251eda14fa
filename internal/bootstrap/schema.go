// Package bootstrap creates the portal's tables on startup. All DDL is
// idempotent so repeated boots against the same database are safe.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/preceptly/backend/internal/infrastructure/database"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/logger"
)

// InitializeSchema creates the onboarding tables if they do not exist
func InitializeSchema(ctx context.Context, db *database.MySQLConnection, log *logger.Logger) error {
	log.Info("initializing database schema")

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s VARCHAR(64) PRIMARY KEY,
			%s VARCHAR(64) NOT NULL,
			%s VARCHAR(64) NOT NULL,
			%s JSON NOT NULL,
			%s JSON NOT NULL,
			%s VARCHAR(16) NOT NULL,
			%s VARCHAR(32) NULL,
			%s DATETIME(3) NOT NULL,
			%s DATETIME(3) NOT NULL,
			%s DATETIME(3) NOT NULL,
			%s DATETIME(3) NULL,
			%s INT NOT NULL DEFAULT 0,
			%s TEXT NULL,
			INDEX idx_session_principal (%s, %s),
			INDEX idx_session_expiry (%s, %s)
		) CHARACTER SET utf8mb4`,
			constants.TableOnboardingSession,
			constants.FieldSessionID,
			constants.FieldPrincipalID,
			constants.FieldCurrentStep,
			constants.FieldCompletedSteps,
			constants.FieldFormData,
			constants.FieldStatus,
			constants.FieldSelectedRole,
			constants.FieldStartedAt,
			constants.FieldUpdatedAt,
			constants.FieldExpiresAt,
			constants.FieldCompletedAt,
			constants.FieldErrorCount,
			constants.FieldLastError,
			constants.FieldPrincipalID, constants.FieldStatus,
			constants.FieldStatus, constants.FieldExpiresAt),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s VARCHAR(64) PRIMARY KEY,
			%s VARCHAR(64) NOT NULL,
			%s VARCHAR(64) NOT NULL,
			%s VARCHAR(32) NOT NULL,
			%s VARCHAR(64) NULL,
			%s DATETIME(3) NOT NULL,
			%s BIGINT NULL,
			%s JSON NULL,
			%s TEXT NULL,
			INDEX idx_event_session (%s, %s),
			INDEX idx_event_kind (%s, %s)
		) CHARACTER SET utf8mb4`,
			constants.TableOnboardingEvent,
			constants.FieldEventID,
			constants.FieldPrincipalID,
			constants.FieldSessionID,
			constants.FieldEventKind,
			constants.FieldEventStep,
			constants.FieldEventTime,
			constants.FieldDurationMs,
			constants.FieldMetadata,
			constants.FieldErrorMessage,
			constants.FieldSessionID, constants.FieldEventTime,
			constants.FieldEventKind, constants.FieldEventTime),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s VARCHAR(64) PRIMARY KEY,
			role VARCHAR(32) NOT NULL,
			school_id VARCHAR(64) NULL,
			program_id VARCHAR(64) NULL,
			assigned_at DATETIME(3) NOT NULL
		) CHARACTER SET utf8mb4`,
			constants.TablePrincipalAssignment,
			constants.FieldPrincipalID),
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}

	log.Info("database schema ready")
	return nil
}
