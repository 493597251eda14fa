package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/preceptly/backend/internal/domain/models"
	"github.com/preceptly/backend/internal/domain/ports"
	"github.com/preceptly/backend/internal/infrastructure/database"
	"github.com/preceptly/backend/pkg/constants"
)

// AnalyticsRepository is the append-only MySQL sink for funnel events
type AnalyticsRepository struct {
	db *database.MySQLConnection
}

// Ensure AnalyticsRepository implements ports.EventSink at compile time
var _ ports.EventSink = (*AnalyticsRepository)(nil)

// NewAnalyticsRepository creates the sink
func NewAnalyticsRepository(db *database.MySQLConnection) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Insert appends one event
func (r *AnalyticsRepository) Insert(ctx context.Context, event *models.AnalyticsEvent) error {
	var metadataJSON interface{}
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal event metadata: %w", err)
		}
		metadataJSON = raw
	}

	var durationMs interface{}
	if event.DurationMs != nil {
		durationMs = *event.DurationMs
	}
	var errorMessage interface{}
	if event.ErrorMessage != nil {
		errorMessage = *event.ErrorMessage
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		constants.TableOnboardingEvent,
		constants.FieldEventID, constants.FieldPrincipalID, constants.FieldSessionID,
		constants.FieldEventKind, constants.FieldEventStep, constants.FieldEventTime,
		constants.FieldDurationMs, constants.FieldMetadata, constants.FieldErrorMessage)

	_, err := r.db.ExecContext(ctx, query,
		event.EventID, event.PrincipalID, event.SessionID,
		event.EventKind, event.Step, event.Timestamp,
		durationMs, metadataJSON, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to insert analytics event %s: %w", event.EventID, err)
	}
	return nil
}
