package collaborators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/preceptly/backend/internal/domain/ports"
	"github.com/preceptly/backend/pkg/logger"
)

// BillingSeatAssigner reserves a seat with the billing service over HTTP.
// The request carries the session-scoped principal id as an idempotency
// key, so a retried completion never double-books a seat.
type BillingSeatAssigner struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// Ensure BillingSeatAssigner implements ports.SeatAssigner at compile time
var _ ports.SeatAssigner = (*BillingSeatAssigner)(nil)

// seatRequest is the billing service's seat reservation payload
type seatRequest struct {
	PrincipalID string `json:"principal_id"`
	Role        string `json:"role"`
	SchoolID    string `json:"school_id,omitempty"`
	ProgramID   string `json:"program_id,omitempty"`
}

// NewBillingSeatAssigner creates the billing client
func NewBillingSeatAssigner(baseURL string, log *logger.Logger) *BillingSeatAssigner {
	return &BillingSeatAssigner{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// AssignSeat reserves a seat for the principal
func (b *BillingSeatAssigner) AssignSeat(ctx context.Context, assignment ports.Assignment) error {
	payload, err := json.Marshal(seatRequest{
		PrincipalID: assignment.PrincipalID,
		Role:        string(assignment.Role),
		SchoolID:    assignment.SchoolID,
		ProgramID:   assignment.ProgramID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal seat request: %w", err)
	}

	url := b.baseURL + "/api/billing/seats"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build seat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", assignment.PrincipalID)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("billing service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("billing service rejected seat assignment: status %d: %s",
			resp.StatusCode, string(body))
	}

	b.log.Info("seat assigned",
		"principal_id", assignment.PrincipalID, "role", assignment.Role)
	return nil
}
