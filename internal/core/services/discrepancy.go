// internal/core/services/discrepancy.go
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
)

// ReportCountRequest carries a physical count from the cycle-count tool.
type ReportCountRequest struct {
	ItemID          uuid.UUID           `json:"item_id"`
	LocationType    domain.LocationType `json:"location_type"`
	LocationString  string              `json:"location_string"`
	CountedQuantity int                 `json:"counted_quantity"`
	Reason          string              `json:"reason"`
	ReportedBy      string              `json:"reported_by"`
}

// ReportCountResult is returned to the caller. Created is false when the
// count matched the system quantity and nothing was recorded.
type ReportCountResult struct {
	Created     bool                      `json:"created"`
	Discrepancy *domain.DiscrepancyRecord `json:"discrepancy,omitempty"`
	Message     string                    `json:"message"`
}

// DiscrepancyService reconciles physical counts against the stock ledger
// and durably records any mismatch.
type DiscrepancyService struct {
	ledger        ports.StockLedger
	discrepancies ports.DiscrepancyRepository
	movements     ports.MovementRepository
	notifier      ports.NotificationPublisher
	logger        *slog.Logger
}

// NewDiscrepancyService creates a new discrepancy service.
func NewDiscrepancyService(
	ledger ports.StockLedger,
	discrepancies ports.DiscrepancyRepository,
	movements ports.MovementRepository,
	notifier ports.NotificationPublisher,
	logger *slog.Logger,
) *DiscrepancyService {
	return &DiscrepancyService{
		ledger:        ledger,
		discrepancies: discrepancies,
		movements:     movements,
		notifier:      notifier,
		logger:        logger.With(slog.String("service", "discrepancy")),
	}
}

// ReportCount compares a counted quantity against the ledger. A matching
// count is a pure no-op: no record, no ledger write, no notification. A
// mismatch persists a pending DiscrepancyRecord first and only then updates
// the ledger; if the ledger write fails the record stays pending as the
// durable signal that the ledger is wrong. In that case the returned result
// still carries the record alongside the error.
func (s *DiscrepancyService) ReportCount(ctx context.Context, req ReportCountRequest) (*ReportCountResult, error) {
	if req.CountedQuantity < 0 {
		return nil, fmt.Errorf("counted_quantity must be >= 0: %w", domain.ErrInvalidArgument)
	}
	if !req.LocationType.Valid() {
		return nil, fmt.Errorf("unknown location_type %q: %w", req.LocationType, domain.ErrInvalidArgument)
	}

	item, err := s.ledger.Get(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}

	original := item.OverstockQuantity
	locString := req.LocationString
	if req.LocationType == domain.LocationPickingBin {
		original = item.PickingBinQuantity
		if locString == "" {
			locString = item.PickingBinLocation
		}
	} else if locString == "" {
		locString = item.Location
	}

	if req.CountedQuantity == original {
		return &ReportCountResult{
			Created: false,
			Message: fmt.Sprintf("count matches system quantity (%d), no discrepancy", original),
		}, nil
	}

	rec := domain.NewDiscrepancyRecord(item, req.LocationType, locString, original, req.CountedQuantity, req.Reason, req.ReportedBy)
	if err := s.discrepancies.Insert(ctx, &rec); err != nil {
		return nil, fmt.Errorf("failed to record discrepancy: %w", err)
	}

	result := &ReportCountResult{
		Created:     true,
		Discrepancy: &rec,
		Message:     rec.Summary(item.Name),
	}

	_, _, err = s.ledger.Apply(ctx, req.ItemID, func(cur domain.InventoryItem) (domain.InventoryItem, error) {
		if req.LocationType == domain.LocationPickingBin {
			cur.PickingBinQuantity = req.CountedQuantity
		} else {
			cur.OverstockQuantity = req.CountedQuantity
		}
		return cur, nil
	})
	if err != nil {
		// Record-first bias: the persisted pending record is the source of
		// truth that the ledger is currently wrong.
		s.logger.WarnContext(ctx, "ledger update failed after discrepancy was recorded",
			slog.String("discrepancy_id", rec.ID.String()),
			slog.String("item_id", req.ItemID.String()),
			slog.String("error", err.Error()))
		return result, fmt.Errorf("discrepancy %s recorded but ledger update failed: %w", rec.ID, err)
	}

	s.recordMovement(ctx, &rec, req.ReportedBy)
	s.notify(ctx, item.Name, &rec)

	s.logger.InfoContext(ctx, "discrepancy recorded",
		slog.String("discrepancy_id", rec.ID.String()),
		slog.String("item_id", req.ItemID.String()),
		slog.String("location_type", string(req.LocationType)),
		slog.Int("original", original),
		slog.Int("counted", req.CountedQuantity))

	return result, nil
}

// Resolve flips a pending discrepancy to resolved. It never re-touches the
// ledger, and resolving an already-resolved record is a no-op.
func (s *DiscrepancyService) Resolve(ctx context.Context, id uuid.UUID) error {
	rec, err := s.discrepancies.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load discrepancy %s: %w", id, err)
	}
	if rec == nil {
		return fmt.Errorf("discrepancy %s: %w", id, domain.ErrNotFound)
	}

	flipped, err := s.discrepancies.MarkResolved(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to resolve discrepancy %s: %w", id, err)
	}
	if !flipped {
		s.logger.DebugContext(ctx, "discrepancy already resolved",
			slog.String("discrepancy_id", id.String()))
		return nil
	}

	s.logger.InfoContext(ctx, "discrepancy resolved",
		slog.String("discrepancy_id", id.String()))
	return nil
}

// List returns discrepancies for review, newest first.
func (s *DiscrepancyService) List(ctx context.Context, params ports.DiscrepancyListParams) ([]*domain.DiscrepancyRecord, int64, error) {
	recs, total, err := s.discrepancies.FindAll(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list discrepancies: %w", err)
	}
	return recs, total, nil
}

func (s *DiscrepancyService) recordMovement(ctx context.Context, rec *domain.DiscrepancyRecord, reportedBy string) {
	mv := domain.StockMovement{
		ID:             uuid.New(),
		OrganizationID: rec.OrganizationID,
		ItemID:         rec.ItemID,
		MovementType:   domain.MovementAdjustment,
		QuantityChange: rec.Difference,
		Reason:         fmt.Sprintf("cycle count correction (%s)", rec.LocationType),
		CreatedBy:      reportedBy,
		CreatedAt:      rec.CreatedAt,
	}
	if err := s.movements.Insert(ctx, &mv); err != nil {
		s.logger.WarnContext(ctx, "failed to record stock movement",
			slog.String("discrepancy_id", rec.ID.String()),
			slog.String("error", err.Error()))
	}
}

func (s *DiscrepancyService) notify(ctx context.Context, itemName string, rec *domain.DiscrepancyRecord) {
	event := domain.NotificationEvent{
		OrganizationID: rec.OrganizationID,
		ActivityType:   domain.ActivityDiscrepancyReported,
		Description:    rec.Summary(itemName),
		Details: map[string]any{
			"discrepancy_id": rec.ID.String(),
			"item_id":        rec.ItemID.String(),
			"location":       rec.LocationString,
			"location_type":  string(rec.LocationType),
			"original":       rec.OriginalQuantity,
			"counted":        rec.CountedQuantity,
			"difference":     rec.Difference,
			"reported_by":    rec.ReportedBy,
		},
	}
	if err := s.notifier.PublishNotification(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish discrepancy notification",
			slog.String("discrepancy_id", rec.ID.String()),
			slog.String("error", err.Error()))
	}
}
