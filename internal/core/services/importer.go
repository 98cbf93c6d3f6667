// internal/core/services/importer.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
)

// ImportService runs bulk imports through three phases: side-effect-free
// classification, a location confirmation gate, and a line-by-line commit.
type ImportService struct {
	ledger    ports.StockLedger
	inventory ports.InventoryRepository
	locations ports.LocationRepository
	jobs      ports.ImportJobRepository
	movements ports.MovementRepository
	notifier  ports.NotificationPublisher
	logger    *slog.Logger
}

// NewImportService creates a new import service.
func NewImportService(
	ledger ports.StockLedger,
	inventory ports.InventoryRepository,
	locations ports.LocationRepository,
	jobs ports.ImportJobRepository,
	movements ports.MovementRepository,
	notifier ports.NotificationPublisher,
	logger *slog.Logger,
) *ImportService {
	return &ImportService{
		ledger:    ledger,
		inventory: inventory,
		locations: locations,
		jobs:      jobs,
		movements: movements,
		notifier:  notifier,
		logger:    logger.With(slog.String("service", "import")),
	}
}

// Classify matches each line against existing inventory by case-insensitive
// SKU within the organization. It performs reads only.
func (s *ImportService) Classify(ctx context.Context, orgID uuid.UUID, lines []domain.ImportLine) ([]domain.ClassifiedLine, error) {
	classified := make([]domain.ClassifiedLine, 0, len(lines))
	for _, line := range lines {
		// Lines without a SKU cannot match anything; commit rejects them
		// with a per-line error.
		if strings.TrimSpace(line.SKU) == "" {
			classified = append(classified, domain.ClassifiedLine{Line: line})
			continue
		}
		existing, err := s.inventory.FindBySKU(ctx, orgID, line.SKU)
		if err != nil {
			return nil, fmt.Errorf("failed to classify row %d (sku %s): %w", line.RowNumber, line.SKU, err)
		}
		cl := domain.ClassifiedLine{Line: line}
		if existing != nil {
			id := existing.ID
			cl.Existing = &id
		}
		classified = append(classified, cl)
	}
	return classified, nil
}

// DiscoverNewLocations returns location names referenced by the batch that
// the organization does not know yet, first occurrence casing preserved.
func (s *ImportService) DiscoverNewLocations(ctx context.Context, orgID uuid.UUID, lines []domain.ImportLine) ([]string, error) {
	known, err := s.locations.KnownNames(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load known locations: %w", err)
	}

	seen := make(map[string]struct{})
	var discovered []string
	note := func(name string) {
		norm := domain.NormalizeLocation(name)
		if norm == "" {
			return
		}
		if _, ok := known[norm]; ok {
			return
		}
		if _, ok := seen[norm]; ok {
			return
		}
		seen[norm] = struct{}{}
		discovered = append(discovered, name)
	}

	for _, line := range lines {
		// A line that will be rejected at commit must not gate the batch
		// or create locations.
		if strings.TrimSpace(line.SKU) == "" || strings.TrimSpace(line.Name) == "" {
			continue
		}
		note(line.Location)
		note(line.PickingBinLocation)
	}
	return discovered, nil
}

// Prepare classifies the batch, discovers unknown locations, and persists
// the run as an import job. When the batch references unknown locations the
// job parks in awaiting_confirmation and nothing is written to the ledger
// until Confirm; otherwise the job is immediately marked processing and is
// ready for Commit. A non-nil jobID lets the upload surface hand out the ID
// before the file is parsed; uuid.Nil assigns a fresh one.
func (s *ImportService) Prepare(ctx context.Context, jobID, orgID uuid.UUID, fileName, requestedBy string, lines []domain.ImportLine, policy domain.DuplicatePolicy) (*domain.ImportJob, error) {
	if !policy.Valid() {
		return nil, fmt.Errorf("unknown duplicate policy %q: %w", policy, domain.ErrInvalidArgument)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("import batch is empty: %w", domain.ErrInvalidArgument)
	}

	classified, err := s.Classify(ctx, orgID, lines)
	if err != nil {
		return nil, err
	}
	newLocations, err := s.DiscoverNewLocations(ctx, orgID, lines)
	if err != nil {
		return nil, err
	}

	if jobID == uuid.Nil {
		jobID = uuid.New()
	}

	now := time.Now()
	job := &domain.ImportJob{
		ID:             jobID,
		OrganizationID: orgID,
		FileName:       fileName,
		RequestedBy:    requestedBy,
		Status:         domain.ImportProcessing,
		Plan: &domain.ImportPlan{
			Lines:        classified,
			NewLocations: newLocations,
			Policy:       policy,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(newLocations) > 0 {
		job.Status = domain.ImportAwaitingConfirmation
	}

	if err := s.jobs.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist import job: %w", err)
	}

	s.logger.InfoContext(ctx, "import job prepared",
		slog.String("job_id", job.ID.String()),
		slog.String("status", string(job.Status)),
		slog.Int("lines", len(classified)),
		slog.Int("new_locations", len(newLocations)))

	return job, nil
}

// Confirm accepts the operator's approval of newly discovered locations. It
// creates the placeholder location rows and moves the job to processing.
func (s *ImportService) Confirm(ctx context.Context, jobID uuid.UUID) (*domain.ImportJob, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.ImportAwaitingConfirmation {
		return nil, fmt.Errorf("import job %s is %s, not awaiting confirmation: %w", jobID, job.Status, domain.ErrConflict)
	}

	for _, name := range job.Plan.NewLocations {
		loc := domain.NewPlaceholderLocation(job.OrganizationID, name)
		if err := s.locations.Insert(ctx, &loc); err != nil {
			return nil, fmt.Errorf("failed to create location %q: %w", name, err)
		}
	}

	job.Status = domain.ImportProcessing
	job.UpdatedAt = time.Now()
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update import job %s: %w", jobID, err)
	}

	s.logger.InfoContext(ctx, "import job confirmed",
		slog.String("job_id", jobID.String()),
		slog.Int("locations_created", len(job.Plan.NewLocations)))

	return job, nil
}

// Cancel abandons a job parked at the confirmation gate. No locations are
// created and the ledger is untouched. Cancelling an already-cancelled job
// is a no-op.
func (s *ImportService) Cancel(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	switch job.Status {
	case domain.ImportCancelled:
		return nil
	case domain.ImportAwaitingConfirmation:
	default:
		return fmt.Errorf("import job %s is %s and can no longer be cancelled: %w", jobID, job.Status, domain.ErrConflict)
	}

	job.Status = domain.ImportCancelled
	job.UpdatedAt = time.Now()
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to cancel import job %s: %w", jobID, err)
	}

	s.logger.InfoContext(ctx, "import job cancelled", slog.String("job_id", jobID.String()))
	return nil
}

// Commit applies a processing job's plan line by line. The batch is never
// atomic: each line succeeds or fails on its own, failures are collected on
// the result, and a cancelled context stops the batch between lines.
func (s *ImportService) Commit(ctx context.Context, jobID uuid.UUID) (*domain.ImportResult, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.ImportProcessing {
		return nil, fmt.Errorf("import job %s is %s, not processing: %w", jobID, job.Status, domain.ErrConflict)
	}

	result := s.commitPlan(ctx, job.OrganizationID, job.RequestedBy, job.Plan)

	job.Result = result
	job.Status = domain.ImportCompleted
	if ctx.Err() != nil {
		job.Status = domain.ImportFailed
	}
	job.UpdatedAt = time.Now()
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist import result",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
	}

	s.notifyCompleted(ctx, job, result)

	s.logger.InfoContext(ctx, "import job committed",
		slog.String("job_id", jobID.String()),
		slog.Int("inserted", result.InsertedCount),
		slog.Int("updated", result.UpdatedCount),
		slog.Int("skipped", result.SkippedCount),
		slog.Int("errors", len(result.Errors)))

	return result, nil
}

// Status returns the persisted job for polling across the confirmation gate.
func (s *ImportService) Status(ctx context.Context, jobID uuid.UUID) (*domain.ImportJob, error) {
	return s.loadJob(ctx, jobID)
}

func (s *ImportService) loadJob(ctx context.Context, jobID uuid.UUID) (*domain.ImportJob, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load import job %s: %w", jobID, err)
	}
	if job == nil {
		return nil, fmt.Errorf("import job %s: %w", jobID, domain.ErrNotFound)
	}
	return job, nil
}

func (s *ImportService) commitPlan(ctx context.Context, orgID uuid.UUID, requestedBy string, plan *domain.ImportPlan) *domain.ImportResult {
	result := &domain.ImportResult{}

	// Tracks SKUs inserted earlier in this batch so in-batch repeats follow
	// the duplicate policy instead of colliding on insert.
	insertedThisBatch := make(map[string]uuid.UUID)

	for _, cl := range plan.Lines {
		if ctx.Err() != nil {
			result.RecordError(cl.Line.RowNumber, cl.Line.SKU, ctx.Err())
			break
		}

		if strings.TrimSpace(cl.Line.SKU) == "" || strings.TrimSpace(cl.Line.Name) == "" {
			result.RecordError(cl.Line.RowNumber, cl.Line.SKU, errors.New("missing required sku or name"))
			continue
		}

		existingID := cl.Existing
		if existingID == nil {
			if id, ok := insertedThisBatch[domain.NormalizeSKU(cl.Line.SKU)]; ok {
				existingID = &id
			}
		}

		if existingID == nil {
			insertedID, err := s.insertLine(ctx, orgID, requestedBy, cl.Line)
			if err != nil {
				result.RecordError(cl.Line.RowNumber, cl.Line.SKU, err)
				continue
			}
			insertedThisBatch[domain.NormalizeSKU(cl.Line.SKU)] = insertedID
			result.InsertedCount++
			continue
		}

		switch plan.Policy {
		case domain.PolicySkip:
			result.RecordError(cl.Line.RowNumber, cl.Line.SKU, errors.New("skipped due to duplicate"))
			result.SkippedCount++
		case domain.PolicyAddToStock:
			if err := s.addToStock(ctx, orgID, *existingID, requestedBy, cl.Line); err != nil {
				result.RecordError(cl.Line.RowNumber, cl.Line.SKU, err)
				continue
			}
			result.UpdatedCount++
		case domain.PolicyUpdate:
			if err := s.replaceItem(ctx, *existingID, cl.Line); err != nil {
				result.RecordError(cl.Line.RowNumber, cl.Line.SKU, err)
				continue
			}
			result.UpdatedCount++
		default:
			result.RecordError(cl.Line.RowNumber, cl.Line.SKU,
				fmt.Errorf("unknown duplicate policy %q", plan.Policy))
		}
	}

	return result
}

func (s *ImportService) insertLine(ctx context.Context, orgID uuid.UUID, requestedBy string, line domain.ImportLine) (uuid.UUID, error) {
	item := line.ToItem(orgID)
	if err := s.ledger.Insert(ctx, &item); err != nil {
		return uuid.Nil, err
	}

	s.recordMovement(ctx, domain.StockMovement{
		ID:             uuid.New(),
		OrganizationID: orgID,
		ItemID:         item.ID,
		MovementType:   domain.MovementInsert,
		QuantityChange: item.TotalQuantity(),
		Reason:         "bulk import",
		CreatedBy:      requestedBy,
		CreatedAt:      time.Now(),
	})
	return item.ID, nil
}

func (s *ImportService) addToStock(ctx context.Context, orgID, itemID uuid.UUID, requestedBy string, line domain.ImportLine) error {
	_, _, err := s.ledger.Apply(ctx, itemID, func(cur domain.InventoryItem) (domain.InventoryItem, error) {
		cur.PickingBinQuantity += line.PickingBinQuantity
		cur.OverstockQuantity += line.OverstockQuantity
		return cur, nil
	})
	if err != nil {
		return err
	}

	s.recordMovement(ctx, domain.StockMovement{
		ID:             uuid.New(),
		OrganizationID: orgID,
		ItemID:         itemID,
		MovementType:   domain.MovementImportAdd,
		QuantityChange: line.PickingBinQuantity + line.OverstockQuantity,
		Reason:         "bulk import - added to stock",
		CreatedBy:      requestedBy,
		CreatedAt:      time.Now(),
	})
	return nil
}

func (s *ImportService) replaceItem(ctx context.Context, itemID uuid.UUID, line domain.ImportLine) error {
	_, _, err := s.ledger.Apply(ctx, itemID, func(cur domain.InventoryItem) (domain.InventoryItem, error) {
		cur.Name = line.Name
		cur.Description = line.Description
		cur.Category = line.Category
		cur.PickingBinQuantity = line.PickingBinQuantity
		cur.OverstockQuantity = line.OverstockQuantity
		cur.ReorderLevel = line.ReorderLevel
		cur.PickingReorderLevel = line.PickingReorderLevel
		cur.UnitCost = line.UnitCost
		cur.RetailPrice = line.RetailPrice
		cur.Location = line.Location
		cur.PickingBinLocation = line.PickingBinLocation
		cur.VendorID = line.VendorID
		cur.BarcodeURL = line.BarcodeURL
		cur.AutoReorderEnabled = line.AutoReorderEnabled
		cur.AutoReorderQuantity = line.AutoReorderQuantity
		return cur, nil
	})
	return err
}

func (s *ImportService) recordMovement(ctx context.Context, mv domain.StockMovement) {
	if err := s.movements.Insert(ctx, &mv); err != nil {
		s.logger.WarnContext(ctx, "failed to record stock movement",
			slog.String("item_id", mv.ItemID.String()),
			slog.String("movement_type", string(mv.MovementType)),
			slog.String("error", err.Error()))
	}
}

func (s *ImportService) notifyCompleted(ctx context.Context, job *domain.ImportJob, result *domain.ImportResult) {
	event := domain.NotificationEvent{
		OrganizationID: job.OrganizationID,
		ActivityType:   domain.ActivityImportCompleted,
		Description: fmt.Sprintf("Bulk import %s completed: %d inserted, %d updated, %d skipped, %d errors",
			job.FileName, result.InsertedCount, result.UpdatedCount, result.SkippedCount, len(result.Errors)),
		Details: map[string]any{
			"job_id":   job.ID.String(),
			"inserted": result.InsertedCount,
			"updated":  result.UpdatedCount,
			"skipped":  result.SkippedCount,
			"errors":   len(result.Errors),
		},
	}
	if err := s.notifier.PublishNotification(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish import notification",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()))
	}
}
