// internal/workers/import_processor.go
package workers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/binwise/binwise-be/internal/adapters/storage"
	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/services"
)

// Task types for the bulk import pipeline.
const (
	TypeImportFile   = "import:file"
	TypeImportCommit = "import:commit"
)

// ImportFilePayload carries an uploaded file into the prepare phase. JobID
// is assigned by the upload surface so the client can poll before the file
// is parsed.
type ImportFilePayload struct {
	JobID          uuid.UUID `json:"job_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	FileName       string    `json:"file_name"`
	FilePath       string    `json:"file_path"`
	StorageKey     string    `json:"storage_key,omitempty"`
	Policy         string    `json:"policy"`
	RequestedBy    string    `json:"requested_by"`
}

// ImportCommitPayload carries a confirmed job into the commit phase.
type ImportCommitPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// ImportProcessor parses uploaded files and drives them through the import
// service's prepare and commit phases.
type ImportProcessor struct {
	importer *services.ImportService
	storage  storage.StorageClient
	logger   *slog.Logger
}

// NewImportProcessor creates a new import processor
func NewImportProcessor(importer *services.ImportService, storage storage.StorageClient, logger *slog.Logger) *ImportProcessor {
	return &ImportProcessor{
		importer: importer,
		storage:  storage,
		logger:   logger.With(slog.String("processor", "import")),
	}
}

// ProcessFile parses the uploaded file into import lines and prepares the
// import job. When no unknown locations block the run, the job commits in
// the same task; otherwise it parks awaiting operator confirmation.
func (p *ImportProcessor) ProcessFile(ctx context.Context, t *asynq.Task) error {
	var payload ImportFilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	p.logger.InfoContext(ctx, "processing import file",
		slog.String("file_name", payload.FileName),
		slog.String("organization_id", payload.OrganizationID.String()))

	data, err := p.readFile(ctx, payload)
	if err != nil {
		return err
	}

	lines, err := ParseImportLines(payload.FileName, data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", payload.FileName, err)
	}

	job, err := p.importer.Prepare(ctx, payload.JobID, payload.OrganizationID,
		payload.FileName, payload.RequestedBy, lines, domain.DuplicatePolicy(payload.Policy))
	if err != nil {
		return fmt.Errorf("failed to prepare import: %w", err)
	}

	// Temp file is no longer needed; the raw upload stays in object storage.
	if strings.HasPrefix(payload.FilePath, os.TempDir()) {
		os.Remove(payload.FilePath)
	}

	if job.Status == domain.ImportAwaitingConfirmation {
		p.logger.InfoContext(ctx, "import awaiting location confirmation",
			slog.String("job_id", job.ID.String()),
			slog.Int("new_locations", len(job.Plan.NewLocations)))
		return nil
	}

	result, err := p.importer.Commit(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	p.logger.InfoContext(ctx, "import file processed",
		slog.String("job_id", job.ID.String()),
		slog.Int("inserted", result.InsertedCount),
		slog.Int("updated", result.UpdatedCount),
		slog.Int("skipped", result.SkippedCount))

	return nil
}

// CommitJob commits a job that the operator confirmed through the API.
func (p *ImportProcessor) CommitJob(ctx context.Context, t *asynq.Task) error {
	var payload ImportCommitPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	result, err := p.importer.Commit(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("failed to commit import job %s: %w", payload.JobID, err)
	}

	p.logger.InfoContext(ctx, "confirmed import committed",
		slog.String("job_id", payload.JobID.String()),
		slog.Int("inserted", result.InsertedCount),
		slog.Int("updated", result.UpdatedCount),
		slog.Int("skipped", result.SkippedCount))

	return nil
}

func (p *ImportProcessor) readFile(ctx context.Context, payload ImportFilePayload) ([]byte, error) {
	if payload.FilePath != "" {
		data, err := os.ReadFile(payload.FilePath)
		if err == nil {
			return data, nil
		}
		p.logger.WarnContext(ctx, "temp file unavailable, falling back to object storage",
			slog.String("file_path", payload.FilePath),
			slog.String("error", err.Error()))
	}

	if payload.StorageKey == "" {
		return nil, fmt.Errorf("import file unavailable: no readable temp file and no storage key")
	}

	data, err := p.storage.Download(ctx, payload.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download import file: %w", err)
	}
	return data, nil
}

// ParseImportLines parses a CSV or XLSX upload into import lines. Column
// order follows the header row. Missing numeric cells default to zero and
// negative quantities are clamped to zero. Rows missing the required sku or
// name are kept so the commit phase can report them; only fully blank rows
// are dropped.
func ParseImportLines(fileName string, data []byte) ([]domain.ImportLine, error) {
	if strings.HasSuffix(strings.ToLower(fileName), ".xlsx") {
		return parseXLSX(data)
	}
	return parseCSV(data)
}

func parseCSV(data []byte) ([]domain.ImportLine, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	cols := headerIndex(header)

	var lines []domain.ImportLine
	rowNumber := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", rowNumber+1, err)
		}
		rowNumber++

		if isBlankRow(record) {
			continue
		}

		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		lines = append(lines, buildLine(rowNumber, get))
	}

	return lines, nil
}

func parseXLSX(data []byte) ([]domain.ImportLine, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	if len(file.Sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	sheet := file.Sheets[0]
	var cols map[string]int
	var lines []domain.ImportLine
	rowNumber := 0

	err = sheet.ForEachRow(func(r *xlsx.Row) error {
		rowNumber++

		cells := make([]string, 0, 16)
		r.ForEachCell(func(c *xlsx.Cell) error {
			cells = append(cells, strings.TrimSpace(c.String()))
			return nil
		})

		if rowNumber == 1 {
			cols = headerIndex(cells)
			return nil
		}

		if isBlankRow(cells) {
			return nil
		}

		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(cells) {
				return ""
			}
			return cells[idx]
		}

		lines = append(lines, buildLine(rowNumber, get))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return lines, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.ReplaceAll(key, " ", "_")
		cols[key] = i
	}
	return cols
}

func isBlankRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func buildLine(rowNumber int, get func(string) string) domain.ImportLine {
	return domain.ImportLine{
		RowNumber:           rowNumber,
		SKU:                 get("sku"),
		Name:                get("name"),
		Description:         get("description"),
		Category:            get("category"),
		PickingBinQuantity:  parseQuantity(get("picking_bin_quantity")),
		OverstockQuantity:   parseQuantity(get("overstock_quantity")),
		ReorderLevel:        parseQuantity(get("reorder_level")),
		PickingReorderLevel: parseQuantity(get("picking_reorder_level")),
		UnitCost:            parseMoney(get("unit_cost")),
		RetailPrice:         parseMoney(get("retail_price")),
		Location:            get("location"),
		PickingBinLocation:  get("picking_bin_location"),
		VendorID:            get("vendor_id"),
		BarcodeURL:          get("barcode_url"),
		AutoReorderEnabled:  parseBool(get("auto_reorder_enabled")),
		AutoReorderQuantity: parseQuantity(get("auto_reorder_quantity")),
	}
}

func parseQuantity(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseMoney(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "$"))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "1", "y":
		return true
	default:
		return false
	}
}
