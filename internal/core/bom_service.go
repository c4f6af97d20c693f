package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// minQuantityRequired is the smallest per-unit quantity a BOM line may carry.
var minQuantityRequired = decimal.RequireFromString("0.001")

// BOM is the full single-level bill of materials of one finished good.
type BOM struct {
	FinishedGoodID   uuid.UUID `json:"finished_good_id"`
	FinishedGoodCode string    `json:"finished_good_code"`
	FinishedGoodName string    `json:"finished_good_name"`
	Lines            []BOMLine `json:"lines"`
}

// BOMService maintains bills of materials.
type BOMService interface {
	// Define stores a new BOM. A finished good has at most one BOM; to change
	// it, Delete and Define again.
	Define(ctx context.Context, finishedGoodID uuid.UUID, lines []BOMLineInput) (*BOM, error)
	Get(ctx context.Context, finishedGoodID uuid.UUID) (*BOM, error)
	List(ctx context.Context) ([]BOM, error)
	Delete(ctx context.Context, finishedGoodID uuid.UUID) error
}

type bomService struct {
	repo   Repository
	logger *zap.Logger
}

func NewBOMService(repo Repository, logger *zap.Logger) BOMService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &bomService{repo: repo, logger: logger}
}

func (s *bomService) Define(ctx context.Context, finishedGoodID uuid.UUID, lines []BOMLineInput) (*BOM, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: a BOM needs at least one raw material", ErrInvalidInput)
	}
	seen := make(map[uuid.UUID]bool, len(lines))
	for i, l := range lines {
		if l.RawMaterialID == finishedGoodID {
			return nil, fmt.Errorf("%w: a finished good cannot be its own raw material", ErrInvalidBOMLine)
		}
		if seen[l.RawMaterialID] {
			return nil, fmt.Errorf("%w: raw material %s listed twice", ErrInvalidBOMLine, l.RawMaterialID)
		}
		seen[l.RawMaterialID] = true
		if l.QuantityRequired.LessThan(minQuantityRequired) {
			return nil, fmt.Errorf("%w: line %d quantity %s is below %s",
				ErrInvalidBOMLine, i+1, l.QuantityRequired.String(), minQuantityRequired.String())
		}
		if !fitsScale(l.QuantityRequired) {
			return nil, fmt.Errorf("%w: line %d quantity %s has more than %d decimal places",
				ErrInvalidBOMLine, i+1, l.QuantityRequired.String(), QuantityScale)
		}
	}

	var bom *BOM
	err := inUnitOfWork(ctx, s.repo, func(r Repository) error {
		fg, err := r.GetItem(ctx, finishedGoodID)
		if err != nil {
			return classify("failed to load finished good", err)
		}
		if !fg.IsFinishedGood {
			return fmt.Errorf("%w: item %s is not a finished good", ErrInvalidInput, fg.Code)
		}
		existing, err := r.GetBOM(ctx, finishedGoodID)
		if err != nil {
			return classify("failed to check existing BOM", err)
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w for %s", ErrBOMExists, fg.Code)
		}

		now := time.Now()
		rows := make([]BOMLine, 0, len(lines))
		for _, l := range lines {
			raw, err := r.GetItem(ctx, l.RawMaterialID)
			if err != nil {
				return classify(fmt.Sprintf("failed to load raw material %s", l.RawMaterialID), err)
			}
			if !raw.IsRawMaterial {
				return fmt.Errorf("%w: item %s is not a raw material", ErrInvalidBOMLine, raw.Code)
			}
			unit := l.Unit
			if unit == "" {
				unit = raw.Unit
			}
			rows = append(rows, BOMLine{
				ID:               uuid.New(),
				FinishedGoodID:   finishedGoodID,
				RawMaterialID:    raw.ID,
				RawMaterialCode:  raw.Code,
				RawMaterialName:  raw.Name,
				QuantityRequired: l.QuantityRequired,
				Unit:             unit,
				Notes:            l.Notes,
				CreatedAt:        now,
			})
		}

		all, err := r.ListBOMLines(ctx)
		if err != nil {
			return classify("failed to load BOM graph", err)
		}
		if path := findCycle(finishedGoodID, all, rows); path != nil {
			return fmt.Errorf("%w: %v", ErrCyclicBOM, path)
		}

		if err := r.CreateBOM(ctx, rows); err != nil {
			return classify("failed to insert BOM", err)
		}
		bom = &BOM{FinishedGoodID: fg.ID, FinishedGoodCode: fg.Code, FinishedGoodName: fg.Name, Lines: rows}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("BOM defined",
		zap.String("finished_good", bom.FinishedGoodCode),
		zap.Int("lines", len(bom.Lines)),
	)
	return bom, nil
}

// findCycle reports a path fg → … → fg if adding proposed to existing would
// close a loop in the multi-level BOM graph. Returns nil when acyclic.
func findCycle(fg uuid.UUID, existing, proposed []BOMLine) []uuid.UUID {
	children := make(map[uuid.UUID][]uuid.UUID)
	for _, l := range existing {
		children[l.FinishedGoodID] = append(children[l.FinishedGoodID], l.RawMaterialID)
	}
	for _, l := range proposed {
		children[l.FinishedGoodID] = append(children[l.FinishedGoodID], l.RawMaterialID)
	}

	visited := make(map[uuid.UUID]bool)
	var path []uuid.UUID
	var dfs func(id uuid.UUID) bool
	dfs = func(id uuid.UUID) bool {
		path = append(path, id)
		for _, child := range children[id] {
			if child == fg {
				path = append(path, child)
				return true
			}
			if visited[child] {
				continue
			}
			visited[child] = true
			if dfs(child) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}
	if dfs(fg) {
		return path
	}
	return nil
}

func (s *bomService) Get(ctx context.Context, finishedGoodID uuid.UUID) (*BOM, error) {
	fg, err := s.repo.GetItem(ctx, finishedGoodID)
	if err != nil {
		return nil, classify("failed to load finished good", err)
	}
	lines, err := s.repo.GetBOM(ctx, finishedGoodID)
	if err != nil {
		return nil, classify("failed to load BOM", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoBOMDefined, fg.Code)
	}
	return &BOM{FinishedGoodID: fg.ID, FinishedGoodCode: fg.Code, FinishedGoodName: fg.Name, Lines: lines}, nil
}

func (s *bomService) List(ctx context.Context) ([]BOM, error) {
	lines, err := s.repo.ListBOMLines(ctx)
	if err != nil {
		return nil, classify("failed to list BOM lines", err)
	}

	byFG := make(map[uuid.UUID]*BOM)
	for _, l := range lines {
		b, ok := byFG[l.FinishedGoodID]
		if !ok {
			b = &BOM{FinishedGoodID: l.FinishedGoodID}
			byFG[l.FinishedGoodID] = b
		}
		b.Lines = append(b.Lines, l)
	}

	boms := make([]BOM, 0, len(byFG))
	for id, b := range byFG {
		fg, err := s.repo.GetItem(ctx, id)
		if err != nil {
			return nil, classify("failed to load finished good", err)
		}
		b.FinishedGoodCode, b.FinishedGoodName = fg.Code, fg.Name
		boms = append(boms, *b)
	}
	sort.Slice(boms, func(i, j int) bool { return boms[i].FinishedGoodCode < boms[j].FinishedGoodCode })
	return boms, nil
}

func (s *bomService) Delete(ctx context.Context, finishedGoodID uuid.UUID) error {
	n, err := s.repo.DeleteBOM(ctx, finishedGoodID)
	if err != nil {
		return classify("failed to delete BOM", err)
	}
	if n == 0 {
		return fmt.Errorf("%w for item %s", ErrNoBOMDefined, finishedGoodID)
	}
	s.logger.Info("BOM deleted", zap.String("finished_good_id", finishedGoodID.String()), zap.Int("lines", n))
	return nil
}
