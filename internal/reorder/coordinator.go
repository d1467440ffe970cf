// Package reorder renumbers the sort_order of sibling rows without ever
// violating a unique (parent, sort_order) index.
package reorder

import (
	"context"
	"fmt"
	"time"

	"buildinghub_backend/internal/common"
	"buildinghub_backend/internal/oplog"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// tempOffset is added to the current maximum to get a free range for the
// first phase.
const tempOffset = 1000

// Table names a reorderable table and the column holding the parent id.
type Table struct {
	Name         string
	ParentColumn string
}

var (
	PollOptions = Table{Name: "poll_options", ParentColumn: "poll_id"}
	Polls       = Table{Name: "polls", ParentColumn: "building_id"}
)

type child struct {
	ID        uuid.UUID
	SortOrder int
}

// Coordinator reorders the children of one parent in a Table.
type Coordinator struct {
	db       *gorm.DB
	table    Table
	locker   Locker
	recorder oplog.Recorder
	logger   *zap.Logger
}

func NewCoordinator(db *gorm.DB, table Table, locker Locker, recorder oplog.Recorder, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		db:       db,
		table:    table,
		locker:   locker,
		recorder: recorder,
		logger:   logger.Named("Reorder").With(zap.String("table", table.Name)),
	}
}

// Reorder gives orderedIDs[i] the sort_order i. orderedIDs must be exactly the
// current children of parentID. Rows first move to tempBase+i, above every
// existing value, then to i. A failed update aborts at once; rows already
// moved stay where they are.
func (c *Coordinator) Reorder(ctx context.Context, parentID uuid.UUID, orderedIDs []uuid.UUID) (err error) {
	start := time.Now()
	payload := map[string]interface{}{
		"table":       c.table.Name,
		"parent_id":   parentID,
		"ordered_ids": orderedIDs,
	}
	defer func() {
		c.recorder.Record(ctx, oplog.NewEntry(c.table.Name+".reorder", oplog.TypeDB, start, payload, err))
	}()

	unlock, err := c.locker.Lock(ctx, c.table.Name+":"+parentID.String())
	if err != nil {
		return err
	}
	defer unlock()

	var children []child
	err = c.db.WithContext(ctx).
		Table(c.table.Name).
		Select("id", "sort_order").
		Where(c.table.ParentColumn+" = ?", parentID).
		Find(&children).Error
	if err != nil {
		return fmt.Errorf("failed to load children of %s %s: %w", c.table.Name, parentID, err)
	}

	if err = validateOrdering(children, orderedIDs); err != nil {
		return err
	}

	maxOrder := 0
	for _, ch := range children {
		if ch.SortOrder > maxOrder {
			maxOrder = ch.SortOrder
		}
	}
	tempBase := maxOrder + tempOffset
	payload["temp_base"] = tempBase

	if err = c.assign(ctx, parentID, orderedIDs, tempBase, 1); err != nil {
		return err
	}
	if err = c.assign(ctx, parentID, orderedIDs, 0, 2); err != nil {
		return err
	}

	c.logger.Info("Reordered children",
		zap.String("parent_id", parentID.String()),
		zap.Int("count", len(orderedIDs)),
		zap.Any("ordered_ids", orderedIDs))
	return nil
}

func (c *Coordinator) assign(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID, base, phase int) error {
	for i, id := range ids {
		res := c.db.WithContext(ctx).
			Table(c.table.Name).
			Where("id = ? AND "+c.table.ParentColumn+" = ?", id, parentID).
			UpdateColumn("sort_order", base+i)
		if res.Error != nil {
			c.logger.Error("Reorder update failed",
				zap.Int("phase", phase), zap.String("id", id.String()), zap.Error(res.Error))
			return fmt.Errorf("reorder phase %d: failed to update %s: %w", phase, id, res.Error)
		}
		if res.RowsAffected != 1 {
			c.logger.Error("Reorder update affected unexpected rows",
				zap.Int("phase", phase), zap.String("id", id.String()), zap.Int64("rows", res.RowsAffected))
			return fmt.Errorf("reorder phase %d: update of %s affected %d rows", phase, id, res.RowsAffected)
		}
	}
	return nil
}

func validateOrdering(children []child, orderedIDs []uuid.UUID) error {
	if len(children) != len(orderedIDs) {
		return common.NewValidationAPIError(map[string]string{
			"ids": fmt.Sprintf("Expected %d ids, got %d.", len(children), len(orderedIDs)),
		})
	}
	existing := make(map[uuid.UUID]bool, len(children))
	for _, ch := range children {
		existing[ch.ID] = true
	}
	seen := make(map[uuid.UUID]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if seen[id] {
			return common.NewValidationAPIError(map[string]string{"ids": fmt.Sprintf("Duplicate id %s.", id)})
		}
		seen[id] = true
		if !existing[id] {
			return common.NewValidationAPIError(map[string]string{"ids": fmt.Sprintf("Id %s does not belong to this parent.", id)})
		}
	}
	return nil
}
