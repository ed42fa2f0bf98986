package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"task-manager/internal/model"
	"task-manager/internal/remote"
)

// Driver stores backend tables in a gorm database.
type Driver struct {
	db *gorm.DB
}

var _ remote.Driver = (*Driver)(nil)

func NewDriver(db *gorm.DB) *Driver {
	return &Driver{db: db}
}

func (d *Driver) Find(ctx context.Context, table string, q remote.Query, dest any) error {
	tx := d.db.WithContext(ctx).Table(table)
	where := map[string]interface{}(q.Where)
	switch {
	case len(q.OrIDs) > 0 && len(where) > 0:
		tx = tx.Where(where).Or("id IN ?", q.OrIDs)
	case len(where) > 0:
		tx = tx.Where(where)
	case len(q.OrIDs) > 0:
		tx = tx.Where("id IN ?", q.OrIDs)
	}
	if err := tx.Order("created_at ASC").Find(dest).Error; err != nil {
		return fmt.Errorf("find %s: %w", table, translate(err))
	}
	return nil
}

func (d *Driver) Get(ctx context.Context, table, id string, dest any) error {
	if err := d.db.WithContext(ctx).Table(table).Where("id = ?", id).First(dest).Error; err != nil {
		return fmt.Errorf("get %s: %w", table, translate(err))
	}
	return nil
}

func (d *Driver) Create(ctx context.Context, table string, row model.Row) error {
	if err := d.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		return fmt.Errorf("create %s: %w", table, translate(err))
	}
	return nil
}

func (d *Driver) Save(ctx context.Context, table string, row model.Row) error {
	if err := d.db.WithContext(ctx).Table(table).Save(row).Error; err != nil {
		return fmt.Errorf("save %s: %w", table, translate(err))
	}
	return nil
}

// Remove deletes the row id of table, reporting remote.ErrNotFound when
// nothing matched.
func (d *Driver) Remove(ctx context.Context, table, id string) error {
	row, ok := model.NewRow(table)
	if !ok {
		return fmt.Errorf("remove: unknown table %q", table)
	}
	res := d.db.WithContext(ctx).Table(table).Where("id = ?", id).Delete(row)
	if res.Error != nil {
		return fmt.Errorf("remove %s: %w", table, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("remove %s %s: %w", table, id, remote.ErrNotFound)
	}
	return nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return remote.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return remote.ErrDuplicate
	default:
		return err
	}
}
