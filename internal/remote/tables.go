package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"task-manager/internal/model"
)

// policy is the row-level access rule of a table.
type policy struct {
	// owner is the column holding the owning user id.
	owner string
	// shared rows are also readable by collaborators of the row (lists).
	shared bool
	// list is the parent list column of list-scoped rows.
	list string
	// ownerWrites requires ownership of the parent list for writes.
	ownerWrites bool
}

var policies = map[string]policy{
	model.TableTasks:         {owner: "user_id"},
	model.TableCategories:    {owner: "user_id"},
	model.TableLists:         {owner: "owner_id", shared: true},
	model.TableListItems:     {list: "list_id"},
	model.TableCollaborators: {list: "list_id", ownerWrites: true},
}

func lookupPolicy(table string) (policy, error) {
	p, ok := policies[table]
	if !ok {
		return policy{}, fmt.Errorf("%w: unknown table %q", ErrValidation, table)
	}
	return p, nil
}

// Select loads the rows of table matching filter that the signed-in user
// may see. List-scoped tables must be filtered by their list column.
func (c *Client) Select(ctx context.Context, table string, filter Filter, dest any) error {
	p, err := lookupPolicy(table)
	if err != nil {
		return err
	}
	uid, err := c.requireUser()
	if err != nil {
		return err
	}

	q := Query{Where: Filter{}}
	for k, v := range filter {
		q.Where[k] = v
	}

	switch {
	case p.owner != "":
		q.Where[p.owner] = uid
		if p.shared && len(filter) == 0 {
			ids, err := c.sharedListIDs(ctx, uid)
			if err != nil {
				return err
			}
			q.OrIDs = ids
		}
	case p.list != "":
		listID, _ := filter[p.list].(string)
		if listID == "" {
			return fmt.Errorf("%w: %s filter is required for %s", ErrValidation, p.list, table)
		}
		if err := c.authorizeList(ctx, uid, listID, false); err != nil {
			return err
		}
	}

	if err := c.driver.Find(ctx, table, q, dest); err != nil {
		return fmt.Errorf("select %s: %w", table, classify(err))
	}
	return nil
}

// Insert stores row (a pointer to an entity) and fills in the id,
// timestamps and owner assigned by the backend.
func (c *Client) Insert(ctx context.Context, table string, row any) error {
	p, err := lookupPolicy(table)
	if err != nil {
		return err
	}
	r, err := rowFor(table, row)
	if err != nil {
		return err
	}
	uid, err := c.requireUser()
	if err != nil {
		return err
	}

	if owned, ok := r.(model.Owned); ok && p.owner != "" {
		owned.SetOwner(uid)
	}
	if scoped, ok := r.(model.ListScoped); ok && p.list != "" {
		if err := c.authorizeList(ctx, uid, scoped.ScopeListID(), p.ownerWrites); err != nil {
			return err
		}
	}
	if err := model.Validate(r); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	r.SetRowID(uuid.NewString())
	r.Stamp(c.now())
	if err := c.driver.Create(ctx, table, r); err != nil {
		return fmt.Errorf("insert %s: %w", table, classify(err))
	}
	c.log.Debug().Str("table", table).Str("id", r.RowID()).Msg("row inserted")
	return nil
}

// Update applies patch to the row id and loads the stored result into dest.
// Identity, owner and parent columns cannot be patched.
func (c *Client) Update(ctx context.Context, table, id string, patch Patch, dest any) error {
	p, err := lookupPolicy(table)
	if err != nil {
		return err
	}
	uid, err := c.requireUser()
	if err != nil {
		return err
	}

	current, err := c.loadWritable(ctx, table, p, uid, id)
	if err != nil {
		return err
	}
	if err := applyPatch(current, patch, p); err != nil {
		return err
	}
	if err := model.Validate(current); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	current.Stamp(c.now())
	if err := c.driver.Save(ctx, table, current); err != nil {
		return fmt.Errorf("update %s: %w", table, classify(err))
	}
	if dest == nil {
		return nil
	}
	if err := c.driver.Get(ctx, table, id, dest); err != nil {
		return fmt.Errorf("reload %s: %w", table, classify(err))
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, table, id string) error {
	p, err := lookupPolicy(table)
	if err != nil {
		return err
	}
	uid, err := c.requireUser()
	if err != nil {
		return err
	}
	if _, err := c.loadWritable(ctx, table, p, uid, id); err != nil {
		return err
	}
	for _, dep := range dependents[table] {
		if err := c.removeWhere(ctx, dep.table, Filter{dep.column: id}); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if err := c.driver.Remove(ctx, table, id); err != nil {
		return fmt.Errorf("delete %s: %w", table, classify(err))
	}
	c.log.Debug().Str("table", table).Str("id", id).Msg("row deleted")
	return nil
}

type dependent struct {
	table  string
	column string
}

// dependents lists the rows deleted together with a row of each table,
// matched by column against the deleted id.
var dependents = map[string][]dependent{
	model.TableTasks: {{model.TableListItems, "task_id"}},
	model.TableLists: {{model.TableListItems, "list_id"}, {model.TableCollaborators, "list_id"}},
}

// removeWhere deletes the rows of table matching filter. It runs on the
// driver directly: dependents of a row the caller may delete are removed
// whoever created them.
func (c *Client) removeWhere(ctx context.Context, table string, filter Filter) error {
	var ids []string
	q := Query{Where: filter}
	switch table {
	case model.TableListItems:
		var rows []model.ListItem
		if err := c.driver.Find(ctx, table, q, &rows); err != nil {
			return fmt.Errorf("find %s: %w", table, classify(err))
		}
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
	case model.TableCollaborators:
		var rows []model.Collaborator
		if err := c.driver.Find(ctx, table, q, &rows); err != nil {
			return fmt.Errorf("find %s: %w", table, classify(err))
		}
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
	default:
		return fmt.Errorf("%w: no cascade for %s", ErrValidation, table)
	}

	for _, id := range ids {
		if err := c.driver.Remove(ctx, table, id); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("remove %s %s: %w", table, id, classify(err))
		}
	}
	if len(ids) > 0 {
		c.log.Debug().Str("table", table).Int("rows", len(ids)).Msg("dependent rows deleted")
	}
	return nil
}

// loadWritable loads row id of table if uid may modify it. Rows the user
// cannot see are reported as not found.
func (c *Client) loadWritable(ctx context.Context, table string, p policy, uid, id string) (model.Row, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrValidation)
	}
	row, _ := model.NewRow(table)
	if err := c.driver.Get(ctx, table, id, row); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, table, id)
		}
		return nil, fmt.Errorf("load %s: %w", table, classify(err))
	}

	if owned, ok := row.(model.Owned); ok && p.owner != "" && owned.Owner() != uid {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, table, id)
	}
	if scoped, ok := row.(model.ListScoped); ok && p.list != "" {
		if err := c.authorizeList(ctx, uid, scoped.ScopeListID(), p.ownerWrites); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: %s %s", ErrNotFound, table, id)
			}
			return nil, err
		}
	}
	return row, nil
}

// authorizeList checks that uid owns listID or, unless ownerOnly, collaborates on it.
func (c *Client) authorizeList(ctx context.Context, uid, listID string, ownerOnly bool) error {
	if listID == "" {
		return fmt.Errorf("%w: list_id is required", ErrValidation)
	}
	var list model.List
	if err := c.driver.Get(ctx, model.TableLists, listID, &list); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: list %s", ErrNotFound, listID)
		}
		return fmt.Errorf("load list: %w", classify(err))
	}
	if list.OwnerID == uid {
		return nil
	}
	if !ownerOnly {
		var collaborators []model.Collaborator
		q := Query{Where: Filter{"list_id": listID, "user_id": uid}}
		if err := c.driver.Find(ctx, model.TableCollaborators, q, &collaborators); err != nil {
			return fmt.Errorf("load collaborators: %w", classify(err))
		}
		if len(collaborators) > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: list %s", ErrNotFound, listID)
}

func (c *Client) sharedListIDs(ctx context.Context, uid string) ([]string, error) {
	var collaborators []model.Collaborator
	if err := c.driver.Find(ctx, model.TableCollaborators, Query{Where: Filter{"user_id": uid}}, &collaborators); err != nil {
		return nil, fmt.Errorf("load shared lists: %w", classify(err))
	}
	ids := make([]string, 0, len(collaborators))
	for _, col := range collaborators {
		ids = append(ids, col.ListID)
	}
	return ids, nil
}

// rowFor checks that row is a pointer to the entity stored in table.
func rowFor(table string, row any) (model.Row, error) {
	r, ok := row.(model.Row)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a row", ErrValidation, row)
	}
	want, _ := model.NewRow(table)
	if fmt.Sprintf("%T", want) != fmt.Sprintf("%T", r) {
		return nil, fmt.Errorf("%w: %T cannot be stored in %s", ErrValidation, row, table)
	}
	return r, nil
}

// applyPatch decodes patch onto row using the json column names. Unknown
// columns are rejected.
func applyPatch(row model.Row, patch Patch, p policy) error {
	clean := make(map[string]any, len(patch))
	for k, v := range patch {
		if k == "id" || k == "created_at" || k == "updated_at" || k == p.owner || k == p.list {
			continue
		}
		clean[k] = v
	}
	if len(clean) == 0 {
		return fmt.Errorf("%w: nothing to update", ErrValidation)
	}

	raw, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(row); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
