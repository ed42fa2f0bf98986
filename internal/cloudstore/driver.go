package cloudstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"task-manager/internal/model"
	"task-manager/internal/remote"
)

// Driver implements remote.Driver on Firestore.
type Driver struct {
	client *firestore.Client
}

var _ remote.Driver = (*Driver)(nil)

func NewDriver(client *firestore.Client) *Driver {
	return &Driver{client: client}
}

func (d *Driver) Find(ctx context.Context, table string, q remote.Query, dest any) error {
	out := reflect.ValueOf(dest)
	if out.Kind() != reflect.Pointer || out.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("find %s: dest must be a pointer to a slice, got %T", table, dest)
	}
	list := out.Elem()
	elemType := list.Type().Elem()

	coll := d.client.Collection(table)
	seen := make(map[string]bool)
	add := func(snap *firestore.DocumentSnapshot) error {
		if seen[snap.Ref.ID] {
			return nil
		}
		seen[snap.Ref.ID] = true
		elem := reflect.New(elemType)
		if err := snap.DataTo(elem.Interface()); err != nil {
			return fmt.Errorf("decode %s/%s: %w", table, snap.Ref.ID, err)
		}
		list.Set(reflect.Append(list, elem.Elem()))
		return nil
	}

	if len(q.Where) > 0 || len(q.OrIDs) == 0 {
		query := coll.Query
		for field, value := range q.Where {
			query = query.Where(field, "==", value)
		}
		docs, err := query.Documents(ctx).GetAll()
		if err != nil {
			return fmt.Errorf("find %s: %w", table, translate(err))
		}
		for _, snap := range docs {
			if err := add(snap); err != nil {
				return err
			}
		}
	}

	if len(q.OrIDs) > 0 {
		refs := make([]*firestore.DocumentRef, 0, len(q.OrIDs))
		for _, id := range q.OrIDs {
			refs = append(refs, coll.Doc(id))
		}
		snaps, err := d.client.GetAll(ctx, refs)
		if err != nil {
			return fmt.Errorf("find %s by id: %w", table, translate(err))
		}
		for _, snap := range snaps {
			if !snap.Exists() {
				continue
			}
			if err := add(snap); err != nil {
				return err
			}
		}
	}

	sort.SliceStable(list.Interface(), func(i, j int) bool {
		a, aok := list.Index(i).Interface().(model.Created)
		b, bok := list.Index(j).Interface().(model.Created)
		if !aok || !bok {
			return false
		}
		return a.Created().Before(b.Created())
	})
	return nil
}

func (d *Driver) Get(ctx context.Context, table, id string, dest any) error {
	snap, err := d.client.Collection(table).Doc(id).Get(ctx)
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", table, id, translate(err))
	}
	if err := snap.DataTo(dest); err != nil {
		return fmt.Errorf("decode %s/%s: %w", table, id, err)
	}
	return nil
}

func (d *Driver) Create(ctx context.Context, table string, row model.Row) error {
	if _, err := d.client.Collection(table).Doc(row.RowID()).Create(ctx, row); err != nil {
		return fmt.Errorf("create %s/%s: %w", table, row.RowID(), translate(err))
	}
	return nil
}

func (d *Driver) Save(ctx context.Context, table string, row model.Row) error {
	if _, err := d.client.Collection(table).Doc(row.RowID()).Set(ctx, row); err != nil {
		return fmt.Errorf("save %s/%s: %w", table, row.RowID(), translate(err))
	}
	return nil
}

func (d *Driver) Remove(ctx context.Context, table, id string) error {
	if _, err := d.client.Collection(table).Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return fmt.Errorf("remove %s/%s: %w", table, id, translate(err))
	}
	return nil
}

func translate(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return remote.ErrNotFound
	case codes.AlreadyExists:
		return remote.ErrDuplicate
	default:
		return err
	}
}
