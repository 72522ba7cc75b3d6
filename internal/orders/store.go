// Package orders implements the orders function that sits behind the HTTP api.
package orders

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store.Get when no item has the requested id.
var ErrNotFound = errors.New("order not found")

// Item is a single order. Only "id" is fixed; every other attribute is free form.
type Item map[string]any

// ID returns the item's id, or "" if it has no string id.
func (i Item) ID() string {
	id, _ := i["id"].(string)
	return id
}

func (i Item) validate() error {
	v, ok := i["id"]
	if !ok {
		return errors.New("missing id")
	}
	id, ok := v.(string)
	if !ok {
		return fmt.Errorf("id must be a string, got %T", v)
	}
	if id == "" {
		return errors.New("id must not be empty")
	}
	return nil
}

type Store interface {
	List(ctx context.Context) ([]Item, error)
	Get(ctx context.Context, id string) (Item, error)
	Put(ctx context.Context, item Item) error
	Delete(ctx context.Context, id string) error
}
