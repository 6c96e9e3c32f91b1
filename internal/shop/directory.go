// Package shop answers whether an upload target is a registered shop.
package shop

import (
	"context"
	"strings"
)

// StaticDirectory knows a fixed set of shops. An empty set accepts every id, which is how
// the in-memory backend runs without an account database.
type StaticDirectory struct {
	known map[string]struct{}
}

// NewStaticDirectory builds a directory from configured shop ids.
func NewStaticDirectory(ids []string) *StaticDirectory {
	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			known[id] = struct{}{}
		}
	}
	return &StaticDirectory{known: known}
}

// Exists reports whether shopID is known.
func (d *StaticDirectory) Exists(_ context.Context, shopID string) (bool, error) {
	if len(d.known) == 0 {
		return shopID != "", nil
	}
	_, ok := d.known[shopID]
	return ok, nil
}
