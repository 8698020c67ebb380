// Package batch implements the underscore-delimited id lists used by the
// multi-record endpoints and the partial-result entries they return.
package batch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"inventoryapi/internal/apperr"
)

// Separator delimits ids in a list such as "1_2_3".
const Separator = "_"

// ParseIDs splits an id list into numeric ids, preserving order and duplicates.
func ParseIDs(list string) ([]int64, error) {
	if strings.TrimSpace(list) == "" {
		return nil, fmt.Errorf("%w: empty id list", apperr.ErrInvalidInput)
	}

	parts := strings.Split(list, Separator)
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a valid id", apperr.ErrInvalidInput, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// JoinIDs is the inverse of ParseIDs.
func JoinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, Separator)
}

// Entry is one position of a batch result: either the record or a
// placeholder explaining why the record is absent.
type Entry[T any] struct {
	Record  *T
	Missing string
}

// Found wraps a record.
func Found[T any](record *T) Entry[T] {
	return Entry[T]{Record: record}
}

// Missing builds a placeholder entry.
func Missing[T any](format string, args ...any) Entry[T] {
	return Entry[T]{Missing: fmt.Sprintf(format, args...)}
}

// OK reports whether the entry carries a record.
func (e Entry[T]) OK() bool {
	return e.Record != nil
}

// MarshalJSON encodes the record itself, or the placeholder as a JSON string.
func (e Entry[T]) MarshalJSON() ([]byte, error) {
	if e.Record != nil {
		return json.Marshal(e.Record)
	}
	return json.Marshal(e.Missing)
}

// UnmarshalJSON accepts either shape produced by MarshalJSON.
func (e *Entry[T]) UnmarshalJSON(data []byte) error {
	var placeholder string
	if err := json.Unmarshal(data, &placeholder); err == nil {
		e.Record = nil
		e.Missing = placeholder
		return nil
	}

	var record T
	if err := json.Unmarshal(data, &record); err != nil {
		return err
	}
	e.Record = &record
	e.Missing = ""
	return nil
}
