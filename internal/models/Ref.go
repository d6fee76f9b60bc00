package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Ref is a reference to another record that travels either as a bare id or as the
// populated record, depending on whether the API preloaded it.
type Ref[T any] struct {
	id    uint
	value *T
}

func IDRef[T any](id uint) Ref[T] {
	return Ref[T]{id: id}
}

// RefOf returns a populated reference when v is non-nil, otherwise an id-only one.
func RefOf[T any](id uint, v *T) Ref[T] {
	return Ref[T]{id: id, value: v}
}

func (r Ref[T]) ID() uint {
	return r.id
}

func (r Ref[T]) Populated() (*T, bool) {
	return r.value, r.value != nil
}

func (r Ref[T]) IsZero() bool {
	return r.id == 0 && r.value == nil
}

func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.value != nil {
		return json.Marshal(r.value)
	}
	if r.id == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}

func (r *Ref[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*r = Ref[T]{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	switch data[0] {
	case '{':
		var head struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			return err
		}
		id, err := parseRefID(head.ID)
		if err != nil {
			return err
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		r.id, r.value = id, &v
		return nil
	default:
		id, err := parseRefID(data)
		if err != nil {
			return err
		}
		r.id = id
		return nil
	}
}

// parseRefID accepts 12 and "12".
func parseRefID(raw json.RawMessage) (uint, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid reference id %q", s)
	}
	return uint(n), nil
}
