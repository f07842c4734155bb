package models

import (
	"database/sql/driver"

	"github.com/pgvector/pgvector-go"
)

// Embedding is a dense vector bound through pgvector/pgvector-go, nullable
// on Event rows that have not yet been through semantic dedup.
type Embedding []float32

// Scan implements sql.Scanner, delegating to pgvector.Vector.
func (e *Embedding) Scan(src any) error {
	if src == nil {
		*e = nil
		return nil
	}
	var v pgvector.Vector
	if err := v.Scan(src); err != nil {
		return err
	}
	*e = v.Slice()
	return nil
}

// Value implements driver.Valuer, delegating to pgvector.Vector.
func (e Embedding) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	return pgvector.NewVector(e).Value()
}
