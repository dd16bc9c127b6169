package convert

import (
	"database/sql"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// nullable describes a wrapper type holding an optional inner value.
type nullable struct {
	inner  reflect.Type
	wrap   func(reflect.Value) reflect.Value
	unwrap func(reflect.Value) (reflect.Value, bool)
}

var nullables sync.Map // reflect.Type -> *nullable

// RegisterNullable teaches every Converter a wrapper type W around values of
// type V. The zero W must be the invalid (NULL) wrapper.
func RegisterNullable[W, V any](wrap func(V) W, unwrap func(W) (V, bool)) {
	nullables.Store(reflect.TypeFor[W](), &nullable{
		inner: reflect.TypeFor[V](),
		wrap: func(v reflect.Value) reflect.Value {
			return valueOf(wrap(v.Interface().(V)))
		},
		unwrap: func(w reflect.Value) (reflect.Value, bool) {
			v, ok := unwrap(w.Interface().(W))
			return valueOf(v), ok
		},
	})
}

// IsNullable reports whether t is a registered nullable wrapper.
func IsNullable(t reflect.Type) bool {
	_, ok := lookupNullable(t)
	return ok
}

func lookupNullable(t reflect.Type) (*nullable, bool) {
	if t == nil {
		return nil, false
	}
	n, ok := nullables.Load(t)
	if !ok {
		return nil, false
	}
	return n.(*nullable), true
}

// valueOf keeps the static type, so interface-typed values stay valid.
func valueOf[T any](v T) reflect.Value {
	return reflect.ValueOf(&v).Elem()
}

func init() {
	// database/sql
	RegisterNullable(
		func(v string) sql.NullString { return sql.NullString{String: v, Valid: true} },
		func(w sql.NullString) (string, bool) { return w.String, w.Valid },
	)
	RegisterNullable(
		func(v int64) sql.NullInt64 { return sql.NullInt64{Int64: v, Valid: true} },
		func(w sql.NullInt64) (int64, bool) { return w.Int64, w.Valid },
	)
	RegisterNullable(
		func(v int32) sql.NullInt32 { return sql.NullInt32{Int32: v, Valid: true} },
		func(w sql.NullInt32) (int32, bool) { return w.Int32, w.Valid },
	)
	RegisterNullable(
		func(v int16) sql.NullInt16 { return sql.NullInt16{Int16: v, Valid: true} },
		func(w sql.NullInt16) (int16, bool) { return w.Int16, w.Valid },
	)
	RegisterNullable(
		func(v byte) sql.NullByte { return sql.NullByte{Byte: v, Valid: true} },
		func(w sql.NullByte) (byte, bool) { return w.Byte, w.Valid },
	)
	RegisterNullable(
		func(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} },
		func(w sql.NullFloat64) (float64, bool) { return w.Float64, w.Valid },
	)
	RegisterNullable(
		func(v bool) sql.NullBool { return sql.NullBool{Bool: v, Valid: true} },
		func(w sql.NullBool) (bool, bool) { return w.Bool, w.Valid },
	)
	RegisterNullable(
		func(v time.Time) sql.NullTime { return sql.NullTime{Time: v, Valid: true} },
		func(w sql.NullTime) (time.Time, bool) { return w.Time, w.Valid },
	)

	// pgx
	RegisterNullable(
		func(v string) pgtype.Text { return pgtype.Text{String: v, Valid: true} },
		func(w pgtype.Text) (string, bool) { return w.String, w.Valid },
	)
	RegisterNullable(
		func(v int16) pgtype.Int2 { return pgtype.Int2{Int16: v, Valid: true} },
		func(w pgtype.Int2) (int16, bool) { return w.Int16, w.Valid },
	)
	RegisterNullable(
		func(v int32) pgtype.Int4 { return pgtype.Int4{Int32: v, Valid: true} },
		func(w pgtype.Int4) (int32, bool) { return w.Int32, w.Valid },
	)
	RegisterNullable(
		func(v int64) pgtype.Int8 { return pgtype.Int8{Int64: v, Valid: true} },
		func(w pgtype.Int8) (int64, bool) { return w.Int64, w.Valid },
	)
	RegisterNullable(
		func(v float32) pgtype.Float4 { return pgtype.Float4{Float32: v, Valid: true} },
		func(w pgtype.Float4) (float32, bool) { return w.Float32, w.Valid },
	)
	RegisterNullable(
		func(v float64) pgtype.Float8 { return pgtype.Float8{Float64: v, Valid: true} },
		func(w pgtype.Float8) (float64, bool) { return w.Float64, w.Valid },
	)
	RegisterNullable(
		func(v bool) pgtype.Bool { return pgtype.Bool{Bool: v, Valid: true} },
		func(w pgtype.Bool) (bool, bool) { return w.Bool, w.Valid },
	)
	RegisterNullable(
		func(v time.Time) pgtype.Timestamptz { return pgtype.Timestamptz{Time: v, Valid: true} },
		func(w pgtype.Timestamptz) (time.Time, bool) {
			return w.Time, w.Valid && w.InfinityModifier == pgtype.Finite
		},
	)
	RegisterNullable(
		func(v time.Time) pgtype.Date { return pgtype.Date{Time: v, Valid: true} },
		func(w pgtype.Date) (time.Time, bool) {
			return w.Time, w.Valid && w.InfinityModifier == pgtype.Finite
		},
	)
	RegisterNullable(
		func(v uuid.UUID) pgtype.UUID { return pgtype.UUID{Bytes: v, Valid: true} },
		func(w pgtype.UUID) (uuid.UUID, bool) { return uuid.UUID(w.Bytes), w.Valid },
	)
}
