package accessor

import (
	"database/sql"
	"encoding/json"
	"reflect"
	"sync"
	"time"
	"unsafe"

	"github.com/google/uuid"
)

// fieldAccess reads and writes a field of one Go type at a raw address.
type fieldAccess struct {
	read  func(p unsafe.Pointer) any
	write func(p unsafe.Pointer, v any)
}

var fieldAccessors sync.Map // reflect.Type -> *fieldAccess

// registerFieldAccess installs typed unsafe access for fields of type T.
// write asserts v.(T) and so panics on a mismatched value.
func registerFieldAccess[T any]() {
	fieldAccessors.Store(reflect.TypeFor[T](), &fieldAccess{
		read: func(p unsafe.Pointer) any {
			return *(*T)(p)
		},
		write: func(p unsafe.Pointer, v any) {
			if v == nil {
				var zero T
				*(*T)(p) = zero
				return
			}
			*(*T)(p) = v.(T)
		},
	})
}

func init() {
	registerFieldAccess[int]()
	registerFieldAccess[int8]()
	registerFieldAccess[int16]()
	registerFieldAccess[int32]()
	registerFieldAccess[int64]()
	registerFieldAccess[uint]()
	registerFieldAccess[uint8]()
	registerFieldAccess[uint16]()
	registerFieldAccess[uint32]()
	registerFieldAccess[uint64]()
	registerFieldAccess[float32]()
	registerFieldAccess[float64]()
	registerFieldAccess[bool]()
	registerFieldAccess[string]()
	registerFieldAccess[*string]()
	registerFieldAccess[[]byte]()
	registerFieldAccess[json.RawMessage]()
	registerFieldAccess[time.Time]()
	registerFieldAccess[time.Duration]()
	registerFieldAccess[uuid.UUID]()
	registerFieldAccess[sql.NullString]()
	registerFieldAccess[sql.NullInt64]()
	registerFieldAccess[sql.NullBool]()
	registerFieldAccess[sql.NullTime]()
}

// fastAccess returns typed access for fields of type t, if registered.
func fastAccess(t reflect.Type) (*fieldAccess, bool) {
	fa, ok := fieldAccessors.Load(t)
	if !ok {
		return nil, false
	}
	return fa.(*fieldAccess), true
}

// reflectAccess builds access for any field type at a raw address.
func reflectAccess(t reflect.Type) *fieldAccess {
	return &fieldAccess{
		read: func(p unsafe.Pointer) any {
			return reflect.NewAt(t, p).Elem().Interface()
		},
		write: func(p unsafe.Pointer, v any) {
			dst := reflect.NewAt(t, p).Elem()
			if v == nil {
				dst.SetZero()
				return
			}
			dst.Set(reflect.ValueOf(v))
		},
	}
}
