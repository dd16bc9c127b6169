package cache

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Kind tags the family of a compiled cache entry so that keys built from the
// same type and member name never collide across families.
type Kind uint8

const (
	KindGetter Kind = iota
	KindSetter
	KindTypedGetter
	KindTypedSetter
	KindConstructor
	KindMethod
	KindStatic
)

var kindNames = [...]string{
	KindGetter:      "get",
	KindSetter:      "set",
	KindTypedGetter: "tget",
	KindTypedSetter: "tset",
	KindConstructor: "ctor",
	KindMethod:      "method",
	KindStatic:      "static",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Key joins the parts of a compiled cache key into its canonical string form:
//
//	kind|part1|part2|...
func Key(kind Kind, parts ...string) string {
	var b strings.Builder
	n := len(kind.String())
	for _, p := range parts {
		n += len(p) + 1
	}
	b.Grow(n)

	b.WriteString(kind.String())
	for _, p := range parts {
		b.WriteByte('|')
		b.WriteString(p)
	}
	return b.String()
}

// Fingerprint hashes a canonical key. Used for shard selection only, never as
// the identity of an entry.
func Fingerprint(key string) uint64 {
	return xxhash.Sum64String(key)
}

var (
	typeIDs    sync.Map // reflect.Type -> string
	nextTypeID atomic.Uint64
)

// TypeID returns a token naming t in cache keys. Types sharing a package
// path and name, function-local types for one, still get distinct tokens.
// Tokens are stable for the life of the process.
func TypeID(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if id, ok := typeIDs.Load(t); ok {
		return id.(string)
	}
	id := strconv.FormatUint(nextTypeID.Add(1), 36) + ":" + t.String()
	actual, _ := typeIDs.LoadOrStore(t, id)
	return actual.(string)
}
