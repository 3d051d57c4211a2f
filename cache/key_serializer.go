package cache

import (
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// NullToken is rendered in place of absent (nil) arguments.
const NullToken = "<Null>"

// KeyOption customizes the default key serializer.
type KeyOption func(*defaultKeySerializer)

// WithMaxKeyLength bounds the length of generated keys. When a key would be longer
// than n bytes its argument list is replaced by an xxhash digest of the rendered
// arguments. Zero disables the limit.
func WithMaxKeyLength(n int) KeyOption {
	return func(s *defaultKeySerializer) {
		if n > 0 {
			s.maxKeyLength = n
		}
	}
}

// defaultKeySerializer implements KeySerializer using reflection-based serialization.
// Keys take the form "<method>(<arg1>,<arg2>,...)". Value-like arguments render as their
// natural text form, everything else as a deterministic JSON-shaped structure.
type defaultKeySerializer struct {
	maxKeyLength int
}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer(opts ...KeyOption) KeySerializer {
	s := &defaultKeySerializer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SerializeKey builds a cache key from the method identity and its ordered arguments.
func (s *defaultKeySerializer) SerializeKey(method string, args ...any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = s.serializeArg(arg)
	}

	joined := strings.Join(parts, ",")
	key := method + "(" + joined + ")"
	if s.maxKeyLength > 0 && len(key) > s.maxKeyLength {
		return fmt.Sprintf("%s(#%016x)", method, xxhash.Sum64String(joined))
	}
	return key
}

// serializeArg renders a single top level argument.
func (s *defaultKeySerializer) serializeArg(arg any) string {
	if IsNil(arg) {
		return NullToken
	}

	rv := reflect.ValueOf(arg)
	if isValueKind(rv.Kind()) {
		return fmt.Sprint(arg)
	}

	enc := &keyEncoder{path: make(map[visitKey]struct{})}
	enc.encode(rv)
	return enc.buf.String()
}

// visitKey identifies a reference on the current serialization path.
type visitKey struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

// keyEncoder writes the structural form of a value. path holds the references
// currently being serialized so that self references are dropped instead of
// recursing forever.
type keyEncoder struct {
	buf  strings.Builder
	path map[visitKey]struct{}
}

func (e *keyEncoder) encode(v reflect.Value) {
	switch v.Kind() {
	case reflect.Invalid:
		e.buf.WriteString("null")
		return
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			e.buf.WriteString("null")
			return
		}
	}

	if v.CanInterface() && e.marshaler(v.Interface()) {
		return
	}

	switch v.Kind() {
	case reflect.Interface:
		e.encode(v.Elem())

	case reflect.Pointer:
		k := refKey(v)
		e.path[k] = struct{}{}
		e.encode(v.Elem())
		delete(e.path, k)

	case reflect.String:
		e.buf.WriteString(strconv.Quote(v.String()))

	case reflect.Struct:
		e.encodeStruct(v)

	case reflect.Map:
		k := refKey(v)
		e.path[k] = struct{}{}
		e.encodeMap(v)
		delete(e.path, k)

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			e.buf.WriteString(strconv.Quote(base64.StdEncoding.EncodeToString(v.Bytes())))
			return
		}
		k := refKey(v)
		e.path[k] = struct{}{}
		e.encodeList(v)
		delete(e.path, k)

	case reflect.Array:
		e.encodeList(v)

	case reflect.Func:
		fmt.Fprintf(&e.buf, "func:0x%x", v.Pointer())

	case reflect.Chan:
		fmt.Fprintf(&e.buf, "chan:0x%x", v.Pointer())

	default:
		if isValueKind(v.Kind()) {
			e.buf.WriteString(basicText(v))
			return
		}
		fmt.Fprintf(&e.buf, "fallback:%s", v.Type().String())
	}
}

// marshaler renders values that define their own wire form.
func (e *keyEncoder) marshaler(value any) bool {
	switch m := value.(type) {
	case json.Marshaler:
		data, err := m.MarshalJSON()
		if err != nil {
			fmt.Fprintf(&e.buf, "fallback:%T", value)
			return true
		}
		e.buf.Write(data)
		return true
	case encoding.TextMarshaler:
		text, err := m.MarshalText()
		if err != nil {
			fmt.Fprintf(&e.buf, "fallback:%T", value)
			return true
		}
		e.buf.WriteString(strconv.Quote(string(text)))
		return true
	}
	return false
}

func (e *keyEncoder) encodeStruct(v reflect.Value) {
	t := v.Type()
	if !hasExportedField(t) && t.NumField() > 0 {
		// opaque structs would all render as {}
		e.buf.WriteString(strconv.Quote(fmt.Sprintf("%#v", v)))
		return
	}

	e.buf.WriteByte('{')
	first := true
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, skip := fieldName(field)
		if skip {
			continue
		}
		fv := v.Field(i)
		if e.cyclic(fv) {
			continue
		}
		if !first {
			e.buf.WriteByte(',')
		}
		first = false
		e.buf.WriteString(strconv.Quote(name))
		e.buf.WriteByte(':')
		e.encode(fv)
	}
	e.buf.WriteByte('}')
}

func hasExportedField(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

func (e *keyEncoder) encodeMap(v reflect.Value) {
	type entry struct {
		key   string
		value reflect.Value
	}

	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		if e.cyclic(iter.Value()) {
			continue
		}
		sub := &keyEncoder{path: e.path}
		sub.encode(iter.Key())
		entries = append(entries, entry{key: sub.buf.String(), value: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	e.buf.WriteByte('{')
	for i, ent := range entries {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.buf.WriteString(ent.key)
		e.buf.WriteByte(':')
		e.encode(ent.value)
	}
	e.buf.WriteByte('}')
}

func (e *keyEncoder) encodeList(v reflect.Value) {
	e.buf.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		elem := v.Index(i)
		if e.cyclic(elem) {
			e.buf.WriteString("null")
			continue
		}
		e.encode(elem)
	}
	e.buf.WriteByte(']')
}

// cyclic reports whether v refers back to a value already on the current path.
func (e *keyEncoder) cyclic(v reflect.Value) bool {
	for v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return false
		}
		_, seen := e.path[refKey(v)]
		return seen
	}
	return false
}

func refKey(v reflect.Value) visitKey {
	k := visitKey{ptr: v.Pointer(), typ: v.Type()}
	if v.Kind() == reflect.Slice {
		k.n = v.Len()
	}
	return k
}

// fieldName returns the serialized name of a struct field, honoring json tags.
func fieldName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, false
	}
	return field.Name, false
}

// isValueKind reports whether a kind renders with its natural text form.
func isValueKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return true
	default:
		return false
	}
}

func basicText(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	default:
		return fmt.Sprint(v.Complex())
	}
}

// IsNil reports whether v is nil or a typed nil of a nilable kind.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
