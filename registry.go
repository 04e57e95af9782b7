package zrm

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// The type registry maps canonical identifiers of the form
// `zrm/<category>/<module>/<TypeName>[.Request|.Response]` to concrete Go
// types. Schema packages self-register from init(), so a module is "loaded"
// exactly when its package is linked into the binary; resolving an
// identifier for a package that was never imported fails the same way a
// missing module would.

const (
	identifierPrefix = "zrm"

	categoryMessages = "msgs"
	categoryServices = "srvs"
)

type typeRegistry struct {
	mu      sync.RWMutex
	byType  map[reflect.Type]string
	modules map[string]map[string]reflect.Type
}

var registry = &typeRegistry{
	byType:  make(map[reflect.Type]string),
	modules: make(map[string]map[string]reflect.Type),
}

// RegisterMessage binds a message type to `zrm/msgs/<module>/<name>`.
// It is meant to be called from the schema package's init() and panics on
// duplicate registration.
func RegisterMessage(module, name string, prototype any) {
	registry.register(categoryMessages, module, name, prototype)
}

// RegisterService binds a service's request and response types to
// `zrm/srvs/<module>/<name>.Request` and `.Response`.
func RegisterService(module, name string, reqPrototype, rspPrototype any) {
	registry.register(categoryServices, module, name+".Request", reqPrototype)
	registry.register(categoryServices, module, name+".Response", rspPrototype)
}

func (r *typeRegistry) register(category, module, name string, prototype any) {
	t := structTypeOf(prototype)
	identifier := strings.Join([]string{identifierPrefix, category, module, name}, "/")

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byType[t]; dup {
		panic(fmt.Sprintf("%v: %s", ErrAlreadyRegistered, t))
	}
	modKey := category + "/" + module
	mod, ok := r.modules[modKey]
	if !ok {
		mod = make(map[string]reflect.Type)
		r.modules[modKey] = mod
	}
	if _, dup := mod[name]; dup {
		panic(fmt.Sprintf("%v: %s", ErrAlreadyRegistered, identifier))
	}
	mod[name] = t
	r.byType[t] = identifier
}

// GetTypeName returns the canonical identifier of a registered message
// type. It accepts an instance, a pointer to an instance, or a
// reflect.Type.
func GetTypeName(v any) (string, error) {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "", fmt.Errorf("%w: <nil>", ErrNotRegistered)
	}

	registry.mu.RLock()
	defer registry.mu.RUnlock()
	identifier, ok := registry.byType[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotRegistered, t)
	}
	return identifier, nil
}

// GetMessageType resolves a canonical identifier back to the registered
// Go type. The returned reflect.Type is identical (not merely equal) to
// the one the type was registered with, so identifier equality can stand
// in for type equality.
func GetMessageType(identifier string) (reflect.Type, error) {
	segments := strings.Split(identifier, "/")
	if len(segments) != 4 || segments[0] != identifierPrefix {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, identifier)
	}
	category, module, name := segments[1], segments[2], segments[3]
	if category != categoryMessages && category != categoryServices {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidCategory, category)
	}

	registry.mu.RLock()
	defer registry.mu.RUnlock()
	mod, ok := registry.modules[category+"/"+module]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrModuleNotRegistered, category, module)
	}
	t, ok := mod[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no type %q", ErrTypeNotFound, module, name)
	}
	return t, nil
}

func structTypeOf(v any) reflect.Type {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// typeFor is the compile-time companion of GetTypeName used by the typed
// entity constructors.
func typeFor[T any]() (reflect.Type, string, error) {
	t := structTypeOf(reflect.TypeFor[T]())
	name, err := GetTypeName(t)
	if err != nil {
		return nil, "", err
	}
	return t, name, nil
}
