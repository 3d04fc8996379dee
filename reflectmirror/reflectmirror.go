/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package reflectmirror builds the java.lang.reflect.{Field,Method,
// Constructor,Parameter} and java.lang.Class mirror objects the
// reflection natives hand back to Java code. Grounded on
// original_source/vm/reflection.c's reflect_initialize_field/_method/
// _constructor and reflect_get_method_parameters: each mirror is built
// once from the owning class's postable field/method/parameter
// descriptor and cached so repeated reflection calls return the same
// object, matching the original's classdesc-owned reflection_field/
// reflection_method/reflection_ctor back-pointers.
package reflectmirror

import (
	"sync"

	"vesper/classloader"
	"vesper/object"
	"vesper/types"
)

const (
	fieldClassName       = "java/lang/reflect/Field"
	methodClassName      = "java/lang/reflect/Method"
	constructorClassName = "java/lang/reflect/Constructor"
	parameterClassName   = "java/lang/reflect/Parameter"
)

// mirrorKey identifies one field/method/parameter within one class's
// constant pool, used to memoize mirror construction the way classdesc's
// reflection_field/reflection_method pointers do.
type mirrorKey struct {
	class string
	index int
	kind  byte // 'f', 'm', 'c' (constructor), or 'p'
}

var (
	mu      sync.Mutex
	mirrors = make(map[mirrorKey]*object.Object)
)

func cached(key mirrorKey, build func() *object.Object) *object.Object {
	mu.Lock()
	if m, ok := mirrors[key]; ok {
		mu.Unlock()
		return m
	}
	mu.Unlock()

	m := build()

	mu.Lock()
	defer mu.Unlock()
	if existing, ok := mirrors[key]; ok {
		return existing
	}
	mirrors[key] = m
	return m
}

func setStr(obj *object.Object, field, value string) {
	obj.FieldTable[field] = &object.Field{Ftype: types.Ref, Fvalue: object.StringObjectFromGoString(value)}
}

func setInt(obj *object.Object, field string, value int64) {
	obj.FieldTable[field] = &object.Field{Ftype: types.Int, Fvalue: value}
}

func setRef(obj *object.Object, field string, value interface{}) {
	obj.FieldTable[field] = &object.Field{Ftype: types.Ref, Fvalue: value}
}

// FieldMirror returns the (cached) java/lang/reflect/Field object for
// the idx'th field of k — name, declaring class, modifiers, and the raw
// type descriptor string (full Class-mirror resolution of the field's
// type needs the class-loading pipeline that backs load_class_of_field_descriptor,
// which isn't wired up yet; the descriptor string lets callers that only
// need Field.getName/getModifiers/toString work today).
func FieldMirror(k *classloader.Klass, idx int) *object.Object {
	key := mirrorKey{class: k.Data.Name, index: idx, kind: 'f'}
	return cached(key, func() *object.Object {
		fd := k.Data.Fields[idx]
		cp := &k.Data.CP
		mirror := object.NewObject(fieldClassName)
		setStr(mirror, "name", classloader.FetchUTF8stringFromCPEntryNumber(cp, uint32(fd.Name)))
		setStr(mirror, "descriptor", classloader.FetchUTF8stringFromCPEntryNumber(cp, uint32(fd.Desc)))
		setStr(mirror, "clazz", k.Data.Name)
		setInt(mirror, "modifiers", int64(fd.AccessFlags))
		setInt(mirror, "slot", int64(idx))
		return mirror
	})
}

// MethodMirrorByKey returns the (cached) Method or Constructor mirror
// for the method registered under key in k's MethodTable —
// reflect_initialize_method/reflect_initialize_constructor share almost
// all of their field population, differing only in target class and the
// constructor's lack of a return type; MethodTable is keyed by signature
// string rather than index, so that's the natural lookup key here too.
func MethodMirrorByKey(k *classloader.Klass, key string) *object.Object {
	m, ok := k.Data.MethodTable[key]
	if !ok {
		return nil
	}
	cp := &k.Data.CP
	name := classloader.FetchUTF8stringFromCPEntryNumber(cp, uint32(m.Name))
	isCtor := name == "<init>"

	mk := mirrorKey{class: k.Data.Name, kind: 'm'}
	if isCtor {
		mk.kind = 'c'
	}
	mk.index = int(m.Name)<<16 | int(m.Desc)

	return cached(mk, func() *object.Object {
		className := methodClassName
		if isCtor {
			className = constructorClassName
		}
		mirror := object.NewObject(className)
		setStr(mirror, "clazz", k.Data.Name)
		setInt(mirror, "modifiers", int64(m.AccessFlags))
		setStr(mirror, "descriptor", classloader.FetchUTF8stringFromCPEntryNumber(cp, uint32(m.Desc)))
		if !isCtor {
			setStr(mirror, "name", name)
		}

		var params []*object.Object
		for i, p := range m.Parameters {
			params = append(params, ParameterMirror(mirror, p, i))
		}
		setRef(mirror, "parameters", params)

		if m.Deprecated {
			setInt(mirror, "deprecated", 1)
		}
		return mirror
	})
}

// ParameterMirror builds a java/lang/reflect/Parameter mirror for one
// entry of a method's MethodParameters attribute — get_method_parameters,
// minus the OOM-unwind bookkeeping Go's allocator makes unnecessary.
// Parameters aren't cached on their own since they're always rebuilt
// alongside their owning method's parameter array, matching the
// original's one-shot array construction in reflect_get_method_parameters.
func ParameterMirror(executable *object.Object, p classloader.ParamAttrib, index int) *object.Object {
	mirror := object.NewObject(parameterClassName)
	setStr(mirror, "name", p.Name)
	setRef(mirror, "executable", executable)
	setInt(mirror, "index", int64(index))
	setInt(mirror, "modifiers", int64(p.AccessFlags))
	return mirror
}

// ClassMirror returns a cached, minimal java/lang/Class stand-in for k
// that carries only its name. The Field/Method/Constructor mirrors above
// store their declaring class as a name string in "clazz", not as this
// object.
func ClassMirror(k *classloader.Klass) *object.Object {
	key := mirrorKey{class: k.Data.Name, kind: 'L'}
	return cached(key, func() *object.Object {
		mirror := object.NewObject(types.ClassClassName)
		setStr(mirror, "name", k.Data.Name)
		return mirror
	})
}

// Forget drops every cached mirror for className — called when a class
// is unloaded so stale Field/Method/Constructor objects don't survive
// their declaring class.
func Forget(className string) {
	mu.Lock()
	defer mu.Unlock()
	for key := range mirrors {
		if key.class == className {
			delete(mirrors, key)
		}
	}
}
