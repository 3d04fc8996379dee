/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package jvm

import (
	"container/list"

	"vesper/classloader"
	"vesper/object"
)

// instantiateClass is what the interpreter's NEW opcode and any native
// that needs a freshly-constructed instance (without running a Java
// constructor, e.g. internal exception allocation) call: it loads and
// links classname (running its <clinit> and its not-yet-run ancestors'),
// walks its own and every ancestor's declared instance fields building
// default-valued slots the way JVMS 2.5.1's "upon creation... every
// instance field is initialized to a default value" requires, and
// returns the resulting object as a heap Handle ready to push onto an
// operand stack.
func instantiateClass(vm *VM, fs *list.List, classname string) (object.Handle, error) {
	if _, err := loadAndLink(fs, classname); err != nil {
		return 0, err
	}

	obj := object.NewObject(classname)
	for name := classname; name != ""; {
		kk := classloader.MethAreaFetch(name)
		if kk == nil || kk.Data == nil {
			break
		}
		for i := range kk.Data.Fields {
			f := kk.Data.Fields[i]
			if f.AccessFlags&0x0008 != 0 { // ACC_STATIC: lives in staticFields, not the instance
				continue
			}
			initializeField(f, &kk.Data.CP, obj)
		}
		if kk.Data.Superclass == name {
			break
		}
		name = kk.Data.Superclass
	}

	return vm.Heap.Alloc(obj, false)
}

// initializeField resolves f's name and descriptor from cp and adds it to
// obj with its JVMS 2.5.1 default value, skipping a field whose name is
// already present (a subclass's field shadows a same-named ancestor
// field in FieldTable's name-indexed lookup, matching the shadowing Java
// source itself exhibits; the legacy positional Fields slice still
// records both).
func initializeField(f classloader.Field, cp *classloader.CPool, obj *object.Object) {
	name := classloader.FetchUTF8stringFromCPEntryNumber(cp, uint32(f.Name))
	desc := classloader.FetchUTF8stringFromCPEntryNumber(cp, uint32(f.Desc))
	if name == "" || desc == "" {
		return
	}

	fld := &object.Field{Ftype: desc}
	switch desc[0] {
	case 'L', '[':
		fld.Fvalue = nil
	case 'D', 'F':
		fld.Fvalue = 0.0
	default: // B, C, I, J, S, Z
		fld.Fvalue = int64(0)
	}

	obj.Fields = append(obj.Fields, *fld)
	if _, exists := obj.FieldTable[name]; !exists {
		obj.FieldTable[name] = fld
	}
}
