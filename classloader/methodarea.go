/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

import (
	"fmt"
	"sync"

	"github.com/dolthub/swiss"
)

// Classes is the method area: every class the VM has loaded, keyed by its
// fully-qualified internal name. Backed by a swiss-table map rather than
// a plain Go map — the method area only ever grows and is read far more
// often than it's written, the case swiss's open-addressing layout is
// built for. Every access still goes through ClassesLock; MethAreaFetch
// also still hands back a pointer to a per-call copy so that mutations
// through k.Data (itself a pointer) stay visible to every other holder.
var Classes *swiss.Map[string, Klass]

// MTable is the JVM-wide method table (JACOBIN-575): every method body,
// Java or native, keyed by class + "." + name + descriptor (see mtableKey). Splitting it out from
// Classes means a class's method bodies can be shared/cached independent
// of the class descriptor's own lifecycle.
var mTable *swiss.Map[string, MTentry]
var mTableLock = sync.RWMutex{}

// InitMethodArea creates empty Classes and MTable maps. Called once at VM
// startup by classloader.Init.
func InitMethodArea() {
	ClassesLock.Lock()
	Classes = swiss.NewMap[string, Klass](1024)
	ClassesLock.Unlock()

	mTableLock.Lock()
	mTable = swiss.NewMap[string, MTentry](1024)
	mTableLock.Unlock()
}

// MethAreaFetch returns a pointer to a copy of the named class's Klass
// entry, or nil if it isn't present. Mutations the caller makes through
// k.Data (a pointer) remain visible to every other holder of the class,
// even though k itself is a private copy.
func MethAreaFetch(name string) *Klass {
	ClassesLock.RLock()
	defer ClassesLock.RUnlock()
	if Classes == nil {
		return nil
	}
	k, present := Classes.Get(name)
	if !present {
		return nil
	}
	return &k
}

// MethAreaInsert stores (a copy of) *k under name, overwriting any
// previous entry.
func MethAreaInsert(name string, k *Klass) {
	ClassesLock.Lock()
	defer ClassesLock.Unlock()
	if Classes == nil {
		Classes = swiss.NewMap[string, Klass](1024)
	}
	Classes.Put(name, *k)
}

// GetCountOfMethodAreaClasses returns the number of classes currently
// resident in the method area.
func GetCountOfMethodAreaClasses() int {
	ClassesLock.RLock()
	defer ClassesLock.RUnlock()
	if Classes == nil {
		return 0
	}
	return Classes.Count()
}

func mtableKey(className, methodName, methodDesc string) string {
	return className + "." + methodName + methodDesc
}

// MTableInsert records one method's executable form in the JVM-wide
// method table.
func MTableInsert(className, methodName, methodDesc string, entry MTentry) {
	mTableLock.Lock()
	defer mTableLock.Unlock()
	if mTable == nil {
		mTable = swiss.NewMap[string, MTentry](1024)
	}
	mTable.Put(mtableKey(className, methodName, methodDesc), entry)
}

// FetchMethodAndCP looks up a method's executable entry (Java bytecode or
// native) by class, name, and descriptor.
func FetchMethodAndCP(className, methodName, methodDesc string) (MTentry, error) {
	mTableLock.RLock()
	defer mTableLock.RUnlock()
	if mTable == nil {
		return MTentry{}, fmt.Errorf("method not found: %s.%s%s", className, methodName, methodDesc)
	}
	entry, present := mTable.Get(mtableKey(className, methodName, methodDesc))
	if !present {
		return MTentry{}, fmt.Errorf("method not found: %s.%s%s", className, methodName, methodDesc)
	}
	return entry, nil
}
