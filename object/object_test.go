/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package object

import (
	"path/filepath"
	"testing"
)

func TestObjectToString1(t *testing.T) {
	obj := MakeEmptyObject()
	klassType := filepath.FromSlash("java/lang/madeUpClass")
	obj.Klass = &klassType

	myFloatField := Field{
		Ftype:  "F",
		Fvalue: 1.0,
	}
	obj.FieldTable["myFloat"] = &myFloatField

	myDoubleField := Field{
		Ftype:  "D",
		Fvalue: 2.0,
	}
	obj.FieldTable["myDouble"] = &myDoubleField

	myIntField := Field{
		Ftype:  "I",
		Fvalue: 42,
	}
	obj.FieldTable["myInt"] = &myIntField

	myLongField := Field{
		Ftype:  "J",
		Fvalue: 42,
	}
	obj.FieldTable["myLong"] = &myLongField

	myShortField := Field{
		Ftype:  "S",
		Fvalue: 42,
	}
	obj.FieldTable["myShort"] = &myShortField

	myByteField := Field{
		Ftype:  "B",
		Fvalue: 0x61,
	}
	obj.FieldTable["myByte"] = &myByteField

	myStaticTrueField := Field{
		Ftype:  "XZ",
		Fvalue: true,
	}
	obj.FieldTable["myStaticTrue"] = &myStaticTrueField

	myFalseField := Field{
		Ftype:  "Z",
		Fvalue: false,
	}
	obj.FieldTable["myFalse"] = &myFalseField

	myCharField := Field{
		Ftype:  "C",
		Fvalue: 'C',
	}
	obj.FieldTable["myChar"] = &myCharField

	myStringField := Field{
		Ftype:  "Ljava/lang/String;",
		Fvalue: "Hello there!",
	}
	obj.FieldTable["myString"] = &myStringField

	str := obj.ToString()
	if len(str) == 0 {
		t.Errorf("empty string for object.ToString()")
	} else {
		t.Log(str)
	}
}

func TestObjectToString2(t *testing.T) {
	literal := "This is a compact string from a Go string"
	csObj := CreateCompactStringFromGoString(&literal)
	retStr := csObj.ToString()
	if len(retStr) == 0 {
		t.Errorf("empty string for object.ToString()")
	} else {
		t.Log(retStr)
	}

	// Create a custom object.
	obj := MakeEmptyObject()
	klassType := filepath.FromSlash("java/lang/madeUpClass")
	obj.Klass = &klassType

	// Now, dump the same string as a byte array.
	csObj.Klass = &klassType
	retStr = csObj.ToString()
	if len(retStr) == 0 {
		t.Errorf("empty string for object.ToString()")
	} else {
		t.Log(retStr)
	}

	myFloatField := Field{
		Ftype:  "F",
		Fvalue: 1.0,
	}
	obj.Fields = append(obj.Fields, myFloatField)
	t.Log(obj.ToString())

	myDoubleField := Field{
		Ftype:  "D",
		Fvalue: 2.0,
	}
	obj.Fields[0] = myDoubleField
	t.Log(obj.ToString())

	myIntField := Field{
		Ftype:  "I",
		Fvalue: 42,
	}
	obj.Fields[0] = myIntField
	t.Log(obj.ToString())

	myLongField := Field{
		Ftype:  "J",
		Fvalue: 42,
	}
	obj.Fields[0] = myLongField
	t.Log(obj.ToString())

	myShortField := Field{
		Ftype:  "S",
		Fvalue: 42,
	}
	obj.Fields[0] = myShortField
	t.Log(obj.ToString())

	myByteField := Field{
		Ftype:  "B",
		Fvalue: 0x61,
	}
	obj.Fields[0] = myByteField
	t.Log(obj.ToString())

	myStaticTrueField := Field{
		Ftype:  "XZ",
		Fvalue: true,
	}
	obj.Fields[0] = myStaticTrueField
	t.Log(obj.ToString())

	myFalseField := Field{
		Ftype:  "Z",
		Fvalue: false,
	}
	obj.Fields[0] = myFalseField
	t.Log(obj.ToString())

	myCharField := Field{
		Ftype:  "C",
		Fvalue: 'C',
	}
	obj.Fields[0] = myCharField
	t.Log(obj.ToString())
}

// IdentityHash must be stable across repeated calls on the same object,
// and distinct objects must (overwhelmingly, not by any correctness
// guarantee) get distinct hashes — the default Object.hashCode() contract.
func TestIdentityHashStableAndDistinct(t *testing.T) {
	a := NewObject("java/lang/Object")
	b := NewObject("java/lang/Object")

	h1 := a.IdentityHash()
	h2 := a.IdentityHash()
	if h1 != h2 {
		t.Errorf("IdentityHash() not stable across calls: %d then %d", h1, h2)
	}
	if a.IdentityHash() == b.IdentityHash() {
		t.Errorf("two distinct objects unexpectedly share an identity hash")
	}
}

// A freshly built MarkWord must report an un-inflated monitor: nothing
// has locked the object yet, so Inflated must be false until
// vesper/monitor's lazy-allocate path flips it.
func TestMarkWordStartsUninflated(t *testing.T) {
	o := NewObject("java/lang/Object")
	if o.Mark.Inflated {
		t.Error("a freshly created object reports an already-inflated monitor")
	}
	if o.Mark.Hash != 0 {
		t.Error("a freshly created object already has an identity hash computed")
	}
}

func TestNewObjectSetsKlassAndKlassName(t *testing.T) {
	o := NewObject("java/lang/String")
	if o.Klass == nil || *o.Klass != "java/lang/String" {
		t.Errorf("expected Klass java/lang/String, got %v", o.Klass)
	}
	if o.FieldTable == nil {
		t.Error("NewObject did not initialize FieldTable")
	}
}

// A Handle round-trips through Heap.Alloc/Get to the same object, and
// Handle 0 (the null reference) is never assigned to a real allocation.
func TestHeapAllocHandleRoundTrip(t *testing.T) {
	h, err := NewHeap(16, 4)
	if err != nil {
		t.Fatalf("NewHeap failed: %v", err)
	}
	defer h.Close()

	o := NewObject("java/lang/Object")
	handle, err := h.Alloc(o, false)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if handle == 0 {
		t.Fatal("Alloc returned the reserved null handle")
	}
	if got := h.Get(handle); got != o {
		t.Errorf("Get(%d) returned a different object than was allocated", handle)
	}
}
