/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package excNames is the fixed table of fully-qualified exception/error
// class names the VM core itself can originate (spec section 7). Other
// packages reference these as plain strings so they never need to import
// the jvm or object packages just to throw.
package excNames

const (
	ClassFormatError               = "java/lang/ClassFormatError"
	ClassNotFoundException         = "java/lang/ClassNotFoundException"
	NoClassDefFoundError           = "java/lang/NoClassDefFoundError"
	ClassCircularityError          = "java/lang/ClassCircularityError"
	IncompatibleClassChangeError   = "java/lang/IncompatibleClassChangeError"
	AbstractMethodError            = "java/lang/AbstractMethodError"
	UnsatisfiedLinkError           = "java/lang/UnsatisfiedLinkError"
	ExceptionInInitializerError    = "java/lang/ExceptionInInitializerError"
	NullPointerException           = "java/lang/NullPointerException"
	ArrayIndexOutOfBoundsException = "java/lang/ArrayIndexOutOfBoundsException"
	NegativeArraySizeException     = "java/lang/NegativeArraySizeException"
	ArrayStoreException            = "java/lang/ArrayStoreException"
	ClassCastException             = "java/lang/ClassCastException"
	ArithmeticException            = "java/lang/ArithmeticException"
	IllegalMonitorStateException   = "java/lang/IllegalMonitorStateException"
	StackOverflowError             = "java/lang/StackOverflowError"
	OutOfMemoryError               = "java/lang/OutOfMemoryError"
	WrongMethodTypeException       = "java/lang/invoke/WrongMethodTypeException"
	IllegalStateException          = "java/lang/IllegalStateException"
	InterruptedException           = "java/lang/InterruptedException"
	LinkageError                   = "java/lang/LinkageError"
	VirtualMachineError            = "java/lang/VirtualMachineError"
	ErrorClass                     = "java/lang/Error"

	IOException                    = "java/io/IOException"
	IndexOutOfBoundsException      = "java/lang/IndexOutOfBoundsException"
	IllegalArgumentException       = "java/lang/IllegalArgumentException"
	StringIndexOutOfBoundsException = "java/lang/StringIndexOutOfBoundsException"
	PatternSyntaxException         = "java/util/regex/PatternSyntaxException"
	ClassNotLoadedException        = "java/lang/ClassNotLoadedException"
	UnsupportedOperationException  = "java/lang/UnsupportedOperationException"
)
