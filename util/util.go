/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package util holds small, dependency-free helpers shared across the
// class loader and interpreter that don't deserve their own package.
package util

import (
	"os"
	"strings"
)

// ConvertToPlatformPathSeparators turns a slash-delimited internal class
// name (java/lang/Object) into a path usable by os.ReadFile on this host.
func ConvertToPlatformPathSeparators(name string) string {
	if os.PathSeparator == '/' {
		return name
	}
	return strings.ReplaceAll(name, "/", string(os.PathSeparator))
}

// ConvertInternalClassNameToUserFormat turns java/lang/Object into
// java.lang.Object, as used in reflection mirrors and exception messages.
func ConvertInternalClassNameToUserFormat(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

// ConvertUserFormatToInternalClassName is the inverse conversion.
func ConvertUserFormatToInternalClassName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// BytesToUint16 reads a big-endian uint16 from a two-byte slice — class
// files are entirely big-endian (spec section 6).
func BytesToUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// BytesToUint32 reads a big-endian uint32 from a four-byte slice.
func BytesToUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
