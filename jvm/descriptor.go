/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package jvm

// parseMethodDescriptor walks a method descriptor's parameter section
// (JVMS 4.3.3) and reports, for each parameter in order, how many local
// variable slots it occupies (2 for long/double, 1 for everything else
// including a reference), plus the return type's leading letter ('V' for
// void). It does not resolve class names — only the leading type letter
// of each parameter matters for slot width.
func parseMethodDescriptor(desc string) (paramSlots []int, retType byte) {
	i := 1 // skip leading '('
	for i < len(desc) && desc[i] != ')' {
		isArray := desc[i] == '['
		for desc[i] == '[' {
			i++
		}
		switch desc[i] {
		case 'L':
			for desc[i] != ';' {
				i++
			}
			i++
			paramSlots = append(paramSlots, 1)
		case 'J', 'D':
			i++
			if isArray { // an array of long/double is still a 1-slot reference
				paramSlots = append(paramSlots, 1)
			} else {
				paramSlots = append(paramSlots, 2)
			}
		default:
			i++
			paramSlots = append(paramSlots, 1)
		}
	}
	if i+1 < len(desc) {
		retType = desc[i+1]
	} else {
		retType = 'V'
	}
	return paramSlots, retType
}

// totalSlots sums a parameter slot-width list.
func totalSlots(widths []int) int {
	n := 0
	for _, w := range widths {
		n += w
	}
	return n
}
