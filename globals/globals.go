/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package globals holds the process-wide VM configuration singleton: trace
// flags, the bootstrap classpath, the starting jar (if any), and the
// exception-throwing hook that lets low-level packages (classloader,
// object) raise a Java exception without importing the jvm package and
// creating an import cycle.
package globals

import (
	"sync"
)

// Globals is the VM-wide configuration and bootstrap state.
type Globals struct {
	JavaHome    string
	VesperHome  string
	VesperName  string
	StartingJar string
	Classpath   []string

	TraceClass   bool
	TraceCloadi  bool
	TraceInst    bool
	TraceVerbose bool
	StrictJDK    bool

	MaxJavaStackSize int

	ExitNow bool

	// JvmFrameStackShown/GoStackShown/PanicCauseShown latch the
	// diagnostic dumps emitted on a fatal error so a panic that unwinds
	// through multiple recover() points doesn't print the same report
	// twice.
	JvmFrameStackShown bool
	GoStackShown       bool
	PanicCauseShown    bool
	ErrorGoStack       string

	// FuncThrowException lets classloader/object raise a Java exception
	// once a thread exists to carry it, without importing jvm.
	FuncThrowException func(excClassName string, msg string)
}

var (
	mu      sync.Mutex
	current *Globals

	// LoaderWg lets the class loader's background loading goroutine
	// (LoadFromLoaderChannel) signal completion to whoever started it.
	LoaderWg sync.WaitGroup
)

// TraceClass/TraceCloadi mirror the teacher's package-level
// booleans (globals.TraceClass, globals.TraceCloadi) referenced directly
// by classloader.go; they shadow the struct fields above so existing call
// sites (globals.TraceClass) keep compiling without a GetGlobalRef() call.
var (
	TraceClass  bool
	TraceCloadi bool
)

// InitGlobals creates a fresh Globals, seeded from the supplied program
// name (argv[0]), and installs it as the process-wide instance.
func InitGlobals(progName string) *Globals {
	mu.Lock()
	defer mu.Unlock()
	current = &Globals{
		VesperHome:       progName,
		MaxJavaStackSize: 1 << 20,
	}
	return current
}

// GetGlobalRef returns the process-wide Globals, creating an empty one on
// first use so packages that run in isolation (unit tests) never see nil.
func GetGlobalRef() *Globals {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = &Globals{MaxJavaStackSize: 1 << 20}
	}
	return current
}

// SetTrace toggles both the struct field on the current Globals and the
// package-level mirror variables classloader.go reads directly.
func SetTrace(class, cloadi bool) {
	g := GetGlobalRef()
	g.TraceClass = class
	g.TraceCloadi = cloadi
	TraceClass = class
	TraceCloadi = cloadi
}
