/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"vesper/globals"
	"vesper/trace"
)

const versionString = "1.0.0"

// vmGlobals is the CLI's own thin wrapper around the process-wide
// globals.Globals singleton, adding exitNow: a latch set by any flag
// (-version, -help, -?) whose job is done once it's
// printed something, so HandleCli's caller knows not to go on to load a
// main class.
type vmGlobals struct {
	base    *globals.Globals
	exitNow bool

	MainClassName string
	ProgArgs      []string
}

// Global is the single CLI-wide vmGlobals instance main.go and HandleCli
// share — mirrors the teacher's bare package-level Global so both the
// flag-parsing tests and main() read/write the same value.
var Global vmGlobals

// initGlobals creates the process-wide globals.Globals (argv[0]-seeded,
// as globals.InitGlobals wants) and wraps it for CLI use.
func initGlobals(progName string) vmGlobals {
	return vmGlobals{base: globals.InitGlobals(progName)}
}

// SetLogLevel forwards to the trace package, kept as a bare package
// function (not a method) because cli_test.go calls it that way.
func SetLogLevel(level trace.Level) error {
	return trace.SetLogLevel(level)
}

// cliOption is one recognized flag: nargs is how many arguments beyond
// the flag word itself it consumes, and action performs the effect.
// LoadOptionsTable builds the table; HandleCli calls it only when no
// table has been loaded yet, so a test may load it directly first.
type cliOption struct {
	nargs  int
	action func(g *vmGlobals, args []string) error
}

var optionsTable map[string]cliOption

// LoadOptionsTable populates optionsTable with every flag HandleCli
// recognizes. g is not used: each action acts on the *vmGlobals that
// HandleCli passes it, which is always &Global.
func LoadOptionsTable(g vmGlobals) error {
	optionsTable = map[string]cliOption{
		"-cp": {nargs: 1, action: func(g *vmGlobals, args []string) error {
			g.base.Classpath = strings.Split(args[0], string(os.PathListSeparator))
			return nil
		}},
		"-classpath": {nargs: 1, action: func(g *vmGlobals, args []string) error {
			g.base.Classpath = strings.Split(args[0], string(os.PathListSeparator))
			return nil
		}},
		"-jar": {nargs: 1, action: func(g *vmGlobals, args []string) error {
			g.base.StartingJar = args[0]
			return nil
		}},
		"-verbose": {nargs: 0, action: func(g *vmGlobals, args []string) error {
			g.base.TraceClass = true
			g.base.TraceVerbose = true
			return nil
		}},
		"-strictJDK": {nargs: 0, action: func(g *vmGlobals, args []string) error {
			g.base.StrictJDK = true
			return nil
		}},
		"-Xss": {nargs: 1, action: func(g *vmGlobals, args []string) error {
			size, err := strconv.Atoi(strings.TrimSuffix(args[0], "k"))
			if err != nil {
				return fmt.Errorf("invalid -Xss value: %s", args[0])
			}
			g.base.MaxJavaStackSize = size
			return nil
		}},
		"-showversion": {nargs: 0, action: func(g *vmGlobals, args []string) error {
			showVersion()
			return nil
		}},
		"-version": {nargs: 0, action: func(g *vmGlobals, args []string) error {
			showVersion()
			g.exitNow = true
			return nil
		}},
		"-help": {nargs: 0, action: func(g *vmGlobals, args []string) error {
			showUsage()
			g.exitNow = true
			return nil
		}},
		"-?": {nargs: 0, action: func(g *vmGlobals, args []string) error {
			showUsage()
			g.exitNow = true
			return nil
		}},
	}
	return nil
}

// HandleCli parses args (argv[0] is the program name, as os.Args itself
// is shaped) against optionsTable, in order, stopping at the first
// argument that isn't a recognized flag — that one and everything after
// it is the main class (or, with -jar, the application's own arguments)
// and is left in ProgArgs for main() to pick up. Mirrors java's own
// "options then classname then program args" CLI grammar.
func HandleCli(args []string) {
	if optionsTable == nil {
		_ = LoadOptionsTable(Global)
	}

	i := 1
	for i < len(args) {
		opt, ok := optionsTable[args[i]]
		if !ok {
			break
		}
		consumed := args[i+1 : minInt(i+1+opt.nargs, len(args))]
		if len(consumed) < opt.nargs {
			fmt.Fprintf(os.Stderr, "error: %s requires an argument\n", args[i])
			Global.exitNow = true
			return
		}
		if err := opt.action(&Global, consumed); err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
			Global.exitNow = true
			return
		}
		i += 1 + opt.nargs
		if Global.exitNow {
			return
		}
	}

	if i < len(args) {
		Global.MainClassName = args[i]
		Global.ProgArgs = args[i+1:]
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func showUsage() {
	fmt.Fprintln(os.Stderr, "Usage: vesper [options] class [args...]")
	fmt.Fprintln(os.Stderr, "           (to run a class)")
	fmt.Fprintln(os.Stderr, "   or  vesper [options] -jar jarfile [args...]")
	fmt.Fprintln(os.Stderr, "           (to run a jar file)")
	fmt.Fprintln(os.Stderr, "where options include:")
	fmt.Fprintln(os.Stderr, "    -cp -classpath <directories and zip/jar files separated by "+string(os.PathListSeparator)+">")
	fmt.Fprintln(os.Stderr, "    -jar <jarfile>")
	fmt.Fprintln(os.Stderr, "    -verbose        enable class-loading trace output")
	fmt.Fprintln(os.Stderr, "    -strictJDK      reject behavior the JDK itself forbids but many VMs tolerate")
	fmt.Fprintln(os.Stderr, "    -Xss <size>     set the thread stack size")
	fmt.Fprintln(os.Stderr, "    -showversion    print version information and continue")
	fmt.Fprintln(os.Stderr, "    -version        print version information and exit")
	fmt.Fprintln(os.Stderr, "    -help -?        print this message and exit")
}

func showVersion() {
	fmt.Fprintf(os.Stderr, "Vesper VM v.%s\n", versionString)
}

func showCopyright() {
	fmt.Printf("Vesper VM v.%s\n", versionString)
	fmt.Println("Copyright (c) 2026 by the Vesper authors. All rights reserved.")
	fmt.Println("Licensed under the Mozilla Public License 2.0 (MPL 2.0)")
}

// getEnvArgs collects the three environment variables a real JVM accepts
// CLI-equivalent arguments through, in the order the JDK documents them
// (JAVA_TOOL_OPTIONS, then _JAVA_OPTIONS, then JDK_JAVA_OPTIONS), joining
// whichever are actually set with a single space.
func getEnvArgs() string {
	var parts []string
	for _, name := range []string{"JAVA_TOOL_OPTIONS", "_JAVA_OPTIONS", "JDK_JAVA_OPTIONS"} {
		if v := os.Getenv(name); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
