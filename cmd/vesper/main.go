/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Command vesper is the VM's command-line entry point: parse options,
// locate the application's main class (by name or, with -jar, by the
// jar's manifest), start the interpreter, and run it to completion.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vesper/classloader"
	"vesper/jvm"
	"vesper/shutdown"
	"vesper/trace"
)

func main() {
	Global = initGlobals(os.Args[0])
	if err := LoadOptionsTable(Global); err != nil {
		fmt.Fprintln(os.Stderr, err)
		shutdown.Exit(shutdown.USAGE_ERROR)
	}

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		shutdown.Exit(shutdown.USAGE_ERROR)
	}
}

// newRootCommand wraps run in a cobra command so vesper gets cobra's own
// command-tree conventions (completion, -h/--help fallback, a place to
// hang future subcommands like "vesper version") while flag parsing
// itself stays with HandleCli: cobra's pflag can't express "-cp" as a
// single-dash flag consuming exactly one following bare word, the
// grammar every real `java` invocation already uses.
func newRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "vesper [options] class [args...]",
		Short:              "Vesper VM - a Java virtual machine",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args)
		},
	}
}

// run parses argv (plus whatever JAVA_TOOL_OPTIONS/_JAVA_OPTIONS/
// JDK_JAVA_OPTIONS contribute), resolves the application's main class,
// and drives it to completion on a freshly started VM.
func run(rawArgs []string) error {
	full := append([]string{os.Args[0]}, rawArgs...)
	if env := getEnvArgs(); env != "" {
		full = append(full, strings.Fields(env)...)
	}

	HandleCli(full)
	if Global.exitNow {
		return nil
	}
	if Global.MainClassName == "" && Global.base.StartingJar == "" {
		showUsage()
		shutdown.Exit(shutdown.USAGE_ERROR)
	}

	classloader.AppCL = classloader.Classloader{Name: "application", Archives: make(map[string]*classloader.Archive)}
	classloader.BootstrapCL = classloader.Classloader{Name: "bootstrap", Archives: make(map[string]*classloader.Archive)}

	vm, err := jvm.NewVM(1<<24, 5*time.Millisecond)
	if err != nil {
		return fmt.Errorf("could not start VM: %w", err)
	}

	mainClass := Global.MainClassName
	if mainClass == "" {
		mainClass, err = classloader.GetMainClassFromJar(classloader.AppCL, Global.base.StartingJar)
		if err != nil {
			return fmt.Errorf("could not find a Main-Class in %s: %w", Global.base.StartingJar, err)
		}
	}

	if err := vm.RunMain(mainClass, Global.ProgArgs); err != nil {
		trace.Error(err.Error())
		shutdown.Exit(shutdown.APP_EXCEPTION)
	}
	return nil
}
