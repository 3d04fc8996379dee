/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package main

import (
	"io"
	"os"
	"strings"
	"testing"

	"vesper/trace"
)

// unset all of the JVM environment variables and make sure
// collecting them results in an empty string
func TestGetJVMenvVariablesWhenAbsent(t *testing.T) {
	os.Unsetenv("JAVA_TOOL_OPTIONS")
	os.Unsetenv("_JAVA_OPTIONS")
	os.Unsetenv("JDK_JAVA_OPTIONS")

	javaEnvVars := getEnvArgs()
	if javaEnvVars != "" {
		t.Error("getting non-existent Java environment options failed")
	}
}

// set two of the JVM environment variables and make sure
// they are fetched correctly and a space is inserted between them
func TestGetJVMenvVariablesWhenTwoArePresent(t *testing.T) {
	os.Unsetenv("JAVA_TOOL_OPTIONS")
	os.Setenv("_JAVA_OPTIONS", "Hello,")
	os.Setenv("JDK_JAVA_OPTIONS", "World!")

	javaEnvVars := getEnvArgs()
	if javaEnvVars != "Hello, World!" {
		t.Error("getting two set Java environment options failed: " + javaEnvVars)
	}

	os.Unsetenv("_JAVA_OPTIONS")
	os.Unsetenv("JDK_JAVA_OPTIONS")
}

// verify the output to stderr when only usage info is requested (i.e., vesper -help)
func TestHandleUsageMessage(t *testing.T) {
	Global = initGlobals(os.Args[0])
	SetLogLevel(trace.WARNING)
	LoadOptionsTable(Global)

	normalStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	args := []string{"vesper", "-help"}
	HandleCli(args)

	w.Close()
	os.Stderr = normalStderr
	out, _ := io.ReadAll(r)

	msg := string(out)
	if !strings.Contains(msg, "Usage:") || !strings.Contains(msg, "where options include") {
		t.Error("vesper -help did not generate the usage message to stderr. msg was: " + msg)
	}
	if !Global.exitNow {
		t.Error("'vesper -help' should have set Global.exitNow to true to signal end of processing")
	}
}

func TestHandleShowVersionMessage(t *testing.T) {
	Global = initGlobals(os.Args[0])
	SetLogLevel(trace.WARNING)
	LoadOptionsTable(Global)

	normalStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	args := []string{"vesper", "-showversion"}
	HandleCli(args)

	w.Close()
	os.Stderr = normalStderr
	out, _ := io.ReadAll(r)

	msg := string(out)
	if !strings.Contains(msg, "Vesper VM v.") {
		t.Error("vesper -showversion did not generate the correct message to stderr. msg was: " + msg)
	}
	if Global.exitNow {
		t.Error("'vesper -showversion' should not set Global.exitNow; execution continues")
	}
}

func TestHandleMainClassAndArgs(t *testing.T) {
	Global = initGlobals(os.Args[0])
	LoadOptionsTable(Global)

	args := []string{"vesper", "-cp", "out", "com.example.Main", "one", "two"}
	HandleCli(args)

	if Global.MainClassName != "com.example.Main" {
		t.Errorf("expected main class com.example.Main, got %q", Global.MainClassName)
	}
	if len(Global.ProgArgs) != 2 || Global.ProgArgs[0] != "one" || Global.ProgArgs[1] != "two" {
		t.Errorf("expected program args [one two], got %v", Global.ProgArgs)
	}
	if len(Global.base.Classpath) != 1 || Global.base.Classpath[0] != "out" {
		t.Errorf("expected classpath [out], got %v", Global.base.Classpath)
	}
}

func TestShowCopyright(t *testing.T) {
	Global = initGlobals(os.Args[0])
	SetLogLevel(trace.WARNING)

	normalStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	showCopyright()

	w.Close()
	os.Stdout = normalStdout
	out, _ := io.ReadAll(r)

	msg := string(out)
	if !strings.Contains(msg, "All rights reserved.") || !strings.Contains(msg, "2026") {
		t.Error("copyright does not contain expected terms: " + msg)
	}
}
