/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"vesper/globals"
	"vesper/trace"
)

// jmodMagic is the 4-byte header ("JM" + a two-byte version) every .jmod
// file is prefixed with before its embedded zip payload (JEP 261). Class
// files inside live under the "classes/" directory entry.
var jmodMagic = []byte{'J', 'M', 1, 0}

const jmodClassesPrefix = "classes/"

var (
	jmodIndexMu sync.RWMutex
	jmodIndex   map[string]string // internal class name -> absolute .jmod path

	baseJmodPath  string
	baseJmodBytes []byte
)

// JmodMapInit walks $JAVA_HOME/jmods and indexes every class file found in
// every .jmod, so JmodMapFetch can answer "which jmod holds this class"
// without re-scanning the directory on every lookup.
func JmodMapInit() {
	jmodIndexMu.Lock()
	defer jmodIndexMu.Unlock()

	jmodIndex = make(map[string]string)
	jmodsDir := filepath.Join(globals.GetGlobalRef().JavaHome, "jmods")

	entries, err := os.ReadDir(jmodsDir)
	if err != nil {
		trace.Trace("JmodMapInit: no jmods directory at " + jmodsDir)
		return
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jmod") {
			continue
		}
		path := filepath.Join(jmodsDir, e.Name())
		if e.Name() == "java.base.jmod" {
			baseJmodPath = path
		}
		names, err := listJmodClasses(path)
		if err != nil {
			trace.Error(fmt.Sprintf("JmodMapInit: %s: %v", path, err))
			continue
		}
		for _, name := range names {
			jmodIndex[name] = path
		}
	}
}

// JmodMapFetch returns the .jmod file path containing className, or "" if
// the class was not found in any indexed jmod.
func JmodMapFetch(className string) string {
	jmodIndexMu.RLock()
	defer jmodIndexMu.RUnlock()
	return jmodIndex[className]
}

// GetBaseJmodBytes reads and caches the raw bytes of java.base.jmod.
func GetBaseJmodBytes() {
	if baseJmodPath == "" || baseJmodBytes != nil {
		return
	}
	raw, err := os.ReadFile(baseJmodPath)
	if err != nil {
		trace.Error("GetBaseJmodBytes: " + err.Error())
		return
	}
	baseJmodBytes = raw
}

// WalkBaseJmod loads every class in java.base.jmod into the bootstrap
// classloader.
func WalkBaseJmod() error {
	if baseJmodPath == "" {
		trace.Trace("WalkBaseJmod: java.base.jmod not found, skipping bootstrap preload")
		return nil
	}
	r, err := openJmodZip(baseJmodPath)
	if err != nil {
		return err
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasPrefix(f.Name, jmodClassesPrefix) ||
			!strings.HasSuffix(f.Name, ".class") {
			continue
		}
		className := strings.TrimSuffix(strings.TrimPrefix(f.Name, jmodClassesPrefix), ".class")

		rc, err := f.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		if _, _, err := loadClassFromBytes(BootstrapCL, className, raw); err != nil {
			trace.Error(fmt.Sprintf("WalkBaseJmod: %s: %v", className, err))
		}
	}
	return nil
}

// GetClassBytes reads one class's bytes out of the named .jmod file.
func GetClassBytes(jmodFileName, className string) ([]byte, error) {
	r, err := openJmodZip(jmodFileName)
	if err != nil {
		return nil, err
	}

	entryName := jmodClassesPrefix + className + ".class"
	for _, f := range r.File {
		if f.Name != entryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("GetClassBytes: %w", err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("GetClassBytes: %s not found in %s", className, jmodFileName)
}

// listJmodClasses returns the internal names of every class file in a
// .jmod's classes/ directory, without reading their contents.
func listJmodClasses(jmodPath string) ([]string, error) {
	r, err := openJmodZip(jmodPath)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, f := range r.File {
		if strings.HasPrefix(f.Name, jmodClassesPrefix) && strings.HasSuffix(f.Name, ".class") {
			names = append(names, strings.TrimSuffix(strings.TrimPrefix(f.Name, jmodClassesPrefix), ".class"))
		}
	}
	return names, nil
}

// openJmodZip strips the .jmod magic header and opens the remaining bytes
// as a standard zip archive.
func openJmodZip(path string) (*zip.Reader, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("openJmodZip: %w", err)
	}
	if len(raw) >= len(jmodMagic) && bytes.Equal(raw[:len(jmodMagic)], jmodMagic) {
		raw = raw[len(jmodMagic):]
	}
	return zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
}
