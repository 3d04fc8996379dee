/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
)

// Archive is a loaded JAR (a zip file with a META-INF/MANIFEST.MF), cached
// so a classloader only opens/reads the zip central directory once no
// matter how many classes get pulled from it over a run.
type Archive struct {
	path       string
	reader     *zip.ReadCloser
	mainClass  string
	entryIndex map[string]*zip.File
}

// JarLoadResult is the outcome of pulling a single .class member out of an
// Archive.
type JarLoadResult struct {
	Success bool
	Data    *[]byte
}

// NewJarFile opens jarFileName and indexes its entries, reading
// META-INF/MANIFEST.MF for a Main-Class header if present.
func NewJarFile(jarFileName string) (*Archive, error) {
	r, err := zip.OpenReader(jarFileName)
	if err != nil {
		return nil, fmt.Errorf("NewJarFile: %w", err)
	}

	a := &Archive{
		path:       jarFileName,
		reader:     r,
		entryIndex: make(map[string]*zip.File, len(r.File)),
	}

	for _, f := range r.File {
		a.entryIndex[f.Name] = f
		if f.Name == "META-INF/MANIFEST.MF" {
			a.mainClass = parseMainClassFromManifest(f)
		}
	}
	return a, nil
}

func parseMainClassFromManifest(f *zip.File) string {
	rc, err := f.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "Main-Class:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Main-Class:"))
		}
	}
	return ""
}

// getMainClass returns the jar's Main-Class manifest header, internalized
// to slash-separated form, or "" if the jar has none.
func (a *Archive) getMainClass() string {
	return strings.ReplaceAll(a.mainClass, ".", "/")
}

// loadClass reads the named .class member (filename may or may not carry
// the .class suffix already) out of the archive.
func (a *Archive) loadClass(filename string) (JarLoadResult, error) {
	name := filename
	if !strings.HasSuffix(name, ".class") {
		name += ".class"
	}

	f, present := a.entryIndex[name]
	if !present {
		return JarLoadResult{Success: false}, nil
	}

	rc, err := f.Open()
	if err != nil {
		return JarLoadResult{Success: false}, fmt.Errorf("loadClass: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return JarLoadResult{Success: false}, fmt.Errorf("loadClass: %w", err)
	}
	return JarLoadResult{Success: true, Data: &raw}, nil
}
