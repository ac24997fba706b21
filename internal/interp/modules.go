package interp

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"ghcopilot/internal/logging"
)

// EntryShape is the declared shape of a module's New().Main entry point,
// read from source so that finding it never runs module code.
type EntryShape int

const (
	EntryMissing     EntryShape = iota // no New function or no Main method
	EntryPlain                         // Main(query, catalogPath, credential, outputPath string) string
	EntryWithError                     // Main(query, catalogPath, credential, outputPath string) (string, error)
	EntryUnsupported                   // Main with any other signature
)

// Module is a translator module loaded into the interpreter.
type Module struct {
	Name       string
	SearchPath string   // search path it was found under
	Files      []string // source files, in evaluation order

	Entry          EntryShape
	EntrySignature string // Main's declared signature, e.g. "func(query string) string"
}

// moduleSource is a module merged into a single main-package source.
type moduleSource struct {
	src       string
	entry     EntryShape
	signature string
}

// Import resolves module name on the search paths and loads it into the
// interpreter. A module is either <path>/<name>.go or a directory <path>/<name>/
// of .go files, all declaring package <name>. Loaded modules are cached for
// the life of the interpreter; a second Import returns the cached Module.
//
// Module sources are evaluated into the interpreter's main package, so their
// exported symbols are reachable as main.<Symbol>.
func (rt *Runtime) Import(ctx context.Context, name string) (*Module, error) {
	if rt.released.Load() {
		return nil, ErrRuntimeReleased
	}
	if m, ok := rt.host.modules[name]; ok {
		return m, nil
	}
	paths := rt.host.SearchPaths()
	// A failed evaluation may have left part of the module declared; loading
	// it again would only report redeclarations.
	if cause, ok := rt.host.failed[name]; ok {
		return nil, &ModuleResolutionError{Module: name, SearchPaths: paths, Reason: "module failed to load earlier, restart the interpreter to retry", Err: cause}
	}

	if !token.IsIdentifier(name) {
		return nil, &ModuleResolutionError{Module: name, SearchPaths: paths, Reason: "invalid module name"}
	}

	files, searchPath := locate(paths, name)
	if len(files) == 0 {
		return nil, &ModuleResolutionError{Module: name, SearchPaths: paths, Reason: "not found"}
	}

	ms, err := buildSource(name, files, rt.host.importAllowed)
	if err != nil {
		return nil, &ModuleResolutionError{Module: name, SearchPaths: paths, Reason: "invalid source", Err: err}
	}

	if _, err := rt.Eval(ctx, ms.src); err != nil {
		rt.host.failed[name] = err
		return nil, &ModuleResolutionError{Module: name, SearchPaths: paths, Reason: "module was not initialized correctly", Err: err}
	}

	m := &Module{Name: name, SearchPath: searchPath, Files: files, Entry: ms.entry, EntrySignature: ms.signature}
	rt.host.modules[name] = m
	logging.Interp("module %s loaded from %s (%d files)", name, searchPath, len(files))
	return m, nil
}

// locate returns the module's source files from the first search path that has it.
func locate(searchPaths []string, name string) ([]string, string) {
	for _, sp := range searchPaths {
		single := filepath.Join(sp, name+".go")
		if info, err := os.Stat(single); err == nil && info.Mode().IsRegular() {
			return []string{single}, sp
		}

		dir := filepath.Join(sp, name)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		var files []string
		for _, e := range entries {
			n := e.Name()
			if e.IsDir() || !strings.HasSuffix(n, ".go") || strings.HasSuffix(n, "_test.go") {
				continue
			}
			files = append(files, filepath.Join(dir, n))
		}
		if len(files) > 0 {
			sort.Strings(files)
			return files, sp
		}
	}
	return nil, ""
}

// buildSource merges the module's files into a single main-package source.
// Every file must declare package name and import only allowed packages.
func buildSource(name string, files []string, allowed func(string) bool) (moduleSource, error) {
	fset := token.NewFileSet()
	var (
		imports   []string
		seen      = make(map[string]bool)
		forbidden []string
		body      strings.Builder
		hasNew    bool
		mainDecl  *ast.FuncDecl
		mainSrc   []byte
	)

	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return moduleSource{}, err
		}
		f, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
		if err != nil {
			return moduleSource{}, err
		}
		if f.Name.Name != name {
			return moduleSource{}, fmt.Errorf("%s declares package %s, expected %s", filepath.Base(path), f.Name.Name, name)
		}

		for _, imp := range f.Imports {
			p, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				return moduleSource{}, fmt.Errorf("%s: bad import %s", filepath.Base(path), imp.Path.Value)
			}
			if !allowed(p) {
				forbidden = append(forbidden, p)
				continue
			}
			spec := imp.Path.Value
			if imp.Name != nil {
				spec = imp.Name.Name + " " + spec
			}
			if !seen[spec] {
				seen[spec] = true
				imports = append(imports, spec)
			}
		}

		for _, decl := range f.Decls {
			if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.IMPORT {
				continue
			}
			if fd, ok := decl.(*ast.FuncDecl); ok {
				switch {
				case fd.Recv == nil && fd.Name.Name == "New":
					hasNew = true
				case fd.Recv != nil && fd.Name.Name == "Main":
					mainDecl, mainSrc = fd, src
				}
			}
			start := fset.Position(decl.Pos()).Offset
			end := fset.Position(decl.End()).Offset
			body.Write(src[start:end])
			body.WriteString("\n\n")
		}
	}

	if len(forbidden) > 0 {
		return moduleSource{}, fmt.Errorf("forbidden imports: %s", strings.Join(forbidden, ", "))
	}

	ms := moduleSource{entry: EntryMissing}
	if hasNew && mainDecl != nil {
		ms.entry = entryShape(mainDecl.Type)
		start := fset.Position(mainDecl.Type.Params.Pos()).Offset
		end := fset.Position(mainDecl.Type.End()).Offset
		ms.signature = "func" + string(mainSrc[start:end])
	}

	var out strings.Builder
	out.WriteString("package main\n\n")
	if len(imports) > 0 {
		out.WriteString("import (\n")
		for _, spec := range imports {
			out.WriteString("\t" + spec + "\n")
		}
		out.WriteString(")\n\n")
	}
	out.WriteString(body.String())
	ms.src = out.String()
	return ms, nil
}

// entryShape classifies Main's signature. Parameters must be four strings.
func entryShape(ft *ast.FuncType) EntryShape {
	params := fieldTypes(ft.Params)
	if len(params) != 4 {
		return EntryUnsupported
	}
	for _, p := range params {
		if p != "string" {
			return EntryUnsupported
		}
	}
	results := fieldTypes(ft.Results)
	switch {
	case len(results) == 1 && results[0] == "string":
		return EntryPlain
	case len(results) == 2 && results[0] == "string" && results[1] == "error":
		return EntryWithError
	}
	return EntryUnsupported
}

// fieldTypes expands a field list to one type name per value. Types other
// than plain identifiers come back empty.
func fieldTypes(fl *ast.FieldList) []string {
	if fl == nil {
		return nil
	}
	var out []string
	for _, f := range fl.List {
		name := ""
		if id, ok := f.Type.(*ast.Ident); ok {
			name = id.Name
		}
		n := len(f.Names)
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, name)
		}
	}
	return out
}
