package main

import (
	"fmt"
	"go/ast"
	"go/build"
	"go/parser"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

const directivePrefix = "//kernel:constructor"

type phase string

const (
	phaseInit   phase = "init"
	phaseRewire phase = "rewire"
)

// constructor describes a function annotated with a constructor directive.
type constructor struct {
	// importPath and pkgName identify the package that defines fn.
	importPath string
	pkgName    string
	fn         string

	order    uint64
	phase    phase
	cfg      string
	requires string

	// pos is used for error reporting.
	pos string
}

// qualifiedName returns the manifest path of the constructor, i.e.
// importPath.Func.
func (c *constructor) qualifiedName() string {
	return c.importPath + "." + c.fn
}

// skipDir returns true for directories that never contain kernel modules.
func skipDir(name string) bool {
	return name != "." && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" || name == "tools")
}

// collectGoFiles returns the non-test Go files under root in lexical order.
func collectGoFiles(root string) ([]string, error) {
	var goFiles []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go") {
			goFiles = append(goFiles, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return goFiles, nil
}

// findConstructors parses goFiles in parallel and returns the constructors
// they declare in file order. Files excluded by ctx (build tags or file name
// suffixes) are ignored.
func findConstructors(ctx *build.Context, root, modulePath string, goFiles []string) ([]*constructor, error) {
	perFile := make([][]*constructor, len(goFiles))

	var g errgroup.Group
	g.SetLimit(8)
	for i, goFile := range goFiles {
		i, goFile := i, goFile
		g.Go(func() error {
			ctors, err := parseFile(ctx, root, modulePath, goFile)
			perFile[i] = ctors
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ctors []*constructor
	for _, fileCtors := range perFile {
		ctors = append(ctors, fileCtors...)
	}

	return ctors, nil
}

func parseFile(ctx *build.Context, root, modulePath, goFile string) ([]*constructor, error) {
	if match, err := ctx.MatchFile(filepath.Dir(goFile), filepath.Base(goFile)); err != nil || !match {
		return nil, err
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, goFile, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("%s: %s", goFile, err)
	}

	relDir, err := filepath.Rel(root, filepath.Dir(goFile))
	if err != nil {
		return nil, err
	}
	importPath := path.Join(modulePath, filepath.ToSlash(relDir))

	var ctors []*constructor
	for _, decl := range f.Decls {
		fnDecl, ok := decl.(*ast.FuncDecl)
		if !ok || fnDecl.Doc == nil {
			continue
		}

		for _, comment := range fnDecl.Doc.List {
			if comment.Text != directivePrefix && !strings.HasPrefix(comment.Text, directivePrefix+" ") {
				continue
			}

			pos := fset.Position(comment.Pos()).String()
			ctor, err := parseDirective(comment.Text)
			if err != nil {
				return nil, fmt.Errorf("%s: %s", pos, err)
			}

			if err = validateSignature(f, fnDecl); err != nil {
				return nil, fmt.Errorf("%s: %s.%s: %s", pos, importPath, fnDecl.Name.Name, err)
			}

			ctor.importPath = importPath
			ctor.pkgName = f.Name.Name
			ctor.fn = fnDecl.Name.Name
			ctor.pos = pos
			ctors = append(ctors, ctor)
		}
	}

	return ctors, nil
}

// parseDirective parses the key=value arguments of a constructor directive.
// Values may be quoted with double quotes.
func parseDirective(text string) (*constructor, error) {
	ctor := &constructor{phase: phaseInit}

	args, err := splitArgs(strings.TrimPrefix(text, directivePrefix))
	if err != nil {
		return nil, err
	}

	var haveOrder bool
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("malformed directive argument %q; expected key=value", arg)
		}

		switch key {
		case "order":
			if ctor.order, err = strconv.ParseUint(value, 10, 64); err != nil {
				return nil, fmt.Errorf("invalid order %q", value)
			}
			haveOrder = true
		case "phase":
			switch phase(value) {
			case phaseInit, phaseRewire:
				ctor.phase = phase(value)
			default:
				return nil, fmt.Errorf("unknown phase %q", value)
			}
		case "cfg":
			ctor.cfg = value
		case "requires":
			ctor.requires = value
		default:
			return nil, fmt.Errorf("unknown directive argument %q", key)
		}
	}

	if !haveOrder {
		return nil, fmt.Errorf("missing order argument")
	}

	return ctor, nil
}

// splitArgs splits s on whitespace while keeping double-quoted values
// (which may contain spaces) intact. Quotes are removed from the result.
func splitArgs(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		pending bool
	)

	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			pending = true
		case (r == ' ' || r == '\t') && !inQuote:
			if pending {
				args = append(args, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}

	if inQuote {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	if pending {
		args = append(args, cur.String())
	}

	return args, nil
}

// validateSignature ensures that fnDecl is an exported, package-level
// func(*boot.Contract) with no results.
func validateSignature(f *ast.File, fnDecl *ast.FuncDecl) error {
	switch {
	case fnDecl.Recv != nil:
		return fmt.Errorf("constructors cannot be methods")
	case !fnDecl.Name.IsExported():
		return fmt.Errorf("constructors must be exported")
	case fnDecl.Type.TypeParams != nil:
		return fmt.Errorf("constructors cannot be generic")
	case fnDecl.Type.Results != nil && len(fnDecl.Type.Results.List) != 0:
		return fmt.Errorf("constructors cannot return values")
	}

	params := fnDecl.Type.Params.List
	if len(params) != 1 || len(params[0].Names) > 1 {
		return fmt.Errorf("constructors must accept a single *boot.Contract argument")
	}

	star, ok := params[0].Type.(*ast.StarExpr)
	if !ok {
		return fmt.Errorf("constructors must accept a single *boot.Contract argument")
	}

	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Contract" {
		return fmt.Errorf("constructors must accept a single *boot.Contract argument")
	}

	pkgIdent, ok := sel.X.(*ast.Ident)
	if !ok {
		return fmt.Errorf("constructors must accept a single *boot.Contract argument")
	}

	if importPath := importPathFor(f, pkgIdent.Name); importPath != bootPkgSuffix && !strings.HasSuffix(importPath, "/"+bootPkgSuffix) {
		return fmt.Errorf("constructors must accept a single *boot.Contract argument")
	}

	return nil
}

// bootPkgSuffix is the import path suffix of the package defining Contract.
const bootPkgSuffix = "kernel/boot"

// importPathFor returns the import path bound to name in f or an empty
// string if name does not refer to an import.
func importPathFor(f *ast.File, name string) string {
	for _, imp := range f.Imports {
		importPath, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}

		localName := path.Base(importPath)
		if imp.Name != nil {
			localName = imp.Name.Name
		}

		if localName == name {
			return importPath
		}
	}

	return ""
}

// sortByOrder stable-sorts ctors by order so that constructors sharing an
// order keep their discovery order.
func sortByOrder(ctors []*constructor) {
	sort.SliceStable(ctors, func(i, j int) bool {
		return ctors[i].order < ctors[j].order
	})
}
