package main

import (
	"bytes"
	"fmt"
	"go/build"
	"go/format"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"text/template"

	"golang.org/x/mod/modfile"
)

// options controls a generator run.
type options struct {
	// root is the module root that is scanned for constructors.
	root string

	// out is the file where the generated runner is written.
	out string

	// pkgName is the package name of the generated file.
	pkgName string

	// ctx selects the GOOS, GOARCH and build tags used for evaluating
	// cfg expressions and file build constraints.
	ctx build.Context
}

type sequenceEntry struct {
	Name  string
	Order uint64
	Fn    string
}

type importSpec struct {
	Alias string
	Path  string
}

var runnerTemplate = template.Must(template.New("runner").Parse(`// Code generated by runnergen. DO NOT EDIT.

package {{.Package}}

import (
{{- range .Imports}}
	{{if .Alias}}{{.Alias}} {{end}}"{{.Path}}"
{{- end}}
)

var initSequence = module.Sequence{
{{- range .Init}}
	{Name: "{{.Name}}", Order: {{.Order}}, Fn: {{.Fn}}},
{{- end}}
}

var rewireSequence = module.Sequence{
{{- range .Rewire}}
	{Name: "{{.Name}}", Order: {{.Order}}, Fn: {{.Fn}}},
{{- end}}
}
`))

// readModulePath returns the module path declared by the go.mod file in root.
func readModulePath(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", err
	}

	modulePath := modfile.ModulePath(data)
	if modulePath == "" {
		return "", fmt.Errorf("%s: missing module directive", filepath.Join(root, "go.mod"))
	}

	return modulePath, nil
}

// generate scans opts.root and returns the formatted runner source.
func generate(opts *options) ([]byte, error) {
	modulePath, err := readModulePath(opts.root)
	if err != nil {
		return nil, err
	}

	goFiles, err := collectGoFiles(opts.root)
	if err != nil {
		return nil, err
	}

	ctors, err := findConstructors(&opts.ctx, opts.root, modulePath, goFiles)
	if err != nil {
		return nil, err
	}

	if ctors, err = filterByCfg(&opts.ctx, ctors); err != nil {
		return nil, err
	}

	version, err := readContractVersion(opts.root)
	if err != nil {
		return nil, err
	}

	if err = checkRequires(ctors, version); err != nil {
		return nil, err
	}

	return render(opts.pkgName, modulePath, ctors)
}

// render emits the runner source for ctors.
func render(pkgName, modulePath string, ctors []*constructor) ([]byte, error) {
	var initCtors, rewireCtors []*constructor
	for _, ctor := range ctors {
		if ctor.phase == phaseRewire {
			rewireCtors = append(rewireCtors, ctor)
		} else {
			initCtors = append(initCtors, ctor)
		}
	}

	sortByOrder(initCtors)
	sortByOrder(rewireCtors)

	moduleImport := modulePath + "/kernel/module"
	aliases := assignAliases(moduleImport, ctors)

	imports := []importSpec{{Path: moduleImport}}
	for importPath, alias := range aliases {
		if importPath == moduleImport {
			continue
		}

		spec := importSpec{Path: importPath}
		if alias != path.Base(importPath) {
			spec.Alias = alias
		}
		imports = append(imports, spec)
	}
	sort.Slice(imports, func(i, j int) bool { return imports[i].Path < imports[j].Path })

	toEntries := func(list []*constructor) []sequenceEntry {
		entries := make([]sequenceEntry, 0, len(list))
		for _, ctor := range list {
			entries = append(entries, sequenceEntry{
				Name:  ctor.qualifiedName(),
				Order: ctor.order,
				Fn:    aliases[ctor.importPath] + "." + ctor.fn,
			})
		}
		return entries
	}

	var buf bytes.Buffer
	err := runnerTemplate.Execute(&buf, map[string]interface{}{
		"Package": pkgName,
		"Imports": imports,
		"Init":    toEntries(initCtors),
		"Rewire":  toEntries(rewireCtors),
	})
	if err != nil {
		return nil, err
	}

	return format.Source(buf.Bytes())
}

// assignAliases maps each constructor import path to a unique package
// identifier. The name "module" is reserved for the runner package.
func assignAliases(moduleImport string, ctors []*constructor) map[string]string {
	var (
		aliases = make(map[string]string)
		taken   = map[string]string{"module": moduleImport}
	)

	for _, ctor := range ctors {
		if _, seen := aliases[ctor.importPath]; seen {
			continue
		}

		alias := ctor.pkgName
		for suffix := 2; ; suffix++ {
			if owner, used := taken[alias]; !used || owner == ctor.importPath {
				break
			}
			alias = ctor.pkgName + strconv.Itoa(suffix)
		}

		taken[alias] = ctor.importPath
		aliases[ctor.importPath] = alias
	}

	return aliases
}

// writeIfChanged writes data to file unless the file already has the same
// contents. It returns true if the file was written.
func writeIfChanged(file string, data []byte) (bool, error) {
	if existing, err := os.ReadFile(file); err == nil && bytes.Equal(existing, data) {
		return false, nil
	}

	if err := os.WriteFile(file, data, 0644); err != nil {
		return false, err
	}

	return true, nil
}
