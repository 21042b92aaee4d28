package main

import (
	"fmt"
	"go/ast"
	"go/build"
	"go/build/constraint"
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

// defaultRequires is applied to constructors without a requires argument.
const defaultRequires = ">=0.0.0"

// contractVersionFile is the file (relative to the module root) that defines
// the boot contract version constant.
var contractVersionFile = filepath.Join("kernel", "boot", "contract.go")

// cfgEnabled evaluates the cfg expression of a constructor against the build
// context. Constructors without a cfg expression are always enabled.
func cfgEnabled(ctx *build.Context, cfg string) (bool, error) {
	if cfg == "" {
		return true, nil
	}

	expr, err := constraint.Parse("//go:build " + cfg)
	if err != nil {
		return false, fmt.Errorf("invalid cfg expression %q: %s", cfg, err)
	}

	return expr.Eval(func(tag string) bool { return matchTag(ctx, tag) }), nil
}

// matchTag reports whether tag is satisfied by ctx.
func matchTag(ctx *build.Context, tag string) bool {
	switch tag {
	case ctx.GOOS, ctx.GOARCH, ctx.Compiler:
		return true
	}

	for _, buildTag := range ctx.BuildTags {
		if buildTag == tag {
			return true
		}
	}

	return false
}

// readContractVersion extracts the value of the ContractVersion constant
// declared by the boot package.
func readContractVersion(root string) (*semver.Version, error) {
	file := filepath.Join(root, contractVersionFile)

	f, err := parser.ParseFile(token.NewFileSet(), file, nil, 0)
	if err != nil {
		return nil, err
	}

	for _, decl := range f.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.CONST {
			continue
		}

		for _, spec := range genDecl.Specs {
			valueSpec := spec.(*ast.ValueSpec)
			for i, name := range valueSpec.Names {
				if name.Name != "ContractVersion" || i >= len(valueSpec.Values) {
					continue
				}

				lit, ok := valueSpec.Values[i].(*ast.BasicLit)
				if !ok || lit.Kind != token.STRING {
					return nil, fmt.Errorf("%s: ContractVersion must be a string literal", file)
				}

				value, err := strconv.Unquote(lit.Value)
				if err != nil {
					return nil, err
				}

				return semver.NewVersion(value)
			}
		}
	}

	return nil, fmt.Errorf("%s: could not locate the ContractVersion constant", file)
}

// checkRequires verifies that version satisfies the requires constraint of
// every constructor.
func checkRequires(ctors []*constructor, version *semver.Version) error {
	for _, ctor := range ctors {
		requires := ctor.requires
		if requires == "" {
			requires = defaultRequires
		}

		c, err := semver.NewConstraint(requires)
		if err != nil {
			return fmt.Errorf("%s: %s: invalid requires constraint %q: %s", ctor.pos, ctor.qualifiedName(), requires, err)
		}

		if !c.Check(version) {
			return fmt.Errorf("%s: %s requires boot contract %s; have %s", ctor.pos, ctor.qualifiedName(), requires, version)
		}
	}

	return nil
}

// filterByCfg returns the constructors whose cfg expression holds for ctx.
func filterByCfg(ctx *build.Context, ctors []*constructor) ([]*constructor, error) {
	var enabled []*constructor
	for _, ctor := range ctors {
		ok, err := cfgEnabled(ctx, ctor.cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %s", ctor.pos, err)
		}

		if ok {
			enabled = append(enabled, ctor)
		}
	}

	return enabled, nil
}
