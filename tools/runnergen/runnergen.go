// Command runnergen scans the kernel sources for //kernel:constructor
// directives and generates the ordered init and rewire constructor
// sequences used by kmain.
//
// A directive is placed in the doc comment of an exported
// func(*boot.Contract):
//
//	//kernel:constructor order=10 phase=init cfg=amd64 requires=">=1.0.0, <2.0.0"
//
// Constructors are sorted by order within each phase; constructors sharing
// an order keep the order in which they were discovered. The cfg argument is
// a build constraint expression evaluated against -goos, -goarch and -tags.
// The requires argument is a semver constraint checked against the boot
// contract version.
package main

import (
	"flag"
	"fmt"
	"go/build"
	"os"
	"os/signal"
	"strings"
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[runnergen] error: %s\n", err.Error())
	os.Exit(1)
}

func parseFlags(args []string) (*options, bool, error) {
	var (
		fs      = flag.NewFlagSet("runnergen", flag.ContinueOnError)
		opts    = &options{ctx: build.Default}
		tags    string
		watchFs bool
	)

	fs.StringVar(&opts.root, "root", ".", "module root to scan for constructors")
	fs.StringVar(&opts.out, "out", "kernel/kmain/zz_runner.go", "output file")
	fs.StringVar(&opts.pkgName, "pkg", "kmain", "package name of the generated file")
	fs.StringVar(&opts.ctx.GOOS, "goos", "linux", "GOOS used to evaluate cfg expressions")
	fs.StringVar(&opts.ctx.GOARCH, "goarch", "amd64", "GOARCH used to evaluate cfg expressions")
	fs.StringVar(&tags, "tags", "", "comma-separated list of build tags")
	fs.BoolVar(&watchFs, "watch", false, "regenerate the runner whenever a source file changes")

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	opts.ctx.BuildTags = nil
	for _, tag := range strings.Split(tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			opts.ctx.BuildTags = append(opts.ctx.BuildTags, tag)
		}
	}

	// Evaluate constraints for the target, not the host.
	opts.ctx.CgoEnabled = false

	return opts, watchFs, nil
}

// run generates the runner once and reports whether the output changed.
func run(opts *options) error {
	data, err := generate(opts)
	if err != nil {
		return err
	}

	changed, err := writeIfChanged(opts.out, data)
	if err != nil {
		return err
	}

	if changed {
		fmt.Printf("[runnergen] wrote %s\n", opts.out)
	}

	return nil
}

func main() {
	opts, watchFs, err := parseFlags(os.Args[1:])
	if err != nil {
		exit(err)
	}

	if err = run(opts); err != nil {
		exit(err)
	}

	if !watchFs {
		return
	}

	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		close(stop)
	}()

	fmt.Printf("[runnergen] watching %s for changes\n", opts.root)
	err = watch(opts.root, opts.out, func() {
		if err := run(opts); err != nil {
			fmt.Fprintf(os.Stderr, "[runnergen] error: %s\n", err.Error())
		}
	}, stop)
	if err != nil {
		exit(err)
	}
}
