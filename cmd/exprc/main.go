// Command exprc drives the Lambda Compiler against the canned expression
// trees in examples.go and dumps whatever stage of its pipeline the caller
// asked for. There is no source-language front end (spec.md §1 excludes a
// parser as a non-goal), so this is closer to a fixture runner than a
// traditional compiler CLI: -example picks a tree, the rest of the flags
// pick what to do with it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/lambdatree/lct/internal/compiler"
	"github.com/lambdatree/lct/internal/exprtree"
	"github.com/lambdatree/lct/internal/treeinterp"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion  = flag.Bool("version", false, "show version information")
		jsonOutput   = flag.Bool("json", false, "output -version/-run results in JSON format (-interp output stays plain text)")
		exampleName  = flag.String("example", "", "name of the example tree to compile (see -list)")
		listExamples = flag.Bool("list", false, "list the available example trees and exit")
		runIt        = flag.Bool("run", false, "compile and invoke the example, printing the result")
		interp       = flag.Bool("interp", false, "evaluate via internal/treeinterp instead of the compiled backend")
		emitIL       = flag.Bool("emit-il", false, "disassemble the compiled bytecode (stdout)")
		emitConsts   = flag.Bool("emit-bound-constants", false, "dump each Program's bound-constants pool (stdout)")
		emitX64      = flag.Bool("emit-x64", false, "emit diagnostic x64-like assembly lowered from the bytecode (stdout)")
		argsFlag     = flag.String("args", "", "comma-separated integer arguments for -run/-interp")
		watchDir     = flag.String("watch", "", "watch a directory for dropped job files and process each as it appears")
	)

	flag.Parse()

	if *showVersion {
		printVersion(*jsonOutput)
		return
	}

	if *listExamples {
		for _, name := range sortedExampleNames() {
			fmt.Println(name)
		}

		return
	}

	if *watchDir != "" {
		if err := watchJobs(*watchDir); err != nil {
			log.Fatalf("exprc: watch %s: %v", *watchDir, err)
		}

		return
	}

	if *exampleName == "" {
		fmt.Fprintln(os.Stderr, "exprc: -example is required (see -list)")
		flag.Usage()
		os.Exit(1)
	}

	build, ok := examples[*exampleName]
	if !ok {
		log.Fatalf("exprc: unknown example %q (see -list)", *exampleName)
	}

	tree := build()
	args, err := parseArgs(*argsFlag)
	if err != nil {
		log.Fatalf("exprc: %v", err)
	}

	switch {
	case *interp:
		runInterpreted(tree, args, *jsonOutput)
	case *runIt:
		runCompiled(tree, args, *jsonOutput)
	case *emitIL, *emitConsts, *emitX64:
		dumpDiagnostics(tree, *emitIL, *emitConsts, *emitX64)
	default:
		flag.Usage()
	}
}

func sortedExampleNames() []string {
	names := make([]string, 0, len(examples))
	for name := range examples {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func parseArgs(raw string) ([]interface{}, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	args := make([]interface{}, len(parts))

	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("-args %q: %w", raw, err)
		}

		args[i] = n
	}

	return args, nil
}

func runCompiled(tree *exprtree.Lambda, args []interface{}, asJSON bool) {
	callable, cerr := compiler.Compile(tree)
	if cerr != nil {
		log.Fatalf("exprc: compile: %s", cerr.Error())
	}

	in := make([]interface{}, len(args))
	copy(in, args)

	out := callable.Func().Call(reflectValuesOf(in))
	printResult("compiled", out, asJSON)
}

func runInterpreted(tree *exprtree.Lambda, args []interface{}, asJSON bool) {
	result, err := treeinterp.Run(tree, args)
	if err != nil {
		log.Fatalf("exprc: interp: %v", err)
	}

	fmt.Printf("interpreted result: %v\n", result)
	_ = asJSON // the interpreter's result is already a single scalar; -json has nothing further to structure here
}

func dumpDiagnostics(tree *exprtree.Lambda, il, consts, x64 bool) {
	d, err := compiler.Analyze(tree)
	if err != nil {
		log.Fatalf("exprc: analyze: %s", err.Error())
	}

	if il {
		fmt.Print(d.EmitIL())
	}

	if consts {
		fmt.Print(d.EmitBoundConstants())
	}

	if x64 {
		fmt.Print(d.EmitX64())
	}
}

func printVersion(asJSON bool) {
	if asJSON {
		b, _ := json.Marshal(map[string]string{"version": version, "commit": commit})
		fmt.Println(string(b))

		return
	}

	fmt.Printf("exprc %s (%s)\n", version, commit)
}

// watchJobs watches dir via fsnotify and treats each created file as a job:
// the file's base name (without extension) selects an example, and its
// contents are a JSON array of integer arguments to invoke it with. There
// is no source file to recompile on change (no parser exists), so -watch
// models a job queue rather than a live-reload loop — the shape a real
// deployment of this compiler would actually need, since embedding it means
// feeding it trees built by an embedding program, not edited by hand.
func watchJobs(dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	log.Printf("exprc: watching %s for job files", dir)

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			processJobFile(ev.Name)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			log.Printf("exprc: watch error: %v", err)
		}
	}
}

func processJobFile(path string) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	build, ok := examples[name]
	if !ok {
		log.Printf("exprc: job %s: no example named %q", path, name)
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("exprc: job %s: %v", path, err)
		return
	}

	var nums []int
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &nums); err != nil {
			log.Printf("exprc: job %s: invalid JSON args: %v", path, err)
			return
		}
	}

	args := make([]interface{}, len(nums))
	for i, n := range nums {
		args[i] = n
	}

	callable, cerr := compiler.Compile(build())
	if cerr != nil {
		log.Printf("exprc: job %s: compile: %s", path, cerr.Error())
		return
	}

	out := callable.Func().Call(reflectValuesOf(args))
	log.Printf("exprc: job %s -> %v", path, formatResults(out))
}
