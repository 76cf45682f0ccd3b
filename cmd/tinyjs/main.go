package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	tinyjs "github.com/rgoro/tinyjs"
)

// cmd/tinyjs is a thin flag-driven smoke driver over the embedding API
// (api.go), grounded on the teacher's own `cmd/main.go` (flag + log.Fatal,
// same shape, new flags). Per spec.md §1 this CLI is explicitly named
// an out-of-scope "external collaborator", not a deliverable in its
// own right, so it stays minimal: load a file or an inline -eval
// string, run it, optionally dump the compiled bytecode.
func main() {
	var (
		evalSrc      = flag.String("eval", "", "Inline ECMAScript source to evaluate")
		runPath      = flag.String("run", "", "Path to an ECMAScript source file to run")
		dumpBytecode = flag.Bool("dump-bytecode", false, "Print the compiled bytecode instead of running it")
		heapSize     = flag.Int("heap-size", 64*1024, "Heap size in bytes")
	)
	flag.Parse()

	var source, name string
	switch {
	case *evalSrc != "":
		source, name = *evalSrc, "<eval>"
	case *runPath != "":
		data, err := os.ReadFile(*runPath)
		if err != nil {
			log.Fatalf("can't read source file: %s", err.Error())
		}
		source, name = string(data), *runPath
	default:
		log.Fatal("either -eval or -run must be given")
	}

	cfg := tinyjs.NewConfig()
	cfg.SetInt("heap.size", *heapSize)
	engine := tinyjs.Init(cfg)
	defer engine.Cleanup()

	template, err := engine.Parse(source, tinyjs.ParseOptions{SourceName: name})
	if err != nil {
		log.Fatalf("parse error: %s", err.Error())
	}

	if *dumpBytecode {
		fmt.Println(template.Disassemble())
		return
	}

	result, err := engine.Run(template)
	if err != nil {
		log.Fatalf("uncaught error: %s", err.Error())
	}
	engine.RunJobs()

	out, err := engine.ToString(result)
	if err != nil {
		log.Fatalf("can't stringify result: %s", err.Error())
	}
	fmt.Println(out)
}
