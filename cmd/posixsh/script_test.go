package main

import (
	"flag"
	"os"
	"testing"

	"github.com/posixsh/posixsh/interp"
	"github.com/rogpeppe/go-internal/testscript"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"posixsh": main1,
	}))
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/scripts",
	})
}

// main1 runs the shell and returns its exit status instead of calling
// os.Exit itself, so testscript.RunMain can invoke it in-process.
func main1() int {
	interp.MaybeRunReexecBuiltin()
	flag.Parse()
	return run()
}
