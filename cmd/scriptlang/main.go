// Command scriptlang runs scriptlang source files, or an interactive REPL
// when invoked with none.
package main

import (
	"os"

	"github.com/Rax-x/ScriptLang/internal/driver"
)

func main() {
	os.Exit(driver.Run(driver.Options{
		Args:   os.Args[1:],
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}))
}
