package display

import (
	"fmt"
	"os"

	"github.com/backmassage/poissonbatch/internal/term"
)

// PrintBanner prints the ASCII art banner; uses Magenta if colors are enabled.
func PrintBanner() {
	fmt.Fprint(os.Stdout, term.Magenta)
	fmt.Fprint(os.Stdout, ` ___     _                      ___      _      _
| _ \___(_)_________ _ _  ___ | _ ) __ _| |_ __| |_
|  _/ _ \ (_-<_-< _ \ ' \(___)| _ \/ _`+"`"+` |  _/ _| ' \
|_| \___/_/__/__|___/_||_|    |___/\__,_|\__\__|_||_|
`)
	if term.Enabled() {
		fmt.Fprintln(os.Stdout, term.NC)
	}
}
