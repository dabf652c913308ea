// Command loanctl serves and operates the loan decision API.
package main

import (
	"context"
	"os"

	"github.com/loanflow/loanflow/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
