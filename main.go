package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/temirov/repogov/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main runs repogov until it finishes or an interrupt cancels in-flight GitHub requests and git processes.
func main() {
	executionContext, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	executionError := cli.ExecuteContext(executionContext)
	stop()
	if executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(1)
	}
}
