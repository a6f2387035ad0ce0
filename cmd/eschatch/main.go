package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	cmd, code := newRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "eschatch: %v\n", err)
		os.Exit(1)
	}
	os.Exit(*code)
}
