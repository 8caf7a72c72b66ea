// Command rlmctl is a thin HTTP client for rlmd's Session/Execution
// surface and Inference surface.
//
// # Basic usage
//
//	rlmctl session create
//	rlmctl session exec <session-id> 'echo hello'
//	rlmctl session list
//	rlmctl session rm <session-id>
//	rlmctl infer "what is 2+2?"
package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
