// Package main is the entry point for the strider command line tool.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"strider/internal/cli"
)

func main() {
	// A .env in the working directory supplies STRIDER_* variables
	// during development. Missing file is fine.
	_ = godotenv.Load()

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
