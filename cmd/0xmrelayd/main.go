package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// secrets may come from a local .env during development
	_ = godotenv.Load()

	rootCmd := NewRootCmd()
	InitRootCmd(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
