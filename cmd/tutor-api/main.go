package main

import (
	"fmt"
	"os"
)

// @title Tutor Support API
// @version 1.0.0
// @description Tutor registration, appointment scheduling and tutor matching
// @BasePath /
// @schemes http

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
