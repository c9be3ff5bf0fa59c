// Package main is the petube edge coordinator entry point.
package main

import (
	"log"

	"github.com/mixtura/petube/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
