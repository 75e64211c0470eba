package main

import "github.com/mickamy/golfstats/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
