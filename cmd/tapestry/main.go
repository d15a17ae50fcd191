package main

import "github.com/rapturt9/interactive-worlds-sub000/internal/cli"

func main() {
	cli.Execute()
}
