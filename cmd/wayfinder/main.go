package main

import "github.com/softlight/wayfinder/internal/cli"

func main() {
	cli.Execute()
}
