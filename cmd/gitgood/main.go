package main

import "github.com/gitgood-project/gitgood/internal/cli"

func main() {
	cli.Execute()
}
