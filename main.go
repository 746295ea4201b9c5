package main

import "api-contract-fuzzer/internal/cli"

func main() {
	cli.Execute()
}
