package main

import "inventory-sync-api/internal/cli"

func main() {
	cli.Main()
}
