package main

import "github.com/pgdta/dta/cmd"

func main() {
	cmd.Execute()
}
