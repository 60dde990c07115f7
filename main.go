package main

import "github.com/ValentinKolb/dStmt/cmd"

func main() {
	cmd.Execute()
}
