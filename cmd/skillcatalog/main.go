package main

import "github.com/smy-101/skillcatalog/pkg/cmd"

func main() {
	cmd.Execute()
}
