package main

import "github.com/MeKo-Tech/guidealign/cmd/guidealign/cmd"

func main() {
	cmd.Execute()
}
