package main

import "github.com/MeKo-Tech/teavision/cmd/teavision/cmd"

func main() {
	cmd.Execute()
}
