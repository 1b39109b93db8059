package main

import (
	"github.com/luma/elpida/cmd"
)

func main() {
	cmd.Execute()
}
