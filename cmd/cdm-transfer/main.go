package main

import (
	"github.com/kbase/cdm-transfers/cmd"
)

func main() {
	cmd.Execute()
}
