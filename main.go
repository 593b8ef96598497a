package main

import (
	"RbxFM/cmd"
)

func main() {
	cmd.Execute()
}
