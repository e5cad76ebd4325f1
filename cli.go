package main

import (
	"ikas.GO/cmd"
	"ikas.GO/config"
)

func main() {
	config.LoadEnv()
	cmd.Execute()
}
