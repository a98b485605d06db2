package main

import (
	"fmt"
	"os"

	"github.com/basket/biofetch/internal/config"
)

func runInitCommand(args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: biofetch init")
		return 2
	}

	homeDir := config.HomeDir()
	if err := config.WriteStarter(homeDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("wrote %s\n", config.ConfigPath(homeDir))
	fmt.Println("set your service key with: biofetch config set-key <KEY>")
	return 0
}
