package main

import (
	"os"

	"github.com/Juauvitorsm/painel-empresas/cmd/painel/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
