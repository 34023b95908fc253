package main

import (
	"os"

	"github.com/dmitrijs2005/gatekeeper/internal/ctl"
)

func main() {
	os.Exit(ctl.Execute())
}
