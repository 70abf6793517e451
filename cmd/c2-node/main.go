package main

import (
	"fmt"
	"os"

	// Import to register the simulation
	_ "github.com/picogrid/skyguard-c2/cmd/c2-node/simulation"
)

func main() {
	fmt.Println("C2 Node simulation registered. Use 'skyguard run' to execute.")
	os.Exit(0)
}
