// This file is the entry point for the EZchain node service.
package main

import (
	"github.com/Re20Cboy/EZchain/app/services/ezchain-node/cmd"
)

func main() {
	cmd.Execute()
}
