// Command pgtrace runs small user programs against a simulated Sv39 machine
// and shows how their page tables evolve.
package main

import "github.com/sarchlab/pgtrace/pgtrace/cmd"

func main() {
	cmd.Execute()
}
