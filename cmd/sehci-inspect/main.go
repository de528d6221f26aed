// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Command sehci-inspect is a diagnostic CLI for a running controller: it
// dumps the register block and computes a fingerprint of it for comparing
// snapshots across runs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/usbarmory/sehci/cmd/sehci-inspect/internal/inspect"
)

func main() {
	var base uint32
	var device string

	root := &cobra.Command{
		Use:   "sehci-inspect",
		Short: "Inspect a running EHCI/SEHCI controller's register block",
	}

	root.PersistentFlags().Uint32Var(&base, "base", 0, "physical base address of the controller register block")
	root.PersistentFlags().StringVar(&device, "device", "/dev/mem", "memory device node to map registers from")

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the controller's current register values",
		RunE: func(cmd *cobra.Command, args []string) error {
			regs, err := inspect.Dump(device, base)
			if err != nil {
				return err
			}

			for _, name := range inspect.RegisterNames {
				fmt.Printf("%-16s %#010x\n", name, regs[name])
			}

			return nil
		},
	}

	fingerprint := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print a blake2b fingerprint of the current register block",
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := inspect.Fingerprint(device, base)
			if err != nil {
				return err
			}

			fmt.Printf("%x\n", sum)

			return nil
		},
	}

	root.AddCommand(status, fingerprint)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
