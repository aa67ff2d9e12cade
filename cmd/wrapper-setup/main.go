// Command wrapper-setup runs the final wrapper circuit's Groth16
// trusted setup once and persists the proving/verifying key pair in the
// form DefaultWrapper.LoadKeys reads. cmd/aggregator does not load
// them: it runs the setup itself on every start.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/certen/proof-aggregator/internal/batch"
)

func main() {
	pkPath := flag.String("pk", "wrapper_pk.bin", "output path for the proving key")
	vkPath := flag.String("vk", "wrapper_vk.bin", "output path for the verifying key")
	flag.Parse()

	wrapper := batch.NewDefaultWrapper()
	if err := wrapper.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := wrapper.SaveKeys(*pkPath, *vkPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrapper keys written: pk=%s vk=%s\n", *pkPath, *vkPath)
}
