package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/veillabs/veilbook/pkg/confidential"
)

func main() {
	dir := flag.String("dir", "keys", "directory for key material")
	force := flag.Bool("force", false, "overwrite existing key material")
	flag.Parse()

	if confidential.KeysExist(*dir) && !*force {
		fmt.Printf("key material already exists in %s (use -force to overwrite)\n", *dir)
		os.Exit(1)
	}

	svc, err := confidential.NewECIESService(*dir)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Generate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Key material written to %s\n", *dir)
	fmt.Printf("Public key: %s\n", svc.PublicKeyHex())
}
