package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/iov-one/fedescrow/crypto"
)

func cmdKeygen(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	usage(fl, `
Generate a new private key.

When successful a new file with binary content containing private key is
created. This command fails if the private key file already exists.
`)
	keyPathFl := fl.String("key", defaultKeyPath(),
		"Path to the private key file. You can use FEDESCROW_PRIV_KEY environment variable to set it.")
	fl.Parse(args)

	if _, err := os.Stat(*keyPathFl); !os.IsNotExist(err) {
		// Never overwrite a key, it may be the only copy.
		return fmt.Errorf("private key file %q already exists, delete this file and try again", *keyPathFl)
	}

	key, err := crypto.GenPrivateKey()
	if err != nil {
		return err
	}

	fd, err := os.OpenFile(*keyPathFl, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("cannot create private key file: %s", err)
	}
	defer fd.Close()

	if _, err := fd.Write(key.Bytes()); err != nil {
		return fmt.Errorf("cannot write private key: %s", err)
	}
	if err := fd.Close(); err != nil {
		return fmt.Errorf("cannot close private key file: %s", err)
	}
	return printJSON(output, map[string]crypto.PublicKey{"pubkey": key.PublicKey()})
}

func cmdPubkey(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	usage(fl, `
Print out the public key associated with your private key.
`)
	keyPathFl := fl.String("key", defaultKeyPath(),
		"Path to the private key file. You can use FEDESCROW_PRIV_KEY environment variable to set it.")
	fl.Parse(args)

	key, err := readKey(*keyPathFl)
	if err != nil {
		return err
	}
	return printJSON(output, map[string]crypto.PublicKey{"pubkey": key.PublicKey()})
}
