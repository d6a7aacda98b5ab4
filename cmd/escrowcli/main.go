package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/errors"
)

// commands is a register of all available commands. The name is matched with
// the first argument given.
//
// A command function is given stdin, stdout and the command line arguments
// without the program name and the command name. It parses its own flags.
// On success it writes a single JSON document to the output.
var commands = map[string]func(input io.Reader, output io.Writer, args []string) error{
	"arbiter-decision": cmdArbiterDecision,
	"balance":          cmdBalance,
	"buyer-claim":      cmdBuyerClaim,
	"claim":            cmdClaim,
	"create":           cmdCreate,
	"dispute":          cmdDispute,
	"info":             cmdInfo,
	"keygen":           cmdKeygen,
	"pubkey":           cmdPubkey,
	"seller-claim":     cmdSellerClaim,
	"tx-status":        cmdTxStatus,
	"version":          cmdVersion,
}

func main() {
	if len(os.Args) == 1 {
		fmt.Fprintf(os.Stderr, "%s is a command line client for an escrow federation.\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s <command> [<flags>]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nAvailable commands are:\n\t%s\n", strings.Join(availableCmds(), "\n\t"))
		fmt.Fprintf(os.Stderr, "Run '%s <command> -help' to learn more about each command.\n", os.Args[0])
		os.Exit(2)
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "\nAvailable commands are:\n\t%s\n", strings.Join(availableCmds(), "\n\t"))
		os.Exit(2)
	}

	if err := run(os.Stdin, os.Stdout, os.Args[2:]); err != nil {
		writeErr(os.Stderr, err)
		os.Exit(1)
	}
}

func availableCmds() []string {
	available := make([]string, 0, len(commands))
	for name := range commands {
		available = append(available, name)
	}
	sort.Strings(available)
	return available
}

type cliError struct {
	Error string `json:"error"`
	Code  uint32 `json:"code"`
}

// writeErr prints the error with its code, so that scripts can tell a
// rejection from a network failure.
func writeErr(w io.Writer, err error) {
	b, _ := json.Marshal(cliError{Error: err.Error(), Code: errors.Code(err)})
	fmt.Fprintln(w, string(b))
}

func cmdVersion(in io.Reader, out io.Writer, args []string) error {
	return printJSON(out, map[string]string{"version": fedescrow.Version()})
}
