package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"time"

	"github.com/iov-one/fedescrow/client"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
)

// env returns the value of an environment variable if provided (even if empty)
// or a fallback value.
func env(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return fallback
}

func defaultKeyPath() string {
	return env("FEDESCROW_PRIV_KEY", os.Getenv("HOME")+"/.fedescrow.priv.key")
}

// connFlags are shared by all commands talking to a guardian.
type connFlags struct {
	key     *string
	api     *string
	timeout *time.Duration
}

func addConnFlags(fl *flag.FlagSet) connFlags {
	return connFlags{
		key: fl.String("key", defaultKeyPath(),
			"Path to the private key file. You can use FEDESCROW_PRIV_KEY environment variable to set it."),
		api: fl.String("api", env("FEDESCROW_API", "http://localhost:8000"),
			"Guardian API address. You can use FEDESCROW_API environment variable to set it."),
		timeout: fl.Duration("timeout", 30*time.Second, "How long to wait for the federation verdict."),
	}
}

func (c connFlags) client() (*client.EscrowClient, error) {
	key, err := readKey(*c.key)
	if err != nil {
		return nil, err
	}
	return client.NewEscrowClient(key, client.NewHTTPTransport(*c.api, nil)), nil
}

func (c connFlags) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), *c.timeout)
}

func readKey(path string) (*crypto.PrivateKey, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "cannot read private key file: %s", err)
	}
	return crypto.PrivateKeyFromBytes(raw)
}

func printJSON(out io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return fmt.Errorf("cannot serialize: %s", err)
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}

// usage sets a description printed above the flag defaults.
func usage(fl *flag.FlagSet, description string) {
	fl.Usage = func() {
		fmt.Fprint(fl.Output(), description)
		fl.PrintDefaults()
	}
}

func requireFlag(name, value string) error {
	if value == "" {
		return errors.Wrapf(errors.ErrEmpty, "-%s is required", name)
	}
	return nil
}
