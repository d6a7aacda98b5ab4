package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/iov-one/fedescrow"
)

var (
	flagHome = "home"
	varHome  *string
)

func init() {
	defaultHome := filepath.Join(os.ExpandEnv("$HOME"), ".fedescrow")
	varHome = flag.String(flagHome, defaultHome, "directory to store files under")

	flag.CommandLine.Usage = helpMessage
}

func helpMessage() {
	fmt.Println("escrowd")
	fmt.Println("          Single guardian escrow federation")
	fmt.Println("")
	fmt.Println("help      Print this message")
	fmt.Println("init      Write a default config.toml")
	fmt.Println("start     Run the guardian and its HTTP API")
	fmt.Println("version   Print the app version")
	fmt.Println(`
  -home string
        directory to store files under (default "$HOME/.fedescrow")`)
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Println("Missing command:")
		helpMessage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	rest := flag.Args()[1:]

	var err error
	switch cmd {
	case "help":
		helpMessage()
	case "init":
		err = initCmd(*varHome, rest)
	case "start":
		err = startCmd(*varHome, rest)
	case "version":
		fmt.Println(fedescrow.Version())
	default:
		err = fmt.Errorf("unknown command: %s", cmd)
	}

	if err != nil {
		fmt.Printf("Error: %+v\n\n", err)
		helpMessage()
		os.Exit(1)
	}
}

func configPath(home string, args []string, name string) (string, error) {
	fl := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fl.String("config", filepath.Join(home, "config.toml"), "path to the config file")
	if err := fl.Parse(args); err != nil {
		return "", err
	}
	return *path, nil
}

func initCmd(home string, args []string) error {
	path, err := configPath(home, args, "init")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %s", err)
	}
	if err := WriteConfig(path, DefaultConfig(home)); err != nil {
		return err
	}
	fmt.Println("config written to", path)
	return nil
}

func startCmd(home string, args []string) error {
	path, err := configPath(home, args, "start")
	if err != nil {
		return err
	}
	conf, err := LoadConfig(path, home)
	if err != nil {
		return err
	}
	logger, err := NewLogger(conf, os.Stdout)
	if err != nil {
		return err
	}

	n, err := newNode(conf, logger)
	if err != nil {
		return err
	}
	defer n.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := n.Run(ctx); err != nil {
		return err
	}
	logger.Info("guardian stopped", "height", n.fed.Height())
	return nil
}
