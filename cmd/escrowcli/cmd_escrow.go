package main

import (
	"context"
	"flag"
	"io"
	"math"

	"github.com/iov-one/fedescrow/client"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/x/escrow"
)

func cmdCreate(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	usage(fl, `
Lock funds in a new escrow. The key owner is the buyer and pays the amount
plus the federation deposit fee. The seller releases the funds with the
secret code. Without -id a random escrow id is used.
`)
	conn := addConnFlags(fl)
	var (
		idFl      = fl.String("id", "", "Escrow ID. Generated when empty.")
		sellerFl  = fl.String("seller", "", "Seller public key.")
		arbiterFl = fl.String("arbiter", "", "Arbiter public key.")
		amountFl  = fl.Uint64("amount", 0, "Amount to lock.")
		secretFl  = fl.String("secret", "", "Secret code handed to the seller once the goods are received.")
		maxFeeFl  = fl.Uint("max-fee-bps", 0, "Maximum arbiter fee in basis points.")
	)
	fl.Parse(args)

	if err := requireFlag("secret", *secretFl); err != nil {
		return err
	}
	maxFee, err := bpsFlag("max-fee-bps", *maxFeeFl)
	if err != nil {
		return err
	}
	seller, err := parseKeyFlag("seller", *sellerFl)
	if err != nil {
		return err
	}
	arbiter, err := parseKeyFlag("arbiter", *arbiterFl)
	if err != nil {
		return err
	}
	return runAction(output, conn, func(c *client.EscrowClient, ctx context.Context) (*client.Receipt, error) {
		return c.CreateEscrow(ctx, client.CreateParams{
			EscrowID:         *idFl,
			Seller:           seller,
			Arbiter:          arbiter,
			Amount:           *amountFl,
			SecretCode:       []byte(*secretFl),
			MaxArbiterFeeBps: maxFee,
		})
	})
}

func cmdInfo(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	usage(fl, `
Print the public state of an escrow.
`)
	conn := addConnFlags(fl)
	idFl := fl.String("id", "", "Escrow ID.")
	fl.Parse(args)

	if err := requireFlag("id", *idFl); err != nil {
		return err
	}
	ctx, cancel := conn.context()
	defer cancel()
	info, err := client.NewHTTPTransport(*conn.api, nil).EscrowInfo(ctx, *idFl)
	if err != nil {
		return err
	}
	return printJSON(output, info)
}

func cmdBalance(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	usage(fl, `
Print the spendable balance of a public key, by default the one of your
private key.
`)
	conn := addConnFlags(fl)
	pubkeyFl := fl.String("pubkey", "", "Public key. Defaults to the private key owner.")
	fl.Parse(args)

	var pubkey crypto.PublicKey
	if *pubkeyFl != "" {
		pk, err := parseKeyFlag("pubkey", *pubkeyFl)
		if err != nil {
			return err
		}
		pubkey = pk
	} else {
		key, err := readKey(*conn.key)
		if err != nil {
			return err
		}
		pubkey = key.PublicKey()
	}
	ctx, cancel := conn.context()
	defer cancel()
	balance, err := client.NewHTTPTransport(*conn.api, nil).Balance(ctx, pubkey)
	if err != nil {
		return err
	}
	return printJSON(output, map[string]interface{}{
		"pubkey":  pubkey,
		"balance": balance,
	})
}

func cmdClaim(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	usage(fl, `
Claim an open escrow as the seller using the secret code.
`)
	conn := addConnFlags(fl)
	idFl := fl.String("id", "", "Escrow ID.")
	secretFl := fl.String("secret", "", "Secret code received from the buyer.")
	fl.Parse(args)

	if err := requireFlag("id", *idFl); err != nil {
		return err
	}
	if err := requireFlag("secret", *secretFl); err != nil {
		return err
	}
	return runAction(output, conn, func(c *client.EscrowClient, ctx context.Context) (*client.Receipt, error) {
		return c.ClaimEscrow(ctx, *idFl, []byte(*secretFl))
	})
}

func cmdDispute(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	usage(fl, `
Dispute an open escrow as the buyer or the seller. Once disputed only the
arbiter can decide who gets the funds.
`)
	conn := addConnFlags(fl)
	idFl := fl.String("id", "", "Escrow ID.")
	fl.Parse(args)

	if err := requireFlag("id", *idFl); err != nil {
		return err
	}
	return runAction(output, conn, func(c *client.EscrowClient, ctx context.Context) (*client.Receipt, error) {
		return c.InitiateDispute(ctx, *idFl)
	})
}

func cmdArbiterDecision(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	usage(fl, `
Decide a disputed escrow as the arbiter. The fee is paid to the arbiter and
cannot exceed the maximum set by the buyer.
`)
	conn := addConnFlags(fl)
	idFl := fl.String("id", "", "Escrow ID.")
	decisionFl := fl.String("decision", "", "Winner of the dispute, buyer or seller.")
	feeFl := fl.Uint("fee-bps", 0, "Arbiter fee in basis points.")
	fl.Parse(args)

	if err := requireFlag("id", *idFl); err != nil {
		return err
	}
	decision, err := escrow.ParseDecision(*decisionFl)
	if err != nil {
		return err
	}
	fee, err := bpsFlag("fee-bps", *feeFl)
	if err != nil {
		return err
	}
	return runAction(output, conn, func(c *client.EscrowClient, ctx context.Context) (*client.Receipt, error) {
		return c.ArbiterDecision(ctx, *idFl, decision, fee)
	})
}

func cmdBuyerClaim(input io.Reader, output io.Writer, args []string) error {
	return claimAfterDispute(output, args, `
Claim a disputed escrow the arbiter decided in favor of the buyer.
`, (*client.EscrowClient).BuyerClaim)
}

func cmdSellerClaim(input io.Reader, output io.Writer, args []string) error {
	return claimAfterDispute(output, args, `
Claim a disputed escrow the arbiter decided in favor of the seller.
`, (*client.EscrowClient).SellerClaim)
}

func claimAfterDispute(output io.Writer, args []string, description string, claim func(*client.EscrowClient, context.Context, string) (*client.Receipt, error)) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	usage(fl, description)
	conn := addConnFlags(fl)
	idFl := fl.String("id", "", "Escrow ID.")
	fl.Parse(args)

	if err := requireFlag("id", *idFl); err != nil {
		return err
	}
	return runAction(output, conn, func(c *client.EscrowClient, ctx context.Context) (*client.Receipt, error) {
		return claim(c, ctx, *idFl)
	})
}

func cmdTxStatus(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	usage(fl, `
Print the federation verdict of a transaction. Use it with the tx_id printed
by a command that could not wait for the verdict.
`)
	conn := addConnFlags(fl)
	txFl := fl.String("tx", "", "Transaction ID.")
	fl.Parse(args)

	if err := requireFlag("tx", *txFl); err != nil {
		return err
	}
	ctx, cancel := conn.context()
	defer cancel()
	status, err := client.NewHTTPTransport(*conn.api, nil).TxStatus(ctx, *txFl)
	if err != nil {
		return err
	}
	return printJSON(output, status)
}

// runAction prints the receipt of the action. A receipt returned together
// with an error describes a transaction without a known verdict yet. It is
// printed as well, so that the transaction can be looked up later.
func runAction(output io.Writer, conn connFlags, action func(*client.EscrowClient, context.Context) (*client.Receipt, error)) error {
	c, err := conn.client()
	if err != nil {
		return err
	}
	ctx, cancel := conn.context()
	defer cancel()
	r, err := action(c, ctx)
	if r != nil {
		if perr := printJSON(output, r); perr != nil && err == nil {
			return perr
		}
	}
	return err
}

func bpsFlag(name string, value uint) (uint32, error) {
	if value > math.MaxUint32 {
		return 0, errors.Wrapf(errors.ErrInput, "-%s %d out of range", name, value)
	}
	return uint32(value), nil
}

func parseKeyFlag(name, value string) (crypto.PublicKey, error) {
	if err := requireFlag(name, value); err != nil {
		return nil, err
	}
	pk, err := crypto.ParsePublicKey(value)
	if err != nil {
		return nil, errors.Wrapf(err, "-%s", name)
	}
	return pk, nil
}
