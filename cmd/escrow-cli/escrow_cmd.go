package main

import (
	"fmt"
	"strings"

	"marketescrow/crypto"
)

func escrowUsage() string {
	return strings.TrimSpace(`
Usage: escrow-cli escrow <subcommand> [flags]

Subcommands:
  create   --keystore PATH --marketplace ID --product ID --quantity N
  fund     --keystore PATH --id ID
  ship     --keystore PATH --id ID --tracking REF
  confirm  --keystore PATH --id ID
  dispute  --keystore PATH --id ID --reason TEXT
  cancel   --keystore PATH --id ID
  resolve  --keystore PATH --id ID --favor seller|buyer
  get      --id ID
  list     --party ADDRESS [--limit N]
  custody  --marketplace ID --buyer ADDRESS --product ID
`)
}

func (a *app) escrow(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(a.stderr, escrowUsage())
		return 1
	}
	switch args[0] {
	case "create":
		return a.escrowCreate(args[1:])
	case "fund":
		return a.escrowByID("escrow_fund", args[1:])
	case "confirm":
		return a.escrowByID("escrow_confirmDelivery", args[1:])
	case "cancel":
		return a.escrowByID("escrow_cancel", args[1:])
	case "ship":
		return a.escrowShip(args[1:])
	case "dispute":
		return a.escrowDispute(args[1:])
	case "resolve":
		return a.escrowResolve(args[1:])
	case "get":
		return a.escrowGet(args[1:])
	case "list":
		return a.escrowList(args[1:])
	case "custody":
		return a.escrowCustody(args[1:])
	default:
		fmt.Fprintf(a.stderr, "Unknown escrow subcommand: %s\n", args[0])
		fmt.Fprintln(a.stderr, escrowUsage())
		return 1
	}
}

func requireAddress(flagName, value string) error {
	if value == "" {
		return fmt.Errorf("--%s is required", flagName)
	}
	if _, err := crypto.ParseKey(value); err != nil {
		return fmt.Errorf("--%s: %v", flagName, err)
	}
	return nil
}

func (a *app) submit(keystore, method string, params interface{}) int {
	key, err := a.loadKey(keystore)
	if err != nil {
		return a.fail("%v", err)
	}
	result, err := a.client.signed(key, method, params, 0)
	if err != nil {
		return a.fail("%v", err)
	}
	return a.print(result)
}

func (a *app) escrowCreate(args []string) int {
	fs := a.flagSet("escrow create")
	keystore := fs.String("keystore", "", "buyer keystore")
	market := fs.String("marketplace", "", "marketplace id")
	product := fs.String("product", "", "product id")
	quantity := fs.Int64("quantity", 0, "units to buy")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := requireAddress("marketplace", *market); err != nil {
		return a.fail("%v", err)
	}
	if err := requireAddress("product", *product); err != nil {
		return a.fail("%v", err)
	}
	if *quantity <= 0 {
		return a.fail("--quantity must be greater than zero")
	}
	return a.submit(*keystore, "escrow_create", map[string]interface{}{
		"marketplace": *market,
		"product":     *product,
		"quantity":    *quantity,
	})
}

func (a *app) escrowByID(method string, args []string) int {
	fs := a.flagSet(method)
	keystore := fs.String("keystore", "", "signer keystore")
	id := fs.String("id", "", "escrow id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := requireAddress("id", *id); err != nil {
		return a.fail("%v", err)
	}
	return a.submit(*keystore, method, map[string]string{"id": *id})
}

func (a *app) escrowShip(args []string) int {
	fs := a.flagSet("escrow ship")
	keystore := fs.String("keystore", "", "seller keystore")
	id := fs.String("id", "", "escrow id")
	tracking := fs.String("tracking", "", "shipment tracking reference")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := requireAddress("id", *id); err != nil {
		return a.fail("%v", err)
	}
	return a.submit(*keystore, "escrow_markShipped", map[string]string{"id": *id, "trackingId": *tracking})
}

func (a *app) escrowDispute(args []string) int {
	fs := a.flagSet("escrow dispute")
	keystore := fs.String("keystore", "", "buyer or seller keystore")
	id := fs.String("id", "", "escrow id")
	reason := fs.String("reason", "", "dispute reason")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := requireAddress("id", *id); err != nil {
		return a.fail("%v", err)
	}
	return a.submit(*keystore, "escrow_dispute", map[string]string{"id": *id, "reason": *reason})
}

func (a *app) escrowResolve(args []string) int {
	fs := a.flagSet("escrow resolve")
	keystore := fs.String("keystore", "", "marketplace authority keystore")
	id := fs.String("id", "", "escrow id")
	favor := fs.String("favor", "", "seller or buyer")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := requireAddress("id", *id); err != nil {
		return a.fail("%v", err)
	}
	var favorSeller bool
	switch strings.ToLower(strings.TrimSpace(*favor)) {
	case "seller":
		favorSeller = true
	case "buyer":
	default:
		return a.fail("--favor must be seller or buyer")
	}
	return a.submit(*keystore, "escrow_resolve", map[string]interface{}{"id": *id, "favorSeller": favorSeller})
}

func (a *app) escrowGet(args []string) int {
	fs := a.flagSet("escrow get")
	id := fs.String("id", "", "escrow id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := requireAddress("id", *id); err != nil {
		return a.fail("%v", err)
	}
	result, err := a.client.query("escrow_get", map[string]string{"id": *id})
	if err != nil {
		return a.fail("%v", err)
	}
	return a.print(result)
}

func (a *app) escrowList(args []string) int {
	fs := a.flagSet("escrow list")
	party := fs.String("party", "", "buyer or seller address")
	limit := fs.Int("limit", 0, "maximum rows")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := requireAddress("party", *party); err != nil {
		return a.fail("%v", err)
	}
	result, err := a.client.query("escrow_listByParty", map[string]interface{}{"party": *party, "limit": *limit})
	if err != nil {
		return a.fail("%v", err)
	}
	return a.print(result)
}

func (a *app) escrowCustody(args []string) int {
	fs := a.flagSet("escrow custody")
	market := fs.String("marketplace", "", "marketplace id")
	buyer := fs.String("buyer", "", "buyer address")
	product := fs.String("product", "", "product id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	for name, v := range map[string]string{"marketplace": *market, "buyer": *buyer, "product": *product} {
		if err := requireAddress(name, v); err != nil {
			return a.fail("%v", err)
		}
	}
	result, err := a.client.query("escrow_custodyAddress", map[string]string{
		"marketplace": *market,
		"buyer":       *buyer,
		"product":     *product,
	})
	if err != nil {
		return a.fail("%v", err)
	}
	return a.print(result)
}
