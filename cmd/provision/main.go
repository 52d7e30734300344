package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/storage/appwrite"
)

const defaultTimeout = 5 * time.Minute

type options struct {
	cfg          appwrite.Config
	databaseName string
	collections  orders.Collections
	settle       time.Duration
	dryRun       bool
}

func parseOptions(args []string, lookup func(string) string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	def := orders.DefaultCollections()
	fs.StringVar(&opts.cfg.Endpoint, "endpoint", lookup("STOREFRONT_APPWRITE_ENDPOINT"), "Appwrite endpoint, e.g. https://cloud.appwrite.io/v1")
	fs.StringVar(&opts.cfg.ProjectID, "project", lookup("STOREFRONT_APPWRITE_PROJECT"), "Appwrite project id")
	fs.StringVar(&opts.cfg.APIKey, "key", lookup("STOREFRONT_APPWRITE_API_KEY"), "Appwrite API key with databases.write scope")
	fs.StringVar(&opts.cfg.DatabaseID, "database", lookup("STOREFRONT_APPWRITE_DATABASE"), "database id")
	fs.StringVar(&opts.databaseName, "database-name", "Storefront", "database display name")
	fs.StringVar(&opts.collections.Orders, "orders", def.Orders, "orders collection id")
	fs.StringVar(&opts.collections.OrderItems, "order-items", def.OrderItems, "order items collection id")
	fs.StringVar(&opts.collections.Inventory, "inventory", def.Inventory, "inventory collection id")
	fs.DurationVar(&opts.settle, "settle", 2*time.Second, "pause between attributes and indexes")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "print the plan without calling Appwrite")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.dryRun {
		return opts, nil
	}

	var missing []string
	if strings.TrimSpace(opts.cfg.Endpoint) == "" {
		missing = append(missing, "-endpoint")
	}
	if strings.TrimSpace(opts.cfg.ProjectID) == "" {
		missing = append(missing, "-project")
	}
	if strings.TrimSpace(opts.cfg.APIKey) == "" {
		missing = append(missing, "-key")
	}
	if strings.TrimSpace(opts.cfg.DatabaseID) == "" {
		missing = append(missing, "-database")
	}
	if len(missing) > 0 {
		return options{}, fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	return opts, nil
}

// printPlan печатает коллекции, атрибуты и индексы, которые будут созданы.
func printPlan(w io.Writer, collections []appwrite.Collection) {
	for _, col := range collections {
		fmt.Fprintf(w, "collection %s (%s)\n", col.ID, col.Name)
		for _, attr := range col.Attributes {
			line := fmt.Sprintf("  attribute %-14s %-8s required=%t", attr.Key, attr.Kind, attr.Required)
			switch {
			case attr.Kind == appwrite.AttributeString:
				line += fmt.Sprintf(" size=%d", attr.Size)
			case attr.Min != nil && attr.Max != nil:
				line += fmt.Sprintf(" range=[%d,%d]", *attr.Min, *attr.Max)
			}
			if len(attr.Elements) > 0 {
				line += " elements=" + strings.Join(attr.Elements, "|")
			}
			if attr.Default != nil {
				line += fmt.Sprintf(" default=%v", attr.Default)
			}
			fmt.Fprintln(w, line)
		}
		for _, idx := range col.Indexes {
			fmt.Fprintf(w, "  index     %-14s %-8s %s\n", idx.Key, idx.Type(), strings.Join(idx.Attributes, ","))
		}
	}
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	collections := appwrite.Schema(opts.collections.Orders, opts.collections.OrderItems, opts.collections.Inventory)
	if opts.dryRun {
		printPlan(stdout, collections)
		return nil
	}

	client, err := appwrite.NewClient(opts.cfg, appwrite.WithLogger(log.WithField("component", "provision")))
	if err != nil {
		return err
	}
	res, err := appwrite.NewProvisioner(client, opts.settle).Apply(ctx, opts.databaseName, collections)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "provision ok: created=%d existed=%d\n", res.Created, res.Existed)
	return nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	opts, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fail("provision failed: %v", err)
	}
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
