package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/cartsync/config"
	"github.com/shashiranjanraj/cartsync/internal/app"
	"github.com/shashiranjanraj/cartsync/internal/persist"
	"github.com/shashiranjanraj/cartsync/internal/server"
)

var servePort string

// cartsync serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the order API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.Boot(ctx, app.Options{Carts: true, Ledger: true})
		if err != nil {
			return err
		}
		defer a.Close()

		port := servePort
		if port == "" {
			port = config.AppPort()
		}
		r := server.NewRouter(server.Deps{Ledger: a.Ledger, Carts: a.Carts, Watcher: a.Watcher})
		return server.Run(ctx, ":"+port, r.Handler())
	},
}

// cartsync route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List the API routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		r := server.NewRouter(server.Deps{Carts: noCarts{}, Watcher: noCarts{}})

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		for _, ri := range r.Routes() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (default APP_PORT)")
}

// noCarts lets route:list mount the cart routes without any backend.
type noCarts struct{}

func (noCarts) Watch(context.Context, string) (persist.Subscription, error) {
	return nil, persist.ErrNotFound
}

func (noCarts) Load(context.Context, string) (persist.Record, []persist.Attempt, error) {
	return persist.Record{}, nil, persist.ErrNotFound
}
