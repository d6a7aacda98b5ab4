package main

import (
	"context"
	"net/http"
	"time"

	"github.com/iov-one/fedescrow/api"
	"github.com/iov-one/fedescrow/app"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendermint/tendermint/libs/log"
)

// node is a single guardian federation served over HTTP.
type node struct {
	conf   Config
	logger log.Logger
	db     *store.LevelDB
	fed    *app.LocalFederation
	router http.Handler
}

func newNode(conf Config, logger log.Logger) (*node, error) {
	db, err := store.OpenLevelDB(conf.DBPath)
	if err != nil {
		return nil, err
	}

	var gatherer prometheus.Gatherer
	var reg prometheus.Registerer
	if conf.Metrics {
		r := prometheus.NewRegistry()
		r.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		reg, gatherer = r, r
	}

	g, err := app.NewGuardian("guardian-0", db,
		app.WithLogger(logger.With("module", "guardian")),
		app.WithMetrics(app.NewMetrics(reg, "guardian-0")),
	)
	if err != nil {
		db.Close()
		return nil, err
	}
	if !g.Initialized() {
		gen, err := app.LoadGenesis(conf.Genesis)
		if err != nil {
			db.Close()
			return nil, err
		}
		if err := g.InitGenesis(gen); err != nil {
			db.Close()
			return nil, err
		}
	}

	fed, err := app.NewLocalFederation([]*app.Guardian{g}, time.Now,
		app.WithFederationLogger(logger.With("module", "federation")))
	if err != nil {
		db.Close()
		return nil, err
	}
	return &node{
		conf:   conf,
		logger: logger,
		db:     db,
		fed:    fed,
		router: api.NewRouter(fed, gatherer, logger.With("module", "api")),
	}, nil
}

// Run serves the API and cuts batches until the context is cancelled or
// either of them fails.
func (n *node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Addr:              n.conf.Listen,
		Handler:           n.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 2)
	go func() {
		errc <- n.fed.Run(ctx, n.conf.BatchInterval)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errc <- errors.Wrapf(errors.ErrNetwork, "http server: %s", err)
			return
		}
		errc <- nil
	}()
	n.logger.Info("guardian API listening", "addr", n.conf.Listen, "height", n.fed.Height())

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		n.logger.Error("cannot shutdown http server", "err", serr)
	}
	if err == context.Canceled {
		err = nil
	}
	return err
}

func (n *node) Close() error {
	return n.db.Close()
}
