// Command fleetapi is the external-facing process (C6): it hosts the
// versioned /v1 HTTP API (internal/httpapi) and the bulk dispatcher that
// shards every request across the live conductor fleet, backed directly
// by the relational store for reads and administrative CRUD.
//
// Grounded on cmd/fleetcond's runRoot shape for the ambient stack
// (logger -> config load -> signal context -> metrics -> store -> service
// registry client -> main select loop); this process serves net/http
// directly instead of internal/rpc.Server, since its surface is the
// external REST API rather than an inter-worker RPC entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	clientv3 "go.etcd.io/etcd/client/v3"

	"fleetd/cmd/logger"
	"fleetd/internal/config"
	"fleetd/internal/dispatch"
	"fleetd/internal/httpapi"
	"fleetd/internal/metrics"
	"fleetd/internal/objects"
	"fleetd/internal/store"
	"fleetd/internal/svcregistry"
)

type opts struct {
	Version    bool
	Syslog     bool
	LogFile    string
	LogLevel   string
	ConfigFile string
}

var (
	options opts
	Version string
)

var rootCMD = &cobra.Command{
	Use:   "fleetapi",
	Short: "fleetd external HTTP API and bulk dispatcher daemon",
	RunE:  runRoot,
}

func cancelSignalContext(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		chSig := make(chan os.Signal, 2)
		signal.Notify(chSig, syscall.SIGINT, syscall.SIGTERM)
		s := <-chSig
		log.Ctx(ctx).Info().Msgf("caught signal %v, shutting down", s)
		cancel()
	}()
	return ctx
}

func conductorResolver(hostname string) string {
	return fmt.Sprintf("http://%s:%d/rpc", hostname, config.Config.Conductor.Port)
}

func loadSSHPubKey(path string) string {
	if path == "" {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("fleetapi: could not read ssh pub key file")
		return ""
	}
	return string(b)
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if options.Version {
		fmt.Printf("version: %s\n", Version)
		return nil
	}

	ctx, zlog, err := logger.New(ctx, options.Syslog, options.LogLevel, options.LogFile)
	if err != nil {
		return err
	}
	ctx = zlog.WithContext(ctx)

	ctx, err = config.Load(ctx, options.ConfigFile)
	if err != nil {
		return err
	}

	ctx = cancelSignalContext(ctx)

	rootMetricsRegistry := metrics.NewRegistry("")
	metricTls, err := config.GetMetricsTlsConfig(ctx)
	if err != nil {
		return err
	}
	metricsSrvr, err := metrics.NewPrometheus(config.Config.Metrics.Bind, config.Config.Metrics.Port, metricTls, rootMetricsRegistry)
	if err != nil {
		return err
	}
	metricsSrvr.Start(ctx)

	st, err := store.Open(ctx, filepath.Join(config.Config.BasePath, "fleetd.db"))
	if err != nil {
		return err
	}
	defer st.Close()
	repo := objects.NewRepo(st)

	cli, err := clientv3.New(clientv3.Config{Endpoints: config.Config.Etcd, DialTimeout: 5 * time.Second})
	if err != nil {
		return err
	}
	defer cli.Close()
	svcReg := svcregistry.New(cli, time.Duration(config.Config.HeartbeatTimeout)*time.Second)

	dispatcher := dispatch.New(svcReg, conductorResolver, config.Config.API.WorkersPoolSiz, time.Duration(config.Config.Conductor.Timeout)*time.Second)

	srv := &httpapi.Server{
		Repo:            repo,
		Dispatcher:      dispatcher,
		SvcReg:          svcReg,
		Resolve:         conductorResolver,
		DispatchTimeout: time.Duration(config.Config.Conductor.Timeout) * time.Second,
		SSHPubKey:       loadSSHPubKey(config.Config.Deploy.SSHPubKeyFile),
	}

	httpSrv := &http.Server{Addr: fmt.Sprintf("%s:%d", config.Config.API.HostIP, config.Config.API.Port), Handler: srv.Routes()}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Ctx(ctx).Err(err).Msg("fleetapi: http server stopped")
		}
	}()

	log.Ctx(ctx).Info().Msgf("fleetapi %v started successfully", Version)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGHUP)
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
			metricsSrvr.Stop()
			log.Ctx(ctx).Info().Msg("fleetapi stopping")
			return nil

		case <-sigChan:
			if err := config.Reload(ctx); err != nil {
				log.Ctx(ctx).Err(err).Msg("config reload")
			}
			srv.SSHPubKey = loadSSHPubKey(config.Config.Deploy.SSHPubKeyFile)
		}
	}
}

func init() {
	rootCMD.PersistentFlags().BoolVarP(&options.Version, "version", "v", false, "print version")
	rootCMD.PersistentFlags().BoolVar(&options.Syslog, "syslog", false, "log to syslog instead of file")
	rootCMD.PersistentFlags().StringVar(&options.LogFile, "log-file", "", "path to file to log to, stdout if not supplied")
	rootCMD.PersistentFlags().StringVar(&options.LogLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")
	rootCMD.PersistentFlags().StringVar(&options.ConfigFile, "config-file", "", "path to config file")
}

func main() {
	if err := rootCMD.Execute(); err != nil {
		os.Exit(1)
	}
}
