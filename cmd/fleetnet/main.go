// Command fleetnet is the network-service worker (C9): it matches the
// configured Networks against this host's local interfaces, renders and
// supervises the ISC dhcpd daemon(s) for whichever subnets it locally
// covers, and answers the conductor's provision-callback DHCP RPCs
// (enable_dhcp_option/restart_dhcp/check_support/get_status).
//
// Grounded on cmd/fleetcond's runRoot shape for the ambient stack (logger
// -> config load -> signal context -> metrics -> store -> RPC server ->
// service registration -> main select loop); the dhcpd supervision itself
// is internal/dhcp, kept from the teacher's process-supervision code
// (internal/service) and wired here instead of the capnp rack role it
// originally served.
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
	"fleetd/internal/dhcp"
	"fleetd/internal/dhcpengine"
	"fleetd/internal/metrics"
	"fleetd/internal/objects"
	"fleetd/internal/rpc"
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
	Use:   "fleetnet",
	Short: "fleetd network-service (DHCP) daemon",
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

// buildDhcpServices picks systemd or supervisord-backed dhcpd/dhcpd6
// services depending on whether a supervisord endpoint is configured,
// mirroring internal/dhcp/service.go's two backends.
func buildDhcpServices(ctx context.Context) (dhcp.DhcpService, dhcp.DhcpService, error) {
	if url := config.SupervisordURL(); url != "" {
		d4, err := dhcp.NewDhcpdSupervisordService(url)
		if err != nil {
			return nil, nil, err
		}
		d6, err := dhcp.NewDhcpd6SupervisordService(url)
		if err != nil {
			return nil, nil, err
		}
		return d4.(dhcp.DhcpService), d6.(dhcp.DhcpService), nil
	}

	d4, err := dhcp.NewDhcpdSystemdService(ctx)
	if err != nil {
		return nil, nil, err
	}
	d6, err := dhcp.NewDhcpd6SystemdService(ctx)
	if err != nil {
		return nil, nil, err
	}
	return d4.(dhcp.DhcpService), d6.(dhcp.DhcpService), nil
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

	dhcp4, dhcp6, err := buildDhcpServices(ctx)
	if err != nil {
		return err
	}

	engine, err := dhcpengine.New(repo, dhcp4, dhcp6, config.Config.Network.OmapiPort,
		config.Config.Network.OmapiSecret, config.Config.Network.OmapiKeyName)
	if err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		log.Ctx(ctx).Err(err).Msg("fleetnet: initial dhcpd config/start failed")
	}

	if _, err := repo.UpsertService(ctx, config.Config.Host, objects.ServiceKindNetwork,
		1, true, time.Now().Unix()); err != nil {
		return err
	}

	server := rpc.NewServer()
	engine.Register(server)

	mux := http.NewServeMux()
	mux.Handle("/rpc", server)
	httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", config.Config.Network.Port), Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Ctx(ctx).Err(err).Msg("fleetnet: rpc server stopped")
		}
	}()

	deregister, err := svcReg.Register(ctx, config.Config.Host, objects.ServiceKindNetwork,
		1, engine.Subnets(), time.Duration(config.Config.HeartbeatInterval)*time.Second)
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().Msgf("fleetnet %v started successfully", Version)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGHUP)
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			deregister()
			_ = httpSrv.Shutdown(shutdownCtx)
			metricsSrvr.Stop()
			log.Ctx(ctx).Info().Msg("fleetnet stopping")
			return nil

		case <-sigChan:
			if err := config.Reload(ctx); err != nil {
				log.Ctx(ctx).Err(err).Msg("config reload")
			}
			if err := engine.Rebuild(ctx); err != nil {
				log.Ctx(ctx).Err(err).Msg("fleetnet: rebuild on reload failed")
			}
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
