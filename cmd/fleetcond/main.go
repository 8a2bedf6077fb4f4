// Command fleetcond is the conductor process (C7): it runs the per-node
// worker pool against a shard of the node inventory, exposing
// change_power_state/provision/clean/... over the HTTP+JSON RPC transport
// and registering itself with the cluster service registry so the bulk
// dispatcher (C6, hosted by fleetapi) can find it.
//
// Grounded on rackd_spike/cmd/rackd.go's runRoot shape: logger -> config
// load -> signal context -> metrics -> supervisor -> RPC server -> service
// registration -> main select loop. The capnp-specific RPC manager and
// region handshake have no equivalent here (see DESIGN.md); this process
// instead serves rpc.Server directly and registers its own liveness via
// internal/svcregistry.
package main

import (
	"context"
	"fmt"
	"net"
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
	"fleetd/internal/artifacts"
	"fleetd/internal/config"
	"fleetd/internal/conductor"
	"fleetd/internal/copycd"
	"fleetd/internal/drivers/power"
	"fleetd/internal/metrics"
	"fleetd/internal/objects"
	"fleetd/internal/osplugin"
	"fleetd/internal/boot"
	"fleetd/internal/provision"
	"fleetd/internal/registry"
	"fleetd/internal/rpc"
	"fleetd/internal/store"
	"fleetd/internal/svcregistry"
	"fleetd/internal/task"
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
	Use:   "fleetcond",
	Short: "fleetd conductor daemon",
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

// buildRegistry wires every C3 plugin kind against the process config,
// mirroring registerSystemdServices/registerSnapServices in rackd.go's
// role: static, process-wide construction done once before serving.
func buildRegistry() *registry.Registry {
	reg := registry.New()

	reg.RegisterControl(power.NewIPMIControlPlugin())
	reg.RegisterControl(power.NewKVMSSHControlPlugin())
	reg.RegisterControl(power.NewOpenBMCControlPlugin())

	artCfg := artifacts.Config{TftpDir: config.Config.Deploy.TftpDir, InstallDir: config.Config.Deploy.InstallDir}
	reg.RegisterBoot(boot.NewPXEBootPlugin(artCfg))
	reg.RegisterBoot(boot.NewPetitbootBootPlugin(artCfg, config.Config.API.HostIP))

	osCfg := osplugin.Config{
		InstallDir: config.Config.Deploy.InstallDir,
		APIHostIP:  config.Config.API.HostIP,
		APIPort:    config.Config.API.Port,
	}
	reg.RegisterOS(osplugin.NewRedhatOSPlugin(osCfg, ""))
	reg.RegisterOS(osplugin.NewUbuntuOSPlugin(osCfg, ""))

	return reg
}

func networkResolver(hostname string) string {
	return fmt.Sprintf("http://%s:%d/rpc", hostname, config.Config.Network.Port)
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

	reg := buildRegistry()
	tasks := task.NewManager(repo)
	mgr := conductor.NewManager(tasks, config.Config.Host, config.Config.Conductor.WorkersPoolSize,
		time.Duration(config.Config.Conductor.Timeout)*time.Second,
		config.Config.Conductor.NodeLockedRetryAttempt,
		time.Duration(config.Config.Conductor.NodeLockedRetryInterva*float64(time.Second)))

	localIP, err := localBindIP()
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("fleetcond: could not determine local IP, next-server option will be empty")
	}

	serviceID, err := repo.UpsertService(ctx, config.Config.Host, objects.ServiceKindConductor,
		config.Config.Conductor.WorkersPoolSize, true, time.Now().Unix())
	if err != nil {
		return err
	}

	pipeline := &provision.Pipeline{
		Repo:     repo,
		Registry: reg,
		CopyCD: copycd.Config{
			InstallDir: config.Config.Deploy.InstallDir,
			APIHostIP:  config.Config.API.HostIP,
			Timeout:    time.Duration(config.Config.Deploy.CopycdTimeout) * time.Second,
		},
		Notifier: &provision.RPCNotifier{
			Registry:  svcReg,
			Resolver:  networkResolver,
			RPCClient: func(baseURL string) *rpc.Client { return rpc.NewClient(baseURL, 30*time.Second) },
		},
		ServiceID:          serviceID,
		LocalIP:            localIP,
		DefaultCryptMethod: "sha256",
	}

	handlers := &conductor.Handlers{
		Mgr:      mgr,
		Repo:     repo,
		Registry: reg,
		Pipeline: pipeline,
		Artifacts: artifacts.Config{
			TftpDir:    config.Config.Deploy.TftpDir,
			InstallDir: config.Config.Deploy.InstallDir,
		},
	}

	server := rpc.NewServer()
	mgr.Register(server, handlers.EntryPoints())

	mux := http.NewServeMux()
	mux.Handle("/rpc", server)
	httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", config.Config.Conductor.Port), Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Ctx(ctx).Err(err).Msg("fleetcond: rpc server stopped")
		}
	}()

	deregister, err := svcReg.Register(ctx, config.Config.Host, objects.ServiceKindConductor,
		config.Config.Conductor.WorkersPoolSize, nil, time.Duration(config.Config.HeartbeatInterval)*time.Second)
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().Msgf("fleetcond %v started successfully", Version)

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
			log.Ctx(ctx).Info().Msg("fleetcond stopping")
			return nil

		case <-sigChan:
			if err := config.Reload(ctx); err != nil {
				log.Ctx(ctx).Err(err).Msg("config reload")
			}
		}
	}
}

// localBindIP picks the first non-loopback IPv4 address on this host, used
// as the next-server/API host address embedded in rendered DHCP options and
// boot configs when no address is configured explicitly.
func localBindIP() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				return ip4.String(), nil
			}
		}
	}
	return "", fmt.Errorf("fleetcond: no non-loopback IPv4 address found")
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
