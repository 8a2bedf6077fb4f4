package config

import (
	"context"
	"fmt"
	"math"
	"os"

	valid "github.com/asaskevich/govalidator"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	configFileEnvVarname = "FLEETD_CONFIG"
	configFileDftFile    = "/etc/fleetd/fleetd.conf"
	baseDirEnvVarname    = "FLEETD_DATA"
	hostEnvVarname       = "FLEETD_HOST"
)

func isValid(c *FleetConfig) error {
	if len(c.Host) == 0 {
		return fmt.Errorf("missing host value")
	}
	if !valid.IsUnixFilePath(c.BasePath) {
		return fmt.Errorf("invalid data directory value: %v", c.BasePath)
	}
	if !valid.IsUnixFilePath(c.Deploy.TftpDir) {
		return fmt.Errorf("invalid deploy.tftp_dir value: %v", c.Deploy.TftpDir)
	}
	if !valid.IsUnixFilePath(c.Deploy.InstallDir) {
		return fmt.Errorf("invalid deploy.install_dir value: %v", c.Deploy.InstallDir)
	}
	if !valid.InRange(c.Network.OmapiPort, 1, math.Pow(2, 16)-1) {
		return fmt.Errorf("invalid network.omapi_port value: %v", c.Network.OmapiPort)
	}
	if !valid.InRange(c.API.Port, 1, math.Pow(2, 16)-1) {
		return fmt.Errorf("invalid api.port value: %v", c.API.Port)
	}
	if len(c.ClusterUUID) > 0 && !valid.IsUUIDv4(c.ClusterUUID) {
		return fmt.Errorf("invalid cluster_uuid value: %v", c.ClusterUUID)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("invalid heartbeat_interval value: %v", c.HeartbeatInterval)
	}
	if c.HeartbeatTimeout <= c.HeartbeatInterval {
		return fmt.Errorf("heartbeat_timeout must exceed heartbeat_interval")
	}
	return nil
}

func new() *FleetConfig {
	return &FleetConfig{
		BasePath:          "/var/lib/fleetd",
		Host:              "localhost",
		Etcd:              []string{"http://localhost:2379"},
		SupervisordURL:    "http://localhost:9002",
		HeartbeatInterval: 5,
		HeartbeatTimeout:  15,
		Conductor: ConductorConfig{
			Port:                   5241,
			WorkersPoolSize:        50,
			Timeout:                120,
			NodeLockedRetryAttempt: 5,
			NodeLockedRetryInterva: 2,
		},
		API: APIConfig{
			HostIP:         "0.0.0.0",
			Port:           5240,
			WorkersPoolSiz: 50,
			PerGroupCount:  25,
		},
		Network: NetworkConfig{
			Port:         5242,
			OmapiPort:    7911,
			OmapiKeyName: "fleetd-key",
		},
		Deploy: DeployConfig{
			InstallDir:    "/var/lib/fleetd/images",
			TftpDir:       "/var/lib/fleetd/tftp",
			CopycdTimeout: 600,
		},
		Metrics: MetricsConfig{
			Bind: "0.0.0.0",
			Port: 9090,
		},
		Tls: TlsConfig{
			SkipCaCheck: true,
		},
	}
}

func getGlobalConfigFile(filename string) string {
	if len(filename) > 0 {
		return filename
	}

	if f, ok := os.LookupEnv(configFileEnvVarname); ok {
		return f
	}

	return configFileDftFile
}

func loadGlobal(ctx context.Context, filename string) (err error) {
	defer func() {
		log.Ctx(ctx).Err(err).Msgf("configuration file: %s", filename)
	}()

	filename = getGlobalConfigFile(filename)

	newCfg := new()

	if f, ok := os.LookupEnv(baseDirEnvVarname); ok && len(f) > 0 {
		newCfg.BasePath = f
	}
	if h, ok := os.LookupEnv(hostEnvVarname); ok && len(h) > 0 {
		newCfg.Host = h
	}

	if _, statErr := os.Stat(filename); os.IsNotExist(statErr) {
		// not fatal: run on defaults plus environment overrides
		log.Ctx(ctx).Warn().Msg("configuration file does not exist, using defaults")
		if err = isValid(newCfg); err != nil {
			return err
		}
		*Config = *newCfg
		return nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	err = yaml.Unmarshal(data, newCfg)
	if err != nil {
		return
	}

	err = isValid(newCfg)
	if err != nil {
		return
	}

	*Config = *newCfg
	return
}

func saveGlobal(ctx context.Context, filename string) (err error) {
	defer func() {
		log.Ctx(ctx).Err(err).Msgf("save configuration file: %s", filename)
	}()

	filename = getGlobalConfigFile(filename)

	err = isValid(Config)
	if err != nil {
		return
	}

	data, err := yaml.Marshal(Config)
	if err != nil {
		return
	}

	err = os.WriteFile(filename, data, 0644)
	return
}
