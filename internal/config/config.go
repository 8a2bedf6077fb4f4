package config

import (
	"context"
	"errors"
	"path/filepath"
)

var (
	ErrConfigFileNotDefined = errors.New("config file not defined")
	ErrBadTlsConfig         = errors.New("invalid tls configuration")
)

type ConfigKey string
type ctxFilename struct{}

// MetricsConfig controls the bind address and optional TLS material for the
// prometheus exposition endpoint.
type MetricsConfig struct {
	Bind   string `yaml:"bind,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	Cert   string `yaml:"cert,omitempty"`
	Key    string `yaml:"key,omitempty"`
	CACert string `yaml:"ca_cert,omitempty"`
}

// TlsConfig controls the transport security used for the HTTP RPC carried
// between fleetapi, fleetcond and fleetnet.
type TlsConfig struct {
	SkipCaCheck bool   `yaml:"skip_ca_check,omitempty"`
	Cert        string `yaml:"cert,omitempty"`
	Key         string `yaml:"key,omitempty"`
	CACert      string `yaml:"ca_cert,omitempty"`
}

// ConductorConfig configures the per-node worker pool that every conductor
// process runs its RPC handlers against.
type ConductorConfig struct {
	Port                   int     `yaml:"port,omitempty"`
	WorkersPoolSize        int     `yaml:"workers_pool_size,omitempty"`
	Timeout                int     `yaml:"timeout,omitempty"`
	NodeLockedRetryAttempt int     `yaml:"node_locked_retry_attempts,omitempty"`
	NodeLockedRetryInterva float64 `yaml:"node_locked_retry_interval,omitempty"`
}

// APIConfig configures the external HTTP API and the bulk dispatcher it
// hosts.
type APIConfig struct {
	HostIP         string `yaml:"host_ip,omitempty"`
	Port           int    `yaml:"port,omitempty"`
	WorkersPoolSiz int    `yaml:"workers_pool_size,omitempty"`
	PerGroupCount  int    `yaml:"per_group_count,omitempty"`
}

// NetworkConfig configures the DHCP config engine's OMAPI liveness probe.
type NetworkConfig struct {
	Port         int    `yaml:"port,omitempty"`
	OmapiSecret  string `yaml:"omapi_secret,omitempty"`
	OmapiPort    int    `yaml:"omapi_port,omitempty"`
	OmapiKeyName string `yaml:"omapi_key_name,omitempty"`
}

// DeployConfig configures provisioning artifact layout and timeouts.
type DeployConfig struct {
	InstallDir    string `yaml:"install_dir,omitempty"`
	TftpDir       string `yaml:"tftp_dir,omitempty"`
	CopycdTimeout int    `yaml:"copycd_timeout,omitempty"`
	SSHPubKeyFile string `yaml:"ssh_pub_key_file,omitempty"`
}

// FleetConfig is the root configuration shared by fleetapi, fleetcond and
// fleetnet. Every process loads the same file and reads only the sections
// relevant to its role.
type FleetConfig struct {
	BasePath       string      `yaml:"-"`
	SystemID       string      `yaml:"-"`
	Secret         string      `yaml:"-"`
	Host           string      `yaml:"host,omitempty"`
	ClusterUUID    string      `yaml:"cluster_uuid,omitempty"`
	Debug          bool        `yaml:"debug,omitempty"`
	Etcd           StringArray `yaml:"etcd,flow"`
	SupervisordURL string      `yaml:"supervisord,omitempty"`

	HeartbeatInterval float64 `yaml:"heartbeat_interval,omitempty"`
	HeartbeatTimeout  float64 `yaml:"heartbeat_timeout,omitempty"`

	Conductor ConductorConfig `yaml:"conductor,omitempty"`
	API       APIConfig       `yaml:"api,omitempty"`
	Network   NetworkConfig   `yaml:"network,omitempty"`
	Deploy    DeployConfig    `yaml:"deploy,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	Tls       TlsConfig       `yaml:"tls,omitempty"`
}

const (
	systemIDFile ConfigKey = "fleet_id"
	secretFile   ConfigKey = "secret"
)

// Config is the process-wide fleetd configuration, populated by Load.
var (
	Config *FleetConfig = new()
)

func Load(ctx context.Context, filename string) (_ context.Context, err error) {
	err = load(ctx, filename)
	if err != nil {
		return ctx, err
	}

	ctx = context.WithValue(ctx, ctxFilename{}, filename)
	return ctx, nil
}

func Save(ctx context.Context) (err error) {
	fname, ok := ctx.Value(ctxFilename{}).(string)
	if !ok {
		return ErrConfigFileNotDefined
	}

	if err = setConfigToFile(systemIDFile, Config.SystemID); err != nil {
		return
	}
	if err = setConfigToFile(secretFile, Config.Secret); err != nil {
		return
	}

	return saveGlobal(ctx, fname)
}

func Reload(ctx context.Context) (err error) {
	fname, ok := ctx.Value(ctxFilename{}).(string)
	if !ok {
		return ErrConfigFileNotDefined
	}

	return load(ctx, fname)
}

func load(ctx context.Context, filename string) (err error) {
	err = loadGlobal(ctx, filename)
	if err != nil {
		return err
	}

	Config.SystemID, err = getConfigFromFile(systemIDFile)
	if err != nil {
		return err
	}

	Config.Secret, err = getConfigFromFile(secretFile)
	if err != nil {
		return err
	}
	return
}

func getAbsPath(path string) string {
	if !filepath.IsAbs(path) {
		return filepath.Join(Config.BasePath, path)
	}
	return path
}

// GetTftpPath resolves a path relative to deploy.tftp_dir.
func GetTftpPath(path string) string {
	return filepath.Join(getAbsPath(Config.Deploy.TftpDir), path)
}

// GetInstallPath resolves a path relative to deploy.install_dir.
func GetInstallPath(path string) string {
	return filepath.Join(getAbsPath(Config.Deploy.InstallDir), path)
}

func SupervisordURL() string {
	return Config.SupervisordURL
}
