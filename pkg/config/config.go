package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/pkg/namespace"
)

const (
	FlagPrefixMovement = "movement."

	// Base configuration flags

	// FlagRootDir is a flag for specifying the root directory
	FlagRootDir = "home"
	// FlagDBPath is a flag for specifying the database path
	FlagDBPath = FlagPrefixMovement + "db_path"

	// DA light node configuration flags

	// FlagDAProtocol is a flag for specifying the light node RPC protocol
	FlagDAProtocol = FlagPrefixMovement + "da.light_node.protocol"
	// FlagDAHost is a flag for specifying the light node RPC host
	FlagDAHost = FlagPrefixMovement + "da.light_node.host"
	// FlagDAPort is a flag for specifying the light node RPC port
	FlagDAPort = FlagPrefixMovement + "da.light_node.port"
	// FlagDAHTTP1 selects the HTTP/1.1 wire variant of the light node client
	FlagDAHTTP1 = FlagPrefixMovement + "da.light_node.http1"
	// FlagDAInitialHeight is a flag for specifying the DA height considered synced on first start
	FlagDAInitialHeight = FlagPrefixMovement + "da.light_node.initial_height"
	// FlagDANamespace is a flag for specifying the DA namespace
	FlagDANamespace = FlagPrefixMovement + "da.light_node.namespace"
	// FlagDAAuthToken is a flag for specifying the light node auth token
	FlagDAAuthToken = FlagPrefixMovement + "da.light_node.auth_token" // #nosec G101
	// FlagDABlockTime is a flag for specifying the DA block time
	FlagDABlockTime = FlagPrefixMovement + "da.light_node.block_time"
	// FlagDARequestTimeout controls the per-request timeout when talking to the light node
	FlagDARequestTimeout = FlagPrefixMovement + "da.light_node.request_timeout"

	// FlagDaDBPath is a flag for specifying the sync store path
	FlagDaDBPath = FlagPrefixMovement + "da_db.path"

	// Execution configuration flags

	// FlagExecutionChainID is a flag for specifying the chain identifier
	FlagExecutionChainID = FlagPrefixMovement + "execution.chain_id"
	// FlagExecutionDBName is a flag for specifying the execution state database name
	FlagExecutionDBName = FlagPrefixMovement + "execution.db_name"
	// FlagExecutionAPIAddress is a flag for specifying the execution API listen address
	FlagExecutionAPIAddress = FlagPrefixMovement + "execution.api_address"
	// FlagExecutionMaxTxInFlight is a flag for specifying the load shedding limit
	FlagExecutionMaxTxInFlight = FlagPrefixMovement + "execution.load_shedding.max_transactions_in_flight"
	// FlagExecutionBatchProductionTime is a flag for specifying the batch production interval
	FlagExecutionBatchProductionTime = FlagPrefixMovement + "execution.load_shedding.batch_production_time"
	// FlagFinalizeOnAccept marks blocks final once their commitment is accepted
	FlagFinalizeOnAccept = FlagPrefixMovement + "execution_extension.finalize_on_accept"

	// Settlement configuration flags

	// FlagSettlementEnabled is a flag for enabling settlement
	FlagSettlementEnabled = FlagPrefixMovement + "settlement.enabled"
	// FlagSettlementClientType is a flag for selecting the settlement client
	FlagSettlementClientType = FlagPrefixMovement + "settlement.client_type"
	// FlagSettlementRPCAddress is a flag for specifying the settlement chain RPC address
	FlagSettlementRPCAddress = FlagPrefixMovement + "settlement.rpc_address"
	// FlagSettlementContractAddress is a flag for specifying the settlement contract address
	FlagSettlementContractAddress = FlagPrefixMovement + "settlement.contract_address"
	// FlagSettlementSignerKey is a flag for specifying the hex encoded signer private key
	FlagSettlementSignerKey = FlagPrefixMovement + "settlement.signer_private_key" // #nosec G101
	// FlagSettlementChainID is a flag for specifying the settlement chain id
	FlagSettlementChainID = FlagPrefixMovement + "settlement.chain_id"
	// FlagSettlementGasLimit is a flag for specifying the commitment transaction gas limit
	FlagSettlementGasLimit = FlagPrefixMovement + "settlement.gas_limit"
	// FlagSettlementPollInterval is a flag for specifying the acceptance polling interval
	FlagSettlementPollInterval = FlagPrefixMovement + "settlement.poll_interval"
	// FlagSettlementMaxAttempts is a flag for specifying the submission attempts per commitment
	FlagSettlementMaxAttempts = FlagPrefixMovement + "settlement.max_attempts"
	// FlagSettlementQueueSize is a flag for specifying the commitment queue size
	FlagSettlementQueueSize = FlagPrefixMovement + "settlement.queue_size"

	// RPC configuration flags

	// FlagRPCAddress is a flag for specifying the REST API address
	FlagRPCAddress = FlagPrefixMovement + "rpc.address"

	// Instrumentation configuration flags

	// FlagPrometheus is a flag for enabling Prometheus metrics
	FlagPrometheus = FlagPrefixMovement + "instrumentation.prometheus"
	// FlagPrometheusListenAddr is a flag for specifying the Prometheus listen address
	FlagPrometheusListenAddr = FlagPrefixMovement + "instrumentation.prometheus_listen_addr"
	// FlagMaxOpenConnections is a flag for specifying the maximum number of open connections
	FlagMaxOpenConnections = FlagPrefixMovement + "instrumentation.max_open_connections"
	// FlagPprof is a flag for enabling pprof profiling endpoints
	FlagPprof = FlagPrefixMovement + "instrumentation.pprof"
	// FlagPprofListenAddr is a flag for specifying the pprof listen address
	FlagPprofListenAddr = FlagPrefixMovement + "instrumentation.pprof_listen_addr"
	// FlagTracing enables OpenTelemetry tracing
	FlagTracing = FlagPrefixMovement + "instrumentation.tracing"
	// FlagTracingEndpoint configures the OTLP endpoint (host:port)
	FlagTracingEndpoint = FlagPrefixMovement + "instrumentation.tracing_endpoint"
	// FlagTracingServiceName configures the service.name resource attribute
	FlagTracingServiceName = FlagPrefixMovement + "instrumentation.tracing_service_name"
	// FlagTracingSampleRate configures the TraceID ratio sampler
	FlagTracingSampleRate = FlagPrefixMovement + "instrumentation.tracing_sample_rate"

	// Logging configuration flags

	// FlagLogLevel is a flag for specifying the log level
	FlagLogLevel = FlagPrefixMovement + "log.level"
	// FlagLogFormat is a flag for specifying the log format
	FlagLogFormat = FlagPrefixMovement + "log.format"
	// FlagLogTrace is a flag for enabling stack traces in error logs
	FlagLogTrace = FlagPrefixMovement + "log.trace"
)

const (
	// SettlementClientEth settles on an EVM chain.
	SettlementClientEth = "eth"
	// SettlementClientMock settles against an in-memory client.
	SettlementClientMock = "mock"
)

// Config stores the partial node configuration.
type Config struct {
	RootDir string `mapstructure:"-" yaml:"-" comment:"Root directory where movement files are located"`

	// Base configuration
	DBPath string `mapstructure:"db_path" yaml:"db_path" comment:"Path inside the root directory where the databases are located"`

	// Data availability configuration
	DA DAConfig `mapstructure:"da" yaml:"da"`

	// Durable sync store configuration
	DaDB DaDBConfig `mapstructure:"da_db" yaml:"da_db"`

	// Execution engine configuration
	Execution execution.Config `mapstructure:"execution" yaml:"execution"`

	ExecutionExtension ExecutionExtensionConfig `mapstructure:"execution_extension" yaml:"execution_extension"`

	// Settlement configuration
	Settlement SettlementConfig `mapstructure:"settlement" yaml:"settlement"`

	// RPC configuration
	RPC RPCConfig `mapstructure:"rpc" yaml:"rpc"`

	// Instrumentation configuration
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation" yaml:"instrumentation"`

	// Logging configuration
	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// DAConfig contains all Data Availability configuration parameters
type DAConfig struct {
	LightNode LightNodeConfig `mapstructure:"light_node" yaml:"light_node"`
}

// LightNodeConfig describes the connection to the DA light node.
type LightNodeConfig struct {
	Protocol       string          `mapstructure:"protocol" yaml:"protocol" comment:"Protocol of the light node RPC endpoint (http, https)"`
	Host           string          `mapstructure:"host" yaml:"host" comment:"Host of the light node RPC endpoint"`
	Port           uint16          `mapstructure:"port" yaml:"port" comment:"Port of the light node RPC endpoint"`
	HTTP1          bool            `mapstructure:"http1" yaml:"http1" comment:"Use the HTTP/1.1 client instead of cleartext HTTP/2"`
	InitialHeight  uint64          `mapstructure:"initial_height" yaml:"initial_height" comment:"DA height considered synced on first start. Ingestion starts at the next height."`
	Namespace      string          `mapstructure:"namespace" yaml:"namespace" comment:"Namespace batches are read from and submitted to. A 0x-prefixed value is taken as raw namespace bytes, anything else is hashed into a v0 namespace."`
	AuthToken      string          `mapstructure:"auth_token" yaml:"auth_token" comment:"Authentication token for the light node RPC endpoint"`
	BlockTime      DurationWrapper `mapstructure:"block_time" yaml:"block_time" comment:"Average block time of the DA chain (duration). Heights from the future are polled at this interval. Examples: \"6s\", \"15s\"."`
	RequestTimeout DurationWrapper `mapstructure:"request_timeout" yaml:"request_timeout" comment:"Timeout for requests to the light node"`
}

// URL returns the light node RPC endpoint.
func (l LightNodeConfig) URL() string {
	return fmt.Sprintf("%s://%s:%d", l.Protocol, l.Host, l.Port)
}

// DaDBConfig contains the durable sync store parameters.
type DaDBConfig struct {
	Path string `mapstructure:"path" yaml:"path" comment:"Path of the sync store, relative paths are resolved against db_path"`
}

// ExecutionExtensionConfig tunes how the node drives the execution engine.
type ExecutionExtensionConfig struct {
	FinalizeOnAccept bool `mapstructure:"finalize_on_accept" yaml:"finalize_on_accept" comment:"Mark executed blocks final once their commitment is accepted by the settlement layer"`
}

// SettlementConfig contains the settlement client and manager parameters.
type SettlementConfig struct {
	Enabled          bool            `mapstructure:"enabled" yaml:"enabled" comment:"Post state commitments to the settlement layer"`
	ClientType       string          `mapstructure:"client_type" yaml:"client_type" comment:"Settlement client (eth, mock)"`
	RPCAddress       string          `mapstructure:"rpc_address" yaml:"rpc_address" comment:"RPC endpoint of the settlement chain"`
	ContractAddress  string          `mapstructure:"contract_address" yaml:"contract_address" comment:"Address of the settlement contract"`
	SignerPrivateKey string          `mapstructure:"signer_private_key" yaml:"signer_private_key" comment:"Hex encoded private key used to sign commitment transactions"`
	ChainID          uint64          `mapstructure:"chain_id" yaml:"chain_id" comment:"Chain id of the settlement chain, 0 reads it from the RPC endpoint"`
	GasLimit         uint64          `mapstructure:"gas_limit" yaml:"gas_limit" comment:"Gas limit of commitment transactions, 0 estimates it"`
	PollInterval     DurationWrapper `mapstructure:"poll_interval" yaml:"poll_interval" comment:"Interval at which acceptance events are polled"`
	MaxAttempts      int             `mapstructure:"max_attempts" yaml:"max_attempts" comment:"Maximum number of attempts to submit a commitment before reporting it failed"`
	QueueSize        int             `mapstructure:"queue_size" yaml:"queue_size" comment:"Number of commitments that may wait for submission"`
}

// ShouldSettle reports whether the node runs a settlement subsystem.
func (s SettlementConfig) ShouldSettle() bool {
	return s.Enabled
}

// Validate checks the settlement parameters when settlement is enabled.
func (s SettlementConfig) Validate() error {
	if !s.ShouldSettle() {
		return nil
	}

	var multiErr error
	switch s.ClientType {
	case SettlementClientMock:
	case SettlementClientEth:
		if s.RPCAddress == "" {
			multiErr = errors.Join(multiErr, fmt.Errorf("settlement rpc address is required"))
		}
		if !common.IsHexAddress(s.ContractAddress) {
			multiErr = errors.Join(multiErr, fmt.Errorf("invalid settlement contract address %q", s.ContractAddress))
		}
		if strings.TrimPrefix(s.SignerPrivateKey, "0x") == "" {
			multiErr = errors.Join(multiErr, fmt.Errorf("settlement signer private key is required"))
		}
	default:
		multiErr = errors.Join(multiErr, fmt.Errorf("unknown settlement client type %q", s.ClientType))
	}
	if s.MaxAttempts <= 0 {
		multiErr = errors.Join(multiErr, fmt.Errorf("settlement max attempts must be positive"))
	}
	if s.QueueSize <= 0 {
		multiErr = errors.Join(multiErr, fmt.Errorf("settlement queue size must be positive"))
	}
	if s.PollInterval.Duration <= 0 {
		multiErr = errors.Join(multiErr, fmt.Errorf("settlement poll interval must be positive"))
	}
	return multiErr
}

// LogConfig contains all logging configuration parameters
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" comment:"Log level (debug, info, warn, error)"`
	Format string `mapstructure:"format" yaml:"format" comment:"Log format (text, json)"`
	Trace  bool   `mapstructure:"trace" yaml:"trace" comment:"Enable stack traces in error logs"`
}

// RPCConfig contains all RPC server configuration parameters
type RPCConfig struct {
	Address string `mapstructure:"address" yaml:"address" comment:"Address to bind the REST API server to (host:port). Default: 127.0.0.1:30832"`
}

// Validate validates the config and ensures that the root directory exists.
// It creates the directory if it does not exist.
func (c *Config) Validate() error {
	if c.RootDir == "" {
		return fmt.Errorf("root directory cannot be empty")
	}

	fullDir := filepath.Dir(c.ConfigPath())
	if err := os.MkdirAll(fullDir, 0o750); err != nil {
		return fmt.Errorf("could not create directory %q: %w", fullDir, err)
	}

	ln := c.DA.LightNode
	if ln.Protocol != "http" && ln.Protocol != "https" {
		return fmt.Errorf("unsupported light node protocol %q", ln.Protocol)
	}
	if ln.Host == "" {
		return fmt.Errorf("light node host cannot be empty")
	}
	if ln.Port == 0 {
		return fmt.Errorf("light node port cannot be zero")
	}
	if _, err := url.Parse(ln.URL()); err != nil {
		return fmt.Errorf("invalid light node url: %w", err)
	}
	if _, err := namespace.Resolve(ln.Namespace); err != nil {
		return fmt.Errorf("could not validate namespace (%s): %w", ln.Namespace, err)
	}

	if c.Execution.ChainID == "" {
		return fmt.Errorf("execution chain id cannot be empty")
	}
	if c.Execution.LoadShedding.BatchProductionTime <= 0 {
		return fmt.Errorf("batch production time must be positive")
	}

	if err := c.Settlement.Validate(); err != nil {
		return err
	}
	if c.Instrumentation != nil {
		if err := c.Instrumentation.ValidateBasic(); err != nil {
			return err
		}
	}
	return nil
}

// ConfigPath returns the path to the configuration file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.RootDir, AppConfigDir, ConfigName)
}

// DBDir returns the absolute directory holding the node databases.
func (c *Config) DBDir() string {
	if filepath.IsAbs(c.DBPath) {
		return c.DBPath
	}
	return filepath.Join(c.RootDir, c.DBPath)
}

// DaDBPath returns the absolute path of the sync store.
func (c *Config) DaDBPath() string {
	if filepath.IsAbs(c.DaDB.Path) {
		return c.DaDB.Path
	}
	return filepath.Join(c.DBDir(), c.DaDB.Path)
}

// ExecutionDBPath returns the absolute path of the execution state database.
func (c *Config) ExecutionDBPath() string {
	return filepath.Join(c.DBDir(), c.Execution.DBName)
}

// AddGlobalFlags registers the basic configuration flags that are common across applications.
// This includes logging configuration and root directory settings.
func AddGlobalFlags(cmd *cobra.Command, defaultHome string) {
	def := DefaultConfig()

	cmd.PersistentFlags().String(FlagLogLevel, def.Log.Level, "Set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().String(FlagLogFormat, def.Log.Format, "Set the log format (text, json)")
	cmd.PersistentFlags().Bool(FlagLogTrace, def.Log.Trace, "Enable stack traces in error logs")
	cmd.PersistentFlags().String(FlagRootDir, DefaultRootDirWithName(defaultHome), "Root directory for application data")
}

// AddFlags adds the partial node configuration options to cobra Command.
func AddFlags(cmd *cobra.Command) {
	def := DefaultConfig()

	cmd.Flags().String(FlagDBPath, def.DBPath, "path for the node databases")

	// DA light node flags
	cmd.Flags().String(FlagDAProtocol, def.DA.LightNode.Protocol, "light node RPC protocol (http, https)")
	cmd.Flags().String(FlagDAHost, def.DA.LightNode.Host, "light node RPC host")
	cmd.Flags().Uint16(FlagDAPort, def.DA.LightNode.Port, "light node RPC port")
	cmd.Flags().Bool(FlagDAHTTP1, def.DA.LightNode.HTTP1, "connect to the light node over HTTP/1.1 instead of cleartext HTTP/2")
	cmd.Flags().Uint64(FlagDAInitialHeight, def.DA.LightNode.InitialHeight, "DA height considered synced on first start")
	cmd.Flags().String(FlagDANamespace, def.DA.LightNode.Namespace, "DA namespace")
	cmd.Flags().String(FlagDAAuthToken, def.DA.LightNode.AuthToken, "light node auth token")
	cmd.Flags().Duration(FlagDABlockTime, def.DA.LightNode.BlockTime.Duration, "DA chain block time")
	cmd.Flags().Duration(FlagDARequestTimeout, def.DA.LightNode.RequestTimeout.Duration, "per-request timeout when talking to the light node")
	cmd.Flags().String(FlagDaDBPath, def.DaDB.Path, "sync store path, relative to the db path")

	// Execution flags
	cmd.Flags().String(FlagExecutionChainID, def.Execution.ChainID, "chain identifier")
	cmd.Flags().String(FlagExecutionDBName, def.Execution.DBName, "execution state database name")
	cmd.Flags().String(FlagExecutionAPIAddress, def.Execution.APIAddress, "execution API services address (host:port)")
	cmd.Flags().Uint64(FlagExecutionMaxTxInFlight, def.Execution.LoadShedding.MaxTransactionsInFlight, "maximum transactions in flight before new ones are rejected (0 for no limit)")
	cmd.Flags().Duration(FlagExecutionBatchProductionTime, def.Execution.LoadShedding.BatchProductionTime, "time between two batch productions")
	cmd.Flags().Bool(FlagFinalizeOnAccept, def.ExecutionExtension.FinalizeOnAccept, "mark blocks final once their commitment is accepted")

	// Settlement flags
	cmd.Flags().Bool(FlagSettlementEnabled, def.Settlement.Enabled, "post state commitments to the settlement layer")
	cmd.Flags().String(FlagSettlementClientType, def.Settlement.ClientType, "settlement client (eth, mock)")
	cmd.Flags().String(FlagSettlementRPCAddress, def.Settlement.RPCAddress, "settlement chain RPC address")
	cmd.Flags().String(FlagSettlementContractAddress, def.Settlement.ContractAddress, "settlement contract address")
	cmd.Flags().String(FlagSettlementSignerKey, def.Settlement.SignerPrivateKey, "hex encoded settlement signer private key")
	cmd.Flags().Uint64(FlagSettlementChainID, def.Settlement.ChainID, "settlement chain id (0 reads it from the RPC endpoint)")
	cmd.Flags().Uint64(FlagSettlementGasLimit, def.Settlement.GasLimit, "commitment transaction gas limit (0 estimates it)")
	cmd.Flags().Duration(FlagSettlementPollInterval, def.Settlement.PollInterval.Duration, "acceptance polling interval")
	cmd.Flags().Int(FlagSettlementMaxAttempts, def.Settlement.MaxAttempts, "maximum submission attempts per commitment")
	cmd.Flags().Int(FlagSettlementQueueSize, def.Settlement.QueueSize, "number of commitments that may wait for submission")

	// RPC configuration flags
	cmd.Flags().String(FlagRPCAddress, def.RPC.Address, "REST API server address (host:port)")

	// Instrumentation configuration flags
	instrDef := DefaultInstrumentationConfig()
	cmd.Flags().Bool(FlagPrometheus, instrDef.Prometheus, "enable Prometheus metrics")
	cmd.Flags().String(FlagPrometheusListenAddr, instrDef.PrometheusListenAddr, "Prometheus metrics listen address")
	cmd.Flags().Int(FlagMaxOpenConnections, instrDef.MaxOpenConnections, "maximum number of simultaneous connections for metrics")
	cmd.Flags().Bool(FlagPprof, instrDef.Pprof, "enable pprof HTTP endpoint")
	cmd.Flags().String(FlagPprofListenAddr, instrDef.PprofListenAddr, "pprof HTTP server listening address")
	cmd.Flags().Bool(FlagTracing, instrDef.Tracing, "enable OpenTelemetry tracing")
	cmd.Flags().String(FlagTracingEndpoint, instrDef.TracingEndpoint, "OTLP endpoint for traces (host:port)")
	cmd.Flags().String(FlagTracingServiceName, instrDef.TracingServiceName, "OpenTelemetry service.name")
	cmd.Flags().Float64(FlagTracingSampleRate, instrDef.TracingSampleRate, "trace sampling rate (0.0-1.0)")
}

// Load loads the node configuration in the following order of precedence:
// 1. DefaultConfig() (lowest priority)
// 2. YAML configuration file
// 3. Environment variables and command line flags (highest priority)
func Load(cmd *cobra.Command) (Config, error) {
	home, err := resolveHome(cmd.Flags().Lookup(FlagRootDir))
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigExtension)
	v.AddConfigPath(filepath.Join(home, AppConfigDir))
	v.SetConfigFile(filepath.Join(home, AppConfigDir, ConfigName))
	v.AutomaticEnv()

	executableName, err := os.Executable()
	if err != nil {
		return Config{}, err
	}

	// the configuration file is optional, defaults apply when it is missing
	_ = v.ReadInConfig()

	if err := bindFlags(path.Base(executableName), cmd, v); err != nil {
		return Config{}, err
	}

	return loadFromViper(v, home)
}

func resolveHome(flag *pflag.Flag) (string, error) {
	home := ""
	if flag != nil {
		home = flag.Value.String()
	}
	if home == "" {
		return DefaultRootDir, nil
	}
	if filepath.IsAbs(home) {
		return home, nil
	}
	absHome, err := filepath.Abs(home)
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return absHome, nil
}

// loadFromViper decodes a viper instance on top of the defaults.
func loadFromViper(v *viper.Viper, home string) (Config, error) {
	cfg := DefaultConfig()
	cfg.RootDir = home

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			func(f reflect.Type, t reflect.Type, data any) (any, error) {
				if t != reflect.TypeOf(DurationWrapper{}) {
					return data, nil
				}
				switch v := data.(type) {
				case string:
					duration, err := time.ParseDuration(v)
					if err != nil {
						return nil, err
					}
					return DurationWrapper{Duration: duration}, nil
				case time.Duration:
					return DurationWrapper{Duration: v}, nil
				}
				return data, nil
			},
		),
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, errors.Join(ErrReadYaml, fmt.Errorf("failed creating decoder: %w", err))
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return cfg, errors.Join(ErrReadYaml, fmt.Errorf("failed decoding viper: %w", err))
	}

	return cfg, nil
}

// bindFlags binds every flag to its config key and to a <BINARY>_<KEY> environment variable.
func bindFlags(basename string, cmd *cobra.Command, v *viper.Viper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bindFlags failed: %v", r)
		}
	}()

	bind := func(f *pflag.Flag) {
		key := strings.TrimPrefix(f.Name, FlagPrefixMovement)
		if key == FlagRootDir {
			return
		}

		env := strings.ToUpper(basename + "_" + strings.NewReplacer(".", "_", "-", "_").Replace(key))
		if err := v.BindEnv(key, env); err != nil {
			panic(err)
		}

		// flags only override the file and the environment when set explicitly
		if f.Changed {
			v.Set(key, flagValue(f))
		} else if !v.IsSet(key) {
			v.SetDefault(key, flagValue(f))
		}
	}

	cmd.Flags().VisitAll(bind)
	return err
}

// flagValue returns the typed value of a flag for viper.
func flagValue(f *pflag.Flag) any {
	switch f.Value.Type() {
	case "bool":
		b, _ := strconv.ParseBool(f.Value.String())
		return b
	case "duration":
		d, _ := time.ParseDuration(f.Value.String())
		return d
	}
	return f.Value.String()
}
