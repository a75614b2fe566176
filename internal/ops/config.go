package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model/enum"
	"main/internal/retry"
	"main/internal/webhook"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Server    ServerConfig           `json:"server"`
	Dispatch  DispatchConfig         `json:"dispatch"`
	Admission AdmissionConfig        `json:"admission"`
	Retry     RetryConfig            `json:"retry"`
	Venues    map[string]VenueConfig `json:"venues"`
	Telegram  *TelegramConfig        `json:"telegram"`
	Profiler  *ProfilerConfig        `json:"profiler"`
}

// ServerConfig defines the listening addresses.
type ServerConfig struct {
	WebhookAddr string `json:"webhookAddr"`
	MetricsAddr string `json:"metricsAddr"`
	EventsHub   *bool  `json:"eventsHub"`
}

// DispatchConfig tunes the pipeline pool and caches.
type DispatchConfig struct {
	Workers              int      `json:"workers"`
	QueueCapacity        int      `json:"queueCapacity"`
	BalanceWindowSeconds int      `json:"balanceWindowSeconds"`
	GasSwapWindowSeconds int      `json:"gasSwapWindowSeconds"`
	FeeRate              string   `json:"feeRate"`
	ExcludedSymbols      []string `json:"excludedSymbols"`
	AssumeNotFoundFilled *bool    `json:"assumeNotFoundFilled"`
}

// AdmissionConfig selects the signal ledger.
type AdmissionConfig struct {
	RetentionDays int             `json:"retentionDays"`
	Postgres      *PostgresConfig `json:"postgres"`
}

// PostgresConfig carries the durable ledger connection.
type PostgresConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	Database   string `json:"database"`
	SSLMode    string `json:"sslMode"`
	ConnString string `json:"connString"`
}

// RetryConfig overrides the default policies field by field.
type RetryConfig struct {
	Request    *PolicyConfig `json:"request"`
	Settlement *PolicyConfig `json:"settlement"`
}

// PolicyConfig is one retry policy in wire form.
type PolicyConfig struct {
	MaxAttempts       int   `json:"maxAttempts"`
	BaseDelaySeconds  int   `json:"baseDelaySeconds"`
	AttemptMultiplier *bool `json:"attemptMultiplier"`
}

// VenueConfig describes one venue entry, keyed by venue name.
type VenueConfig struct {
	Credentials webhook.Credentials `json:"credentials"`

	BaseURL   string `json:"baseUrl"`
	AccessID  string `json:"accessId"`
	SecretKey string `json:"secretKey"`

	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`

	RPCURL          string `json:"rpcUrl"`
	RouterURL       string `json:"routerUrl"`
	WalletAddress   string `json:"walletAddress"`
	SettlementAsset string `json:"settlementAsset"`
	ReserveTarget   string `json:"reserveTarget"`
	MaxGasPriceWei  string `json:"maxGasPriceWei"`
}

// TelegramConfig enables the Telegram notifier.
type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID string `json:"chatId"`
}

// ProfilerConfig enables continuous profiling.
type ProfilerConfig struct {
	Server string `json:"server"`
	Env    string `json:"env"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Server     ServerSpec
	Dispatch   DispatchSpec
	Admission  AdmissionSpec
	Request    retry.Policy
	Settlement retry.Policy
	Venues     map[enum.Venue]VenueConfig
	Telegram   *TelegramConfig
	Profiler   *ProfilerConfig
}

// ServerSpec is the resolved server section.
type ServerSpec struct {
	WebhookAddr string
	MetricsAddr string
	EventsHub   bool
}

// DispatchSpec is the resolved dispatch section.
type DispatchSpec struct {
	Workers              int
	QueueCapacity        int
	BalanceWindow        time.Duration
	GasSwapWindow        time.Duration
	FeeRate              decimal.Decimal
	ExcludedSymbols      []string
	AssumeNotFoundFilled bool
}

// AdmissionSpec is the resolved admission section.
type AdmissionSpec struct {
	Retention time.Duration
	Postgres  *PostgresConfig
}

// Load reads a JSON config file, validates it, and applies defaults.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	server, err := resolveServer(cfg.Server)
	if err != nil {
		return Loaded{}, err
	}
	dispatch, err := resolveDispatch(cfg.Dispatch)
	if err != nil {
		return Loaded{}, err
	}
	admission, err := resolveAdmission(cfg.Admission)
	if err != nil {
		return Loaded{}, err
	}
	venues, err := resolveVenues(cfg.Venues)
	if err != nil {
		return Loaded{}, err
	}
	if cfg.Telegram != nil && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "") {
		return Loaded{}, fmt.Errorf("telegram requires both token and chatId")
	}
	if cfg.Profiler != nil && cfg.Profiler.Server == "" {
		return Loaded{}, fmt.Errorf("profiler requires a server address")
	}

	return Loaded{
		Server:     server,
		Dispatch:   dispatch,
		Admission:  admission,
		Request:    resolvePolicy(cfg.Retry.Request, retry.RequestPolicy()),
		Settlement: resolvePolicy(cfg.Retry.Settlement, retry.SettlementPolicy()),
		Venues:     venues,
		Telegram:   cfg.Telegram,
		Profiler:   cfg.Profiler,
	}, nil
}

func resolveServer(cfg ServerConfig) (ServerSpec, error) {
	spec := ServerSpec{
		WebhookAddr: cfg.WebhookAddr,
		MetricsAddr: cfg.MetricsAddr,
		EventsHub:   true,
	}
	if spec.WebhookAddr == "" {
		spec.WebhookAddr = ":8080"
	}
	if spec.MetricsAddr == "" {
		spec.MetricsAddr = ":9090"
	}
	if cfg.EventsHub != nil {
		spec.EventsHub = *cfg.EventsHub
	}
	return spec, nil
}

func resolveDispatch(cfg DispatchConfig) (DispatchSpec, error) {
	spec := DispatchSpec{
		Workers:              cfg.Workers,
		QueueCapacity:        cfg.QueueCapacity,
		BalanceWindow:        2 * time.Minute,
		GasSwapWindow:        5 * time.Minute,
		ExcludedSymbols:      cfg.ExcludedSymbols,
		AssumeNotFoundFilled: true,
	}
	if cfg.Workers < 0 || cfg.QueueCapacity < 0 {
		return DispatchSpec{}, fmt.Errorf("dispatch workers and queueCapacity must be >= 0")
	}
	if cfg.BalanceWindowSeconds > 0 {
		spec.BalanceWindow = time.Duration(cfg.BalanceWindowSeconds) * time.Second
	}
	if cfg.GasSwapWindowSeconds > 0 {
		spec.GasSwapWindow = time.Duration(cfg.GasSwapWindowSeconds) * time.Second
	}
	if cfg.FeeRate != "" {
		rate, err := decimal.NewFromString(cfg.FeeRate)
		if err != nil {
			return DispatchSpec{}, fmt.Errorf("invalid feeRate: %w", err)
		}
		if rate.IsNegative() {
			return DispatchSpec{}, fmt.Errorf("feeRate must be >= 0")
		}
		spec.FeeRate = rate
	}
	if cfg.AssumeNotFoundFilled != nil {
		spec.AssumeNotFoundFilled = *cfg.AssumeNotFoundFilled
	}
	return spec, nil
}

func resolveAdmission(cfg AdmissionConfig) (AdmissionSpec, error) {
	days := cfg.RetentionDays
	if days == 0 {
		days = 5
	}
	if days < 0 {
		return AdmissionSpec{}, fmt.Errorf("admission retentionDays must be >= 0")
	}
	return AdmissionSpec{
		Retention: time.Duration(days) * 24 * time.Hour,
		Postgres:  cfg.Postgres,
	}, nil
}

func resolveVenues(cfg map[string]VenueConfig) (map[enum.Venue]VenueConfig, error) {
	if len(cfg) == 0 {
		return nil, fmt.Errorf("at least one venue must be configured")
	}
	venues := make(map[enum.Venue]VenueConfig, len(cfg))
	for name, venueCfg := range cfg {
		v, ok := enum.ParseVenue(name)
		if !ok {
			return nil, fmt.Errorf("unknown venue: %s", name)
		}
		if venueCfg.Credentials.Secret == "" || venueCfg.Credentials.Key == "" {
			return nil, fmt.Errorf("venue %s requires webhook credentials", name)
		}
		venues[v] = venueCfg
	}
	return venues, nil
}

func resolvePolicy(cfg *PolicyConfig, base retry.Policy) retry.Policy {
	if cfg == nil {
		return base
	}
	if cfg.MaxAttempts > 0 {
		base.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelaySeconds > 0 {
		base.BaseDelay = time.Duration(cfg.BaseDelaySeconds) * time.Second
	}
	if cfg.AttemptMultiplier != nil {
		base.AttemptMultiplier = *cfg.AttemptMultiplier
	}
	return base
}
