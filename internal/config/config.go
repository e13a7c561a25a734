package config

import (
	"time"

	"github.com/olusolaa/cloud-reconciler/internal/adapters/spec/hclspec"
	"github.com/olusolaa/cloud-reconciler/internal/adapters/spec/tfstate"
	"github.com/olusolaa/cloud-reconciler/internal/credentials"
	"github.com/olusolaa/cloud-reconciler/internal/log"
	jsonrep "github.com/olusolaa/cloud-reconciler/internal/reporting/json"
	"github.com/olusolaa/cloud-reconciler/internal/reporting/text"
)

type Config struct {
	Settings    SettingsConfig    `yaml:"settings" mapstructure:"settings"`
	Credentials CredentialsConfig `yaml:"credentials" mapstructure:"credentials"`
	Specs       SpecsConfig       `yaml:"specs" mapstructure:"specs"`
}

type SettingsConfig struct {
	LogLevel  log.Level  `yaml:"log_level" mapstructure:"log_level"`
	LogFormat log.Format `yaml:"log_format" mapstructure:"log_format"`

	// Concurrency bounds how many resources reconcile in parallel.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency" validate:"gte=1,lte=64"`
	// ProviderRPS caps provider API calls per second across the run.
	ProviderRPS int `yaml:"provider_rps" mapstructure:"provider_rps" validate:"gte=0,lte=100"`

	// CheckMode plans and reports without issuing any mutating call.
	CheckMode bool `yaml:"check_mode" mapstructure:"check_mode"`

	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout" mapstructure:"poll_timeout"`

	ReporterType string          `yaml:"reporter" mapstructure:"reporter" validate:"oneof=text json"`
	Reporter     ReporterConfigs `yaml:"reporter_config" mapstructure:"reporter_config"`
}

type CredentialsConfig struct {
	// Source pins resolution to one credential source; empty or "auto"
	// walks the chain in priority order.
	Source         string `yaml:"source" mapstructure:"source" validate:"omitempty,oneof=auto identity session explicit env profile"`
	Profile        string `yaml:"profile" mapstructure:"profile"`
	CredentialFile string `yaml:"credential_file" mapstructure:"credential_file"`
	IdentityID     string `yaml:"identity_id" mapstructure:"identity_id"`
	Region         string `yaml:"region" mapstructure:"region"`
	Partition      string `yaml:"partition" mapstructure:"partition"`
	CertValidation string `yaml:"cert_validation" mapstructure:"cert_validation" validate:"omitempty,oneof=validate ignore"`

	// Explicit key material. Prefer the environment variables; these
	// exist for automation that injects configuration files.
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	SessionToken    string `yaml:"session_token" mapstructure:"session_token"`
}

type SpecsConfig struct {
	// SourceType selects which sub-config is active.
	SourceType string          `yaml:"source" mapstructure:"source" validate:"oneof=hcl tfstate"`
	HCL        *hclspec.Config `yaml:"hcl,omitempty" mapstructure:"hcl"`
	TFState    *tfstate.Config `yaml:"tfstate,omitempty" mapstructure:"tfstate"`
}

type ReporterConfigs struct {
	Text *text.Config    `yaml:"text,omitempty" mapstructure:"text"`
	JSON *jsonrep.Config `yaml:"json,omitempty" mapstructure:"json"`
}

func (c *CredentialsConfig) Params() credentials.Params {
	return credentials.Params{
		Source:          credentials.Source(c.Source),
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		IdentityID:      c.IdentityID,
		Profile:         c.Profile,
		CredentialFile:  c.CredentialFile,
		Region:          c.Region,
		Partition:       c.Partition,
		CertValidation:  credentials.CertValidationMode(c.CertValidation),
	}
}

func DefaultConfig() *Config {
	return &Config{
		Settings: SettingsConfig{
			LogLevel:     log.LevelInfo,
			LogFormat:    log.FormatText,
			Concurrency:  10,
			ProviderRPS:  20,
			ReporterType: text.ReporterTypeText,
			Reporter: ReporterConfigs{
				Text: &text.Config{NoColor: false},
			},
		},
		Credentials: CredentialsConfig{
			Source: string(credentials.SourceAuto),
		},
		Specs: SpecsConfig{
			SourceType: hclspec.SourceTypeHCL,
			HCL:        &hclspec.Config{DirPath: "specs"},
		},
	}
}
