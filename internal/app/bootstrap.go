package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/olusolaa/cloud-reconciler/internal/adapters/platform/ec2"
	"github.com/olusolaa/cloud-reconciler/internal/adapters/platform/limiter"
	"github.com/olusolaa/cloud-reconciler/internal/adapters/spec/hclspec"
	"github.com/olusolaa/cloud-reconciler/internal/adapters/spec/tfstate"
	"github.com/olusolaa/cloud-reconciler/internal/config"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/core/service"
	"github.com/olusolaa/cloud-reconciler/internal/core/service/diff"
	"github.com/olusolaa/cloud-reconciler/internal/core/service/poll"
	"github.com/olusolaa/cloud-reconciler/internal/credentials"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
	"github.com/olusolaa/cloud-reconciler/internal/log"
	jsonrep "github.com/olusolaa/cloud-reconciler/internal/reporting/json"
	"github.com/olusolaa/cloud-reconciler/internal/reporting/text"
	"github.com/olusolaa/cloud-reconciler/internal/resources/compute"
	"github.com/olusolaa/cloud-reconciler/internal/resources/storage"
)

// BuildApplicationFromViper assembles the full reconciliation stack:
// config, logger, credential chain, provider gateway, descriptors,
// controller, spec source, and reporter.
func BuildApplicationFromViper(ctx context.Context, v *viper.Viper) (*Application, error) {
	cfg := config.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigParseError, "failed to unmarshal configuration")
	}

	logCfg := log.Config{Level: cfg.Settings.LogLevel, Format: cfg.Settings.LogFormat}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", err)
		return nil, errors.Wrap(err, errors.CodeInternal, "logger initialization failed")
	}
	logger.Infof(ctx, "Logger initialized (Level: %s, Format: %s)", cfg.Settings.LogLevel, cfg.Settings.LogFormat)
	if v.ConfigFileUsed() != "" {
		logger.Debugf(ctx, "Using configuration file: %s", v.ConfigFileUsed())
	} else {
		logger.Debugf(ctx, "No configuration file found, using defaults/env/flags.")
	}

	if err := validateConfig(ctx, cfg, logger); err != nil {
		return nil, err
	}

	chain := credentials.NewChain(logger.WithFields(map[string]any{"component": "credentials"}))
	cred, err := chain.Resolve(ctx, cfg.Credentials.Params())
	if err != nil {
		return nil, err
	}

	rl := limiter.New(cfg.Settings.ProviderRPS, logger.WithFields(map[string]any{"component": "limiter"}))
	gateway, err := ec2.NewGateway(cred,
		logger.WithFields(map[string]any{"component": "gateway", "type": ec2.GatewayType}),
		ec2.WithRateLimiter(rl))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to initialize provider gateway")
	}
	logger.Infof(ctx, "Provider gateway ready (account %s, region %s)", cred.AccountID, cred.Region)

	registry := service.NewComponentRegistry()
	for _, desc := range []service.ResourceKindDescriptor{compute.Descriptor(), storage.Descriptor()} {
		if err := registry.RegisterDescriptor(desc); err != nil {
			return nil, err
		}
		logger.Debugf(ctx, "Registered descriptor for: %s", desc.Kind)
	}

	differ := diff.NewEngine(logger.WithFields(map[string]any{"component": "diff"}))
	poller := poll.NewPoller(logger.WithFields(map[string]any{"component": "poller"}))

	controller, err := service.NewController(gateway, registry, differ, poller,
		logger.WithFields(map[string]any{"component": "controller"}),
		service.Options{Poll: ports.PollOptions{
			Interval: cfg.Settings.PollInterval,
			Timeout:  cfg.Settings.PollTimeout,
		}})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to initialize reconciliation controller")
	}

	source, err := buildSpecSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	reporter, err := buildReporter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Infof(ctx, "Application bootstrap complete")
	return &Application{
		Controller: controller,
		Source:     source,
		Reporter:   reporter,
		Logger:     logger,
		Config:     cfg,
	}, nil
}

func validateConfig(ctx context.Context, cfg *config.Config, logger ports.Logger) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.StructCtx(ctx, cfg)
	if err == nil {
		logger.Debugf(ctx, "Configuration validated successfully")
		return nil
	}

	var errorDetails strings.Builder
	errorDetails.WriteString("Configuration validation failed:")
	validationErrors := err.(validator.ValidationErrors)
	for _, fe := range validationErrors {
		errorDetails.WriteString(fmt.Sprintf("\n - Field '%s': Failed on '%s' validation (value: '%v')",
			fe.Namespace(), fe.Tag(), fe.Value()))
	}
	wrappedErr := errors.NewUserFacing(errors.CodeConfigValidation, errorDetails.String(),
		"Please check your configuration file or flags.")
	logger.Errorf(ctx, wrappedErr, "Configuration validation failed")
	return wrappedErr
}

func buildSpecSource(ctx context.Context, cfg *config.Config, logger ports.Logger) (ports.SpecSource, error) {
	switch cfg.Specs.SourceType {
	case hclspec.SourceTypeHCL:
		if cfg.Specs.HCL == nil {
			return nil, errors.NewUserFacing(errors.CodeConfigValidation,
				"spec source 'hcl' selected but specs.hcl section is missing", "")
		}
		source, err := hclspec.NewSource(*cfg.Specs.HCL, logger)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeConfigValidation, "failed to initialize HCL spec source")
		}
		logger.Infof(ctx, "Using HCL spec source: %s", cfg.Specs.HCL.DirPath)
		return source, nil
	case tfstate.SourceTypeTFState:
		if cfg.Specs.TFState == nil {
			return nil, errors.NewUserFacing(errors.CodeConfigValidation,
				"spec source 'tfstate' selected but specs.tfstate section is missing", "")
		}
		source, err := tfstate.NewSource(*cfg.Specs.TFState, logger)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeConfigValidation, "failed to initialize tfstate spec source")
		}
		logger.Infof(ctx, "Using tfstate spec source: %s", cfg.Specs.TFState.FilePath)
		return source, nil
	default:
		return nil, errors.NewUserFacing(errors.CodeConfigValidation,
			fmt.Sprintf("invalid spec source type: %s", cfg.Specs.SourceType), "Supported: hcl, tfstate")
	}
}

func buildReporter(ctx context.Context, cfg *config.Config, logger ports.Logger) (ports.Reporter, error) {
	switch cfg.Settings.ReporterType {
	case text.ReporterTypeText:
		reportLog := logger.WithFields(map[string]any{"component": "reporter", "type": text.ReporterTypeText})
		textCfg := cfg.Settings.Reporter.Text
		if textCfg == nil {
			textCfg = &text.Config{}
		}
		reporter, err := text.NewReporter(*textCfg, reportLog)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to initialize text reporter")
		}
		reportLog.Infof(ctx, "Using text reporter (Color: %t)", !textCfg.NoColor)
		return reporter, nil
	case jsonrep.ReporterTypeJSON:
		reportLog := logger.WithFields(map[string]any{"component": "reporter", "type": jsonrep.ReporterTypeJSON})
		jsonCfg := cfg.Settings.Reporter.JSON
		if jsonCfg == nil {
			jsonCfg = &jsonrep.Config{}
		}
		reporter, err := jsonrep.NewReporter(*jsonCfg, reportLog)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to initialize JSON reporter")
		}
		reportLog.Infof(ctx, "Using JSON reporter")
		return reporter, nil
	default:
		return nil, errors.NewUserFacing(errors.CodeConfigValidation,
			fmt.Sprintf("unsupported reporter type: %s", cfg.Settings.ReporterType), "Supported: text, json")
	}
}
