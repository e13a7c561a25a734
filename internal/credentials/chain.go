package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
)

// sourceResult is what one source contributes before scope resolution.
type sourceResult struct {
	keys      aws.Credentials
	region    string
	partition string
}

// Chain resolves credentials from the configured sources. Probe
// functions are injectable so resolution is testable without network or
// a metadata service.
type Chain struct {
	logger    ports.Logger
	lookupEnv func(string) string

	identityProbe func(ctx context.Context, identityID string) (*sourceResult, error)
	sessionProbe  func(ctx context.Context, profile string) (*sourceResult, error)
	profileLoader func(path, profile string) (*profileRecord, error)
	scopeResolver func(ctx context.Context, keys aws.Credentials, region string) (string, error)
}

// Option customizes a Chain, primarily for tests.
type Option func(*Chain)

func WithEnvLookup(fn func(string) string) Option {
	return func(c *Chain) { c.lookupEnv = fn }
}

func WithIdentityProbe(fn func(ctx context.Context, identityID string) (*sourceResult, error)) Option {
	return func(c *Chain) { c.identityProbe = fn }
}

func WithSessionProbe(fn func(ctx context.Context, profile string) (*sourceResult, error)) Option {
	return func(c *Chain) { c.sessionProbe = fn }
}

func WithProfileLoader(fn func(path, profile string) (*profileRecord, error)) Option {
	return func(c *Chain) { c.profileLoader = fn }
}

func WithScopeResolver(fn func(ctx context.Context, keys aws.Credentials, region string) (string, error)) Option {
	return func(c *Chain) { c.scopeResolver = fn }
}

func NewChain(logger ports.Logger, opts ...Option) *Chain {
	c := &Chain{
		logger:        logger,
		lookupEnv:     os.Getenv,
		profileLoader: loadProfile,
	}
	c.identityProbe = c.defaultIdentityProbe
	c.sessionProbe = c.defaultSessionProbe
	c.scopeResolver = c.defaultScopeResolver
	for _, o := range opts {
		o(c)
	}
	return c
}

// Resolve walks the source chain in priority order, stopping at the
// first source that yields both a credential and an account scope. A
// pinned source is tried alone. Failure reports every source tried.
func (c *Chain) Resolve(ctx context.Context, params Params) (*Credential, error) {
	sources := chainOrder
	if params.Source != "" && params.Source != SourceAuto {
		sources = []Source{params.Source}
	}

	var attempts []string
	for _, src := range sources {
		res, err := c.trySource(ctx, src, params)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", src, err))
			c.logger.Debugf(ctx, "Credential source '%s' did not resolve: %v", src, err)
			continue
		}

		cred, err := c.finish(ctx, src, res, params)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", src, err))
			c.logger.Debugf(ctx, "Credential source '%s' yielded keys but no scope: %v", src, err)
			continue
		}

		c.logger.Infof(ctx, "Resolved credentials from source '%s' (account %s, partition %s)",
			src, cred.AccountID, cred.Environment.Partition)
		return cred, nil
	}

	return nil, errors.NewUserFacing(errors.CodeAuthError,
		fmt.Sprintf("no credential source produced a usable credential and scope; tried: %s",
			strings.Join(attempts, "; ")),
		"Provide explicit keys, set the documented environment variables, or configure a credential file profile.")
}

func (c *Chain) trySource(ctx context.Context, src Source, params Params) (*sourceResult, error) {
	switch src {
	case SourceIdentity:
		return c.identityProbe(ctx, params.IdentityID)
	case SourceSession:
		return c.sessionProbe(ctx, params.Profile)
	case SourceExplicit:
		if params.AccessKeyID == "" || params.SecretAccessKey == "" {
			return nil, fmt.Errorf("no explicit key material supplied")
		}
		return &sourceResult{
			keys: aws.Credentials{
				AccessKeyID:     params.AccessKeyID,
				SecretAccessKey: params.SecretAccessKey,
				SessionToken:    params.SessionToken,
				Source:          string(SourceExplicit),
			},
			region:    params.Region,
			partition: params.Partition,
		}, nil
	case SourceEnv:
		accessKey := c.lookupEnv(EnvAccessKeyID)
		secretKey := c.lookupEnv(EnvSecretAccessKey)
		if accessKey == "" || secretKey == "" {
			return nil, fmt.Errorf("%s/%s not set", EnvAccessKeyID, EnvSecretAccessKey)
		}
		region := c.lookupEnv(EnvRegion)
		if region == "" {
			region = c.lookupEnv(EnvDefaultRegion)
		}
		return &sourceResult{
			keys: aws.Credentials{
				AccessKeyID:     accessKey,
				SecretAccessKey: secretKey,
				SessionToken:    c.lookupEnv(EnvSessionToken),
				Source:          string(SourceEnv),
			},
			region:    region,
			partition: c.lookupEnv(EnvPartition),
		}, nil
	case SourceProfile:
		profile := params.Profile
		if profile == "" {
			profile = c.lookupEnv(EnvProfile)
		}
		rec, err := c.profileLoader(params.CredentialFile, profile)
		if err != nil {
			return nil, err
		}
		return &sourceResult{keys: rec.keys, region: rec.region, partition: rec.partition}, nil
	default:
		return nil, fmt.Errorf("unknown credential source '%s'", src)
	}
}

// finish resolves the scope (account id), cloud environment, and cert
// validation mode for a source's keys. Precedence for environment and
// cert mode: explicit > source-provided > environment variable > default.
func (c *Chain) finish(ctx context.Context, src Source, res *sourceResult, params Params) (*Credential, error) {
	region := firstNonEmpty(params.Region, res.region, c.lookupEnv(EnvRegion), c.lookupEnv(EnvDefaultRegion))

	accountID, err := c.scopeResolver(ctx, res.keys, region)
	if err != nil {
		return nil, fmt.Errorf("resolving account scope: %w", err)
	}
	if accountID == "" {
		return nil, fmt.Errorf("source yielded a credential but no account scope")
	}

	partition := firstNonEmpty(params.Partition, res.partition, c.lookupEnv(EnvPartition))
	env, err := EnvironmentFor(partition)
	if err != nil {
		return nil, err
	}

	certMode := params.CertValidation
	if certMode == "" {
		certMode = CertValidationMode(c.lookupEnv(EnvCertValidation))
	}
	switch certMode {
	case "":
		certMode = CertValidate
	case CertValidate, CertIgnore:
	default:
		return nil, fmt.Errorf("invalid certificate validation mode '%s'", certMode)
	}

	return &Credential{
		Keys:           res.keys,
		AccountID:      accountID,
		Region:         region,
		Environment:    env,
		CertValidation: certMode,
		Source:         src,
	}, nil
}

func (c *Chain) defaultIdentityProbe(ctx context.Context, identityID string) (*sourceResult, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	imdsClient := imds.New(imds.Options{})
	provider := ec2rolecreds.New(func(o *ec2rolecreds.Options) {
		o.Client = imdsClient
	})

	keys, err := provider.Retrieve(probeCtx)
	if err != nil {
		return nil, fmt.Errorf("no platform identity available: %w", err)
	}
	if identityID != "" {
		info, docErr := imdsClient.GetIAMInfo(probeCtx, &imds.GetIAMInfoInput{})
		if docErr != nil {
			return nil, fmt.Errorf("cannot verify platform identity: %w", docErr)
		}
		if !matchesIdentity(info.InstanceProfileArn, identityID) {
			// Narrowing requested but the platform identity is a different
			// principal; do not silently use it.
			return nil, fmt.Errorf("platform identity '%s' does not match requested identity '%s'",
				info.InstanceProfileArn, identityID)
		}
	}

	region := ""
	if out, rErr := imdsClient.GetRegion(probeCtx, &imds.GetRegionInput{}); rErr == nil {
		region = out.Region
	}

	return &sourceResult{keys: keys, region: region}, nil
}

// matchesIdentity reports whether the instance profile ARN names the
// requested identity. Only the ARN's final path segment counts, and it
// must match exactly: a substring match would accept a different
// principal whose name merely contains the requested one.
func matchesIdentity(arn, identityID string) bool {
	name := arn
	if i := strings.LastIndex(arn, "/"); i >= 0 {
		name = arn[i+1:]
	}
	return name != "" && name == identityID
}

func (c *Chain) defaultSessionProbe(ctx context.Context, profile string) (*sourceResult, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithEC2IMDSClientEnableState(imds.ClientDisabled),
	}
	if profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("no local session available: %w", err)
	}

	keys, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("no local session credentials: %w", err)
	}
	if !strings.Contains(keys.Source, "SSO") && !strings.Contains(keys.Source, "AssumeRole") && !strings.Contains(keys.Source, "Process") {
		// The shared-config chain fell through to static keys; those
		// belong to the explicit/env/profile sources, not this one.
		return nil, fmt.Errorf("no delegated CLI session found (credential source %q)", keys.Source)
	}

	keys.Source = string(SourceSession)
	return &sourceResult{keys: keys, region: cfg.Region}, nil
}

func (c *Chain) defaultScopeResolver(ctx context.Context, keys aws.Credentials, region string) (string, error) {
	cfg := aws.Config{
		Region: region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return keys, nil
		}),
	}
	out, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", err
	}
	if out.Account == nil {
		return "", fmt.Errorf("identity service returned no account")
	}
	return *out.Account, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
