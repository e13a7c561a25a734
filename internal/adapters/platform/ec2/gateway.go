// Package ec2 implements the provider client gateway over the EC2 API:
// compute instances and block volumes with their attachments.
package ec2

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/credentials"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
)

const (
	GatewayType = "ec2"

	// nameTagKey carries the resource's logical name; it is identity,
	// not configuration, and never appears in diffed tags.
	nameTagKey = "Name"

	defaultAttachDevice = "/dev/sdf"
)

type Gateway struct {
	api     EC2API
	limiter RateLimiter
	logger  ports.Logger
}

var _ ports.ProviderGateway = (*Gateway)(nil)

type Option func(*Gateway)

func WithAPI(api EC2API) Option {
	return func(g *Gateway) { g.api = api }
}

func WithRateLimiter(rl RateLimiter) Option {
	return func(g *Gateway) { g.limiter = rl }
}

// NewGateway binds a gateway to one resolved credential. The credential
// and the constructed client are read-only after this call and may be
// shared across concurrently polled handles.
func NewGateway(cred *credentials.Credential, logger ports.Logger, opts ...Option) (*Gateway, error) {
	if cred == nil {
		return nil, errors.New(errors.CodeConfigValidation, "credential cannot be nil")
	}
	if logger == nil {
		return nil, errors.New(errors.CodeConfigValidation, "logger cannot be nil")
	}

	g := &Gateway{logger: logger}
	for _, o := range opts {
		o(g)
	}

	if g.api == nil {
		cfg := aws.Config{
			Region: cred.Region,
			Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return cred.Keys, nil
			}),
		}
		if cred.CertValidation == credentials.CertIgnore {
			cfg.HTTPClient = awshttp.NewBuildableClient().WithTransportOptions(func(tr *http.Transport) {
				if tr.TLSClientConfig == nil {
					tr.TLSClientConfig = &tls.Config{}
				}
				tr.TLSClientConfig.InsecureSkipVerify = true
			})
		}
		g.api = awsec2.NewFromConfig(cfg)
	}
	if g.limiter == nil {
		g.limiter = noLimit{}
	}

	return g, nil
}

type noLimit struct{}

func (noLimit) Wait(context.Context) error { return nil }

func (g *Gateway) Type() string {
	return GatewayType
}

func (g *Gateway) Get(ctx context.Context, id domain.ResourceIdentity) (domain.SpecTree, bool, error) {
	switch id.Kind {
	case domain.KindComputeInstance:
		inst, found, err := g.lookupInstance(ctx, id)
		if err != nil || !found {
			return nil, false, err
		}
		return instanceToTree(inst), true, nil
	case domain.KindBlockVolume:
		vol, found, err := g.lookupVolume(ctx, id)
		if err != nil || !found {
			return nil, false, err
		}
		return volumeToTree(vol), true, nil
	default:
		return nil, false, errors.Newf(errors.CodeUnsupportedKind,
			"resource kind '%s' not supported by the %s gateway", id.Kind, GatewayType)
	}
}

func (g *Gateway) Create(ctx context.Context, id domain.ResourceIdentity, spec domain.SpecTree) (ports.OperationHandle, error) {
	switch id.Kind {
	case domain.KindComputeInstance:
		return g.createInstance(ctx, id, spec)
	case domain.KindBlockVolume:
		return g.createVolume(ctx, id, spec)
	default:
		return nil, errors.Newf(errors.CodeUnsupportedKind,
			"resource kind '%s' not supported by the %s gateway", id.Kind, GatewayType)
	}
}

func (g *Gateway) Update(ctx context.Context, id domain.ResourceIdentity, spec domain.SpecTree, diff *domain.DiffResult) ([]ports.OperationHandle, error) {
	switch id.Kind {
	case domain.KindComputeInstance:
		return g.updateInstance(ctx, id, spec, diff)
	case domain.KindBlockVolume:
		return g.updateVolume(ctx, id, spec, diff)
	default:
		return nil, errors.Newf(errors.CodeUnsupportedKind,
			"resource kind '%s' not supported by the %s gateway", id.Kind, GatewayType)
	}
}

func (g *Gateway) Delete(ctx context.Context, id domain.ResourceIdentity) (ports.OperationHandle, error) {
	switch id.Kind {
	case domain.KindComputeInstance:
		return g.deleteInstance(ctx, id)
	case domain.KindBlockVolume:
		return g.deleteVolume(ctx, id)
	default:
		return nil, errors.Newf(errors.CodeUnsupportedKind,
			"resource kind '%s' not supported by the %s gateway", id.Kind, GatewayType)
	}
}

func (g *Gateway) Attach(ctx context.Context, id, target domain.ResourceIdentity, attrs domain.SpecTree) (ports.OperationHandle, error) {
	if id.Kind != domain.KindBlockVolume || target.Kind != domain.KindComputeInstance {
		return nil, errors.Newf(errors.CodeUnsupportedKind,
			"attachment requires a %s resource and a %s target", domain.KindBlockVolume, domain.KindComputeInstance)
	}
	return g.attachVolume(ctx, id, target, attrs)
}

func (g *Gateway) Detach(ctx context.Context, id, target domain.ResourceIdentity) (ports.OperationHandle, error) {
	if id.Kind != domain.KindBlockVolume || target.Kind != domain.KindComputeInstance {
		return nil, errors.Newf(errors.CodeUnsupportedKind,
			"attachment requires a %s resource and a %s target", domain.KindBlockVolume, domain.KindComputeInstance)
	}
	return g.detachVolume(ctx, id, target)
}

func (g *Gateway) SetPowerState(ctx context.Context, id domain.ResourceIdentity, desired domain.PowerState) (ports.OperationHandle, error) {
	if id.Kind != domain.KindComputeInstance {
		return nil, errors.Newf(errors.CodeUnsupportedKind,
			"power state applies only to %s resources", domain.KindComputeInstance)
	}
	return g.setInstancePower(ctx, id, desired)
}
