package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/core/service/diff"
	"github.com/olusolaa/cloud-reconciler/internal/core/service/plan"
	"github.com/olusolaa/cloud-reconciler/internal/core/service/poll"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
	"github.com/olusolaa/cloud-reconciler/internal/log"
	"github.com/olusolaa/cloud-reconciler/pkg/backoff"
	"github.com/olusolaa/cloud-reconciler/pkg/compare"
)

// fakeGateway applies every mutation synchronously against an in-memory
// store and counts mutating calls.
type fakeGateway struct {
	mu    sync.Mutex
	store map[string]domain.SpecTree

	creates, updates, deletes int
	attaches, detaches        int
	powerCalls                int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{store: map[string]domain.SpecTree{}}
}

func (g *fakeGateway) Type() string { return "fake" }

func (g *fakeGateway) Get(_ context.Context, id domain.ResourceIdentity) (domain.SpecTree, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tree, ok := g.store[id.String()]
	if !ok {
		return nil, false, nil
	}
	return tree.Clone(), true, nil
}

func (g *fakeGateway) Create(_ context.Context, id domain.ResourceIdentity, spec domain.SpecTree) (ports.OperationHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates++
	tree := spec.Clone()
	tree[domain.ComputeStateKey] = "running"
	g.store[id.String()] = tree
	return nil, nil
}

func (g *fakeGateway) Update(_ context.Context, id domain.ResourceIdentity, _ domain.SpecTree, d *domain.DiffResult) ([]ports.OperationHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates++
	tree := g.store[id.String()]
	for _, fd := range d.Diffs {
		switch fd.Kind {
		case domain.DiffClear:
			delete(tree, fd.Path)
		default:
			tree[fd.Path] = fd.Desired
		}
	}
	return nil, nil
}

func (g *fakeGateway) Delete(_ context.Context, id domain.ResourceIdentity) (ports.OperationHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletes++
	delete(g.store, id.String())
	return nil, nil
}

func (g *fakeGateway) Attach(_ context.Context, id, target domain.ResourceIdentity, attrs domain.SpecTree) (ports.OperationHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attaches++
	tree := g.store[id.String()]
	atts, _ := tree[domain.VolumeAttachmentsKey].([]map[string]any)
	entry := map[string]any{domain.AttachmentInstanceID: target.Name}
	if attrs != nil {
		if d, ok := attrs[domain.AttachmentDevice]; ok {
			entry[domain.AttachmentDevice] = d
		}
	}
	tree[domain.VolumeAttachmentsKey] = append(atts, entry)
	return nil, nil
}

func (g *fakeGateway) Detach(_ context.Context, id, target domain.ResourceIdentity) (ports.OperationHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.detaches++
	tree := g.store[id.String()]
	atts, _ := tree[domain.VolumeAttachmentsKey].([]map[string]any)
	kept := atts[:0]
	for _, a := range atts {
		if a[domain.AttachmentInstanceID] != target.Name {
			kept = append(kept, a)
		}
	}
	tree[domain.VolumeAttachmentsKey] = kept
	return nil, nil
}

func (g *fakeGateway) SetPowerState(_ context.Context, id domain.ResourceIdentity, desired domain.PowerState) (ports.OperationHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.powerCalls++
	g.store[id.String()][domain.ComputeStateKey] = string(desired)
	return nil, nil
}

func testDescriptor() ResourceKindDescriptor {
	return ResourceKindDescriptor{
		Kind: domain.KindComputeInstance,
		Policies: domain.FieldPolicyMap{
			domain.ComputeInstanceTypeKey: {},
			domain.ComputeImageIDKey:      {Immutable: true},
			domain.KeyTags:                {TagMap: true},
		},
		TagMode: domain.TagMergeAppend,
	}
}

func volumeDescriptor() ResourceKindDescriptor {
	return ResourceKindDescriptor{
		Kind: domain.KindBlockVolume,
		Policies: domain.FieldPolicyMap{
			domain.VolumeSizeKey:        {},
			domain.VolumeAttachmentsKey: {MergeKey: domain.AttachmentInstanceID, PurgeIfAbsent: true},
		},
		TagMode: domain.TagMergeAppend,
	}
}

func newTestController(t *testing.T, gw ports.ProviderGateway) *Controller {
	t.Helper()
	logger, err := log.NewLoggerWithWriter(log.DefaultConfig(), io.Discard)
	require.NoError(t, err)

	registry := NewComponentRegistry()
	require.NoError(t, registry.RegisterDescriptor(testDescriptor()))
	require.NoError(t, registry.RegisterDescriptor(volumeDescriptor()))

	c, err := NewController(gw, registry, diff.NewEngine(logger), poll.NewPoller(logger), logger,
		Options{
			Poll: ports.PollOptions{Interval: 5 * time.Millisecond, Timeout: time.Second},
			DeleteSettle: backoff.Policy{
				Initial: time.Millisecond, Max: 5 * time.Millisecond,
				Multiplier: 1.5, MaxElapsed: 200 * time.Millisecond,
			},
		})
	require.NoError(t, err)
	return c
}

func instanceIdentity(name string) domain.ResourceIdentity {
	return domain.ResourceIdentity{Account: "123456789012", Group: "us-east-1a", Kind: domain.KindComputeInstance, Name: name}
}

func TestController_Reconcile_Create(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(t, gw)

	res, err := c.Reconcile(context.Background(), ports.ReconcileRequest{
		Identity:     instanceIdentity("web-1"),
		Desired:      domain.SpecTree{domain.ComputeInstanceTypeKey: "t3.micro", domain.ComputeImageIDKey: "ami-1"},
		DesiredState: domain.StatePresent,
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.Create, res.Plan.Structural)
	assert.Equal(t, 1, gw.creates)
	require.NotNil(t, res.State)
	assert.Equal(t, "t3.micro", res.State[domain.ComputeInstanceTypeKey])
	stored := gw.store[instanceIdentity("web-1").String()]
	assert.True(t, compare.TreesEqual(res.State, stored), compare.TreeDiff(res.State, stored))
}

func TestController_Reconcile_Idempotent(t *testing.T) {
	gw := newFakeGateway()
	id := instanceIdentity("web-1")
	gw.store[id.String()] = domain.SpecTree{
		domain.ComputeInstanceTypeKey: "t3.micro",
		domain.ComputeImageIDKey:      "ami-1",
	}
	before := gw.store[id.String()].Clone()
	c := newTestController(t, gw)

	res, err := c.Reconcile(context.Background(), ports.ReconcileRequest{
		Identity:     id,
		Desired:      domain.SpecTree{domain.ComputeInstanceTypeKey: "t3.micro", domain.ComputeImageIDKey: "ami-1"},
		DesiredState: domain.StatePresent,
	})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, domain.NoAction, res.Plan.Structural)
	assert.Zero(t, gw.creates)
	assert.Zero(t, gw.updates)
	assert.Zero(t, gw.deletes)
	// A no-op pass must leave the provider state structurally untouched.
	assert.True(t, compare.TreesEqual(before, gw.store[id.String()]),
		compare.TreeDiff(before, gw.store[id.String()]))
}

func TestController_Reconcile_Update(t *testing.T) {
	gw := newFakeGateway()
	id := instanceIdentity("web-1")
	gw.store[id.String()] = domain.SpecTree{
		domain.ComputeInstanceTypeKey: "t3.micro",
		domain.ComputeImageIDKey:      "ami-1",
	}
	c := newTestController(t, gw)

	res, err := c.Reconcile(context.Background(), ports.ReconcileRequest{
		Identity:     id,
		Desired:      domain.SpecTree{domain.ComputeInstanceTypeKey: "t3.large", domain.ComputeImageIDKey: "ami-1"},
		DesiredState: domain.StatePresent,
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.Update, res.Plan.Structural)
	assert.Equal(t, 1, gw.updates)
	assert.Equal(t, "t3.large", res.State[domain.ComputeInstanceTypeKey])
}

func TestController_Reconcile_CheckMode(t *testing.T) {
	gw := newFakeGateway()
	id := instanceIdentity("web-1")
	gw.store[id.String()] = domain.SpecTree{
		domain.ComputeInstanceTypeKey: "t3.micro",
		domain.ComputeImageIDKey:      "ami-1",
	}
	c := newTestController(t, gw)

	res, err := c.Reconcile(context.Background(), ports.ReconcileRequest{
		Identity:     id,
		Desired:      domain.SpecTree{domain.ComputeInstanceTypeKey: "t3.large", domain.ComputeImageIDKey: "ami-1"},
		DesiredState: domain.StatePresent,
		CheckMode:    true,
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.CheckMode)
	assert.Equal(t, domain.Update, res.Plan.Structural)
	assert.False(t, res.Diff.Empty())

	// No mutation reached the provider.
	assert.Zero(t, gw.updates)
	assert.Equal(t, "t3.micro", gw.store[id.String()][domain.ComputeInstanceTypeKey])
}

func TestController_Reconcile_ImmutableConflict(t *testing.T) {
	gw := newFakeGateway()
	id := instanceIdentity("web-1")
	gw.store[id.String()] = domain.SpecTree{domain.ComputeImageIDKey: "ami-1"}
	c := newTestController(t, gw)

	_, err := c.Reconcile(context.Background(), ports.ReconcileRequest{
		Identity:     id,
		Desired:      domain.SpecTree{domain.ComputeImageIDKey: "ami-2"},
		DesiredState: domain.StatePresent,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeImmutableConflict))
	assert.Zero(t, gw.updates)
	assert.Equal(t, "ami-1", gw.store[id.String()][domain.ComputeImageIDKey])
}

func TestController_Reconcile_Delete(t *testing.T) {
	gw := newFakeGateway()
	id := instanceIdentity("web-1")
	gw.store[id.String()] = domain.SpecTree{domain.ComputeInstanceTypeKey: "t3.micro"}
	c := newTestController(t, gw)

	res, err := c.Reconcile(context.Background(), ports.ReconcileRequest{
		Identity:     id,
		DesiredState: domain.StateAbsent,
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.Delete, res.Plan.Structural)
	assert.Nil(t, res.State)
	assert.Equal(t, 1, gw.deletes)
	_, exists := gw.store[id.String()]
	assert.False(t, exists)
}

func TestController_Reconcile_DeleteAbsent(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(t, gw)

	res, err := c.Reconcile(context.Background(), ports.ReconcileRequest{
		Identity:     instanceIdentity("ghost"),
		DesiredState: domain.StateAbsent,
	})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, domain.NoAction, res.Plan.Structural)
	assert.Zero(t, gw.deletes)
}

func TestController_Reconcile_Power(t *testing.T) {
	gw := newFakeGateway()
	id := instanceIdentity("web-1")
	gw.store[id.String()] = domain.SpecTree{
		domain.ComputeInstanceTypeKey: "t3.micro",
		domain.ComputeStateKey:        "stopped",
	}
	c := newTestController(t, gw)

	res, err := c.Reconcile(context.Background(), ports.ReconcileRequest{
		Identity:     id,
		Desired:      domain.SpecTree{domain.ComputeInstanceTypeKey: "t3.micro"},
		DesiredState: domain.StatePresent,
		Power:        domain.PowerRunning,
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.NoAction, res.Plan.Structural)
	assert.Equal(t, domain.Start, res.Plan.Power)
	assert.Equal(t, 1, gw.powerCalls)
	assert.Equal(t, "running", res.State[domain.ComputeStateKey])
}

func TestController_ReconcileAttachments(t *testing.T) {
	vol := domain.ResourceIdentity{Account: "123456789012", Group: "us-east-1a", Kind: domain.KindBlockVolume, Name: "data"}

	setup := func() (*fakeGateway, *Controller) {
		gw := newFakeGateway()
		gw.store[vol.String()] = domain.SpecTree{
			domain.VolumeSizeKey: int64(100),
			domain.VolumeAttachmentsKey: []map[string]any{
				{domain.AttachmentInstanceID: "web-2"},
			},
		}
		return gw, newTestController(t, gw)
	}

	t.Run("attaches missing and detaches undeclared", func(t *testing.T) {
		gw, c := setup()
		res, err := c.ReconcileAttachments(context.Background(), AttachmentRequest{
			Resource: vol,
			Desired: []plan.Attachment{{
				Target:     domain.ResourceIdentity{Account: vol.Account, Group: vol.Group, Kind: domain.KindComputeInstance, Name: "web-1"},
				Attributes: domain.SpecTree{domain.AttachmentDevice: "/dev/sdf"},
			}},
			Purge: true,
		})
		require.NoError(t, err)
		assert.True(t, res.Changed)
		require.Len(t, res.Outcomes, 2)
		assert.True(t, res.FullySucceeded())
		assert.Equal(t, 1, gw.attaches)
		assert.Equal(t, 1, gw.detaches)
	})

	t.Run("check mode plans without mutating", func(t *testing.T) {
		gw, c := setup()
		res, err := c.ReconcileAttachments(context.Background(), AttachmentRequest{
			Resource:  vol,
			Desired:   nil,
			Purge:     true,
			CheckMode: true,
		})
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Zero(t, gw.attaches)
		assert.Zero(t, gw.detaches)
	})

	t.Run("missing resource is an error", func(t *testing.T) {
		gw := newFakeGateway()
		c := newTestController(t, gw)
		_, err := c.ReconcileAttachments(context.Background(), AttachmentRequest{Resource: vol})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeResourceNotFound))
	})
}
