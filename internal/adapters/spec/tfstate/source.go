// Package tfstate reads desired resource specifications from a
// `terraform show -json` export. Terraform-managed resources become
// spec documents with a present intent, letting the engine hold live
// infrastructure to the shape Terraform last recorded.
package tfstate

import (
	"context"
	"os"
	"sync"

	tfjson "github.com/hashicorp/terraform-json"
	jsoniter "github.com/json-iterator/go"

	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
)

const SourceTypeTFState = "tfstate"

type Source struct {
	filePath string
	account  string
	logger   ports.Logger

	mu    sync.Mutex
	cache *tfjson.State
	err   error
}

type Config struct {
	FilePath string `yaml:"path" mapstructure:"path" validate:"required"`
	// Account stamps every document's identity; the state export does
	// not carry the owning account.
	Account string `yaml:"account" mapstructure:"account"`
}

func NewSource(cfg Config, logger ports.Logger) (*Source, error) {
	filePath := cfg.FilePath
	if filePath == "" {
		filePath = "state.json"
		logger.Debugf(nil, "No state export path specified, using default: %s", filePath)
	}

	return &Source{
		filePath: filePath,
		logger: logger.WithFields(map[string]any{
			"source":     SourceTypeTFState,
			"state_file": filePath,
		}),
		account: cfg.Account,
	}, nil
}

func (s *Source) Type() string { return SourceTypeTFState }

func (s *Source) ListDocuments(ctx context.Context) ([]ports.SpecDocument, error) {
	state, err := s.parseAndCache(ctx)
	if err != nil {
		return nil, err
	}
	if state.Values == nil || state.Values.RootModule == nil {
		return nil, nil
	}

	var docs []ports.SpecDocument
	if err := s.collectModule(ctx, state.Values.RootModule, &docs); err != nil {
		return nil, err
	}
	s.logger.Debugf(ctx, "Loaded %d spec documents from state export", len(docs))
	return docs, nil
}

func (s *Source) parseAndCache(ctx context.Context) (*tfjson.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache != nil || s.err != nil {
		return s.cache, s.err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		s.err = errors.Wrap(err, errors.CodeSpecReadError, "reading state export")
		return nil, s.err
	}
	if len(raw) == 0 {
		s.err = errors.NewUserFacing(errors.CodeSpecParseError, "state export is empty",
			"Regenerate it with 'terraform show -json > state.json'.")
		return nil, s.err
	}

	var state tfjson.State
	var json = jsoniter.ConfigCompatibleWithStandardLibrary
	if err := json.Unmarshal(raw, &state); err != nil {
		s.err = errors.WrapUserFacing(err, errors.CodeSpecParseError,
			"state export is not valid 'terraform show -json' output", "")
		return nil, s.err
	}

	s.cache = &state
	return s.cache, nil
}

func (s *Source) collectModule(ctx context.Context, mod *tfjson.StateModule, docs *[]ports.SpecDocument) error {
	for _, res := range mod.Resources {
		if res.Mode != tfjson.ManagedResourceMode {
			continue
		}
		doc, ok, err := s.mapResource(res)
		if err != nil {
			return errors.Wrapf(err, errors.CodeSpecParseError, "mapping resource %s", res.Address)
		}
		if !ok {
			s.logger.Debugf(ctx, "Skipping unmapped resource type %s (%s)", res.Type, res.Address)
			continue
		}
		*docs = append(*docs, doc)
	}
	for _, child := range mod.ChildModules {
		if err := s.collectModule(ctx, child, docs); err != nil {
			return err
		}
	}
	return nil
}
