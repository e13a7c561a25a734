// Package hclspec reads desired resource specifications from HCL files.
//
// Each file declares resource blocks of the form
//
//	resource "compute_instance" "web" {
//	  account = "123456789012"
//	  group   = "us-east-1a"
//	  state   = "present"
//	  power   = "running"
//
//	  spec {
//	    instance_type = "t3.micro"
//	    tags          = { env = "prod" }
//	  }
//	}
//
// The meta attributes name the resource's identity and lifecycle
// intents; everything under the spec block is the desired tree.
package hclspec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
)

const SourceTypeHCL = "hcl"

type Source struct {
	dirPath string
	logger  ports.Logger
}

type Config struct {
	DirPath string `yaml:"path" mapstructure:"path" validate:"required"`
}

func NewSource(cfg Config, logger ports.Logger) (*Source, error) {
	if cfg.DirPath == "" {
		return nil, errors.New(errors.CodeConfigValidation, "hcl spec source requires a directory path")
	}
	return &Source{
		dirPath: cfg.DirPath,
		logger:  logger.WithFields(map[string]any{"source": SourceTypeHCL, "spec_dir": cfg.DirPath}),
	}, nil
}

func (s *Source) Type() string { return SourceTypeHCL }

func (s *Source) ListDocuments(ctx context.Context) ([]ports.SpecDocument, error) {
	files, err := s.parseDirectory(ctx)
	if err != nil {
		return nil, err
	}

	var docs []ports.SpecDocument
	seen := make(map[string]string)

	blockSchema := &hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{{Type: "resource", LabelNames: []string{"kind", "name"}}},
	}

	for path, file := range files {
		if file == nil || file.Body == nil {
			continue
		}
		content, diags := file.Body.Content(blockSchema)
		if diags.HasErrors() {
			return nil, errors.Newf(errors.CodeSpecParseError, "reading resource blocks in %s: %s", path, diags.Error())
		}

		for _, block := range content.Blocks {
			doc, err := s.decodeResourceBlock(ctx, block)
			if err != nil {
				return nil, err
			}

			key := doc.Identity.String()
			if prior, dup := seen[key]; dup {
				return nil, errors.Newf(errors.CodeSpecParseError,
					"resource %s declared in both %s and %s", key, prior, path)
			}
			seen[key] = path
			docs = append(docs, doc)
		}
	}

	s.logger.Debugf(ctx, "Loaded %d spec documents", len(docs))
	return docs, nil
}

func (s *Source) parseDirectory(ctx context.Context) (map[string]*hcl.File, error) {
	entries, err := os.ReadDir(s.dirPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeSpecReadError, "reading spec directory %s", s.dirPath)
	}

	parser := hclparse.NewParser()
	files := make(map[string]*hcl.File)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".hcl") {
			continue
		}
		path := filepath.Join(s.dirPath, entry.Name())
		s.logger.Debugf(ctx, "Parsing spec file %s", entry.Name())
		file, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, errors.Newf(errors.CodeSpecParseError, "parsing %s: %s", path, diags.Error())
		}
		files[path] = file
	}

	if len(files) == 0 {
		return nil, errors.Newf(errors.CodeSpecReadError, "no .hcl spec files found in %s", s.dirPath)
	}
	return files, nil
}

func (s *Source) decodeResourceBlock(ctx context.Context, block *hcl.Block) (ports.SpecDocument, error) {
	name := block.Labels[1]
	addr := fmt.Sprintf("%s.%s", block.Labels[0], name)

	kind, err := domain.ParseKind(block.Labels[0])
	if err != nil {
		return ports.SpecDocument{}, errors.Wrapf(err, errors.CodeSpecParseError, "resource %s", addr)
	}

	metaSchema := &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "account"},
			{Name: "group"},
			{Name: "state"},
			{Name: "power"},
		},
		Blocks: []hcl.BlockHeaderSchema{{Type: "spec"}},
	}

	content, diags := block.Body.Content(metaSchema)
	if diags.HasErrors() {
		return ports.SpecDocument{}, errors.Newf(errors.CodeSpecParseError,
			"decoding resource %s: %s", addr, diags.Error())
	}

	doc := ports.SpecDocument{
		Identity:     domain.ResourceIdentity{Kind: kind, Name: name},
		DesiredState: domain.StatePresent,
		Desired:      domain.SpecTree{},
	}

	for attrName, attr := range content.Attributes {
		val, valDiags := attr.Expr.Value(nil)
		if valDiags.HasErrors() {
			return ports.SpecDocument{}, errors.Newf(errors.CodeSpecParseError,
				"evaluating %s on %s: %s", attrName, addr, valDiags.Error())
		}
		if val.Type() != cty.String {
			return ports.SpecDocument{}, errors.Newf(errors.CodeSpecParseError,
				"attribute %s on %s must be a string", attrName, addr)
		}
		switch attrName {
		case "account":
			doc.Identity.Account = val.AsString()
		case "group":
			doc.Identity.Group = val.AsString()
		case "state":
			state := domain.PresenceState(val.AsString())
			if state != domain.StatePresent && state != domain.StateAbsent {
				return ports.SpecDocument{}, errors.Newf(errors.CodeSpecParseError,
					"resource %s has invalid state '%s'", addr, state)
			}
			doc.DesiredState = state
		case "power":
			power, err := domain.ParsePowerState(val.AsString())
			if err != nil {
				return ports.SpecDocument{}, errors.Wrapf(err, errors.CodeSpecParseError, "resource %s", addr)
			}
			doc.Power = power
		}
	}

	var specBlock *hcl.Block
	for _, b := range content.Blocks {
		if specBlock != nil {
			return ports.SpecDocument{}, errors.Newf(errors.CodeSpecParseError,
				"resource %s has more than one spec block", addr)
		}
		specBlock = b
	}

	if specBlock != nil {
		tree, err := s.decodeSpecBody(ctx, specBlock.Body, addr)
		if err != nil {
			return ports.SpecDocument{}, err
		}
		doc.Desired = tree
	}

	if doc.DesiredState == domain.StatePresent && len(doc.Desired) == 0 {
		return ports.SpecDocument{}, errors.Newf(errors.CodeSpecParseError,
			"resource %s is declared present but has an empty spec", addr)
	}

	return doc, nil
}

func (s *Source) decodeSpecBody(ctx context.Context, body hcl.Body, addr string) (domain.SpecTree, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, errors.Newf(errors.CodeSpecParseError, "decoding spec of %s: %s", addr, diags.Error())
	}

	tree := make(domain.SpecTree, len(attrs))
	for name, attr := range attrs {
		val, valDiags := attr.Expr.Value(nil)
		if valDiags.HasErrors() {
			return nil, errors.Newf(errors.CodeSpecParseError,
				"evaluating %s.%s: %s", addr, name, valDiags.Error())
		}
		goVal, err := convertCtyValue(ctx, val, s.logger)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeSpecParseError, "converting %s.%s", addr, name)
		}
		tree[name] = goVal
	}
	return tree, nil
}
