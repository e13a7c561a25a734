package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olusolaa/cloud-reconciler/internal/credentials"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Settings.Concurrency)
	assert.Equal(t, 20, cfg.Settings.ProviderRPS)
	assert.Equal(t, "text", cfg.Settings.ReporterType)
	assert.False(t, cfg.Settings.CheckMode)
	assert.Equal(t, "auto", cfg.Credentials.Source)
	assert.Equal(t, "hcl", cfg.Specs.SourceType)
	assert.Equal(t, "specs", cfg.Specs.HCL.DirPath)
}

func TestCredentialsConfig_Params(t *testing.T) {
	cfg := CredentialsConfig{
		Source:          "explicit",
		Profile:         "staging",
		CredentialFile:  "/tmp/creds",
		IdentityID:      "role-a",
		Region:          "us-east-1",
		Partition:       "aws-us-gov",
		CertValidation:  "ignore",
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		SessionToken:    "token",
	}

	p := cfg.Params()
	assert.Equal(t, credentials.SourceExplicit, p.Source)
	assert.Equal(t, "staging", p.Profile)
	assert.Equal(t, "/tmp/creds", p.CredentialFile)
	assert.Equal(t, "role-a", p.IdentityID)
	assert.Equal(t, "us-east-1", p.Region)
	assert.Equal(t, "aws-us-gov", p.Partition)
	assert.Equal(t, credentials.CertIgnore, p.CertValidation)
	assert.Equal(t, "AKIAEXAMPLE", p.AccessKeyID)
	assert.Equal(t, "secret", p.SecretAccessKey)
	assert.Equal(t, "token", p.SessionToken)
}
