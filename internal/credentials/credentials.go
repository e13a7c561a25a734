// Package credentials resolves provider credentials from several
// sources in a fixed priority order and binds them to an account scope
// and cloud environment descriptor.
package credentials

import (
	"github.com/aws/aws-sdk-go-v2/aws"
)

// Source identifies one credential source in the chain.
type Source string

const (
	SourceAuto     Source = "auto"     // walk the chain in priority order
	SourceIdentity Source = "identity" // platform-managed identity (instance role)
	SourceSession  Source = "session"  // locally logged-in CLI/SSO session
	SourceExplicit Source = "explicit" // caller-passed key material
	SourceEnv      Source = "env"      // fixed-name environment variables
	SourceProfile  Source = "profile"  // named profile from the credential file
)

// chainOrder is the resolution precedence when no source is pinned.
var chainOrder = []Source{SourceIdentity, SourceSession, SourceExplicit, SourceEnv, SourceProfile}

// CertValidationMode controls TLS certificate verification of provider
// endpoints.
type CertValidationMode string

const (
	CertValidate CertValidationMode = "validate"
	CertIgnore   CertValidationMode = "ignore"
)

// Fixed environment variable names, one per credential field.
const (
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvSessionToken    = "AWS_SESSION_TOKEN"
	EnvRegion          = "AWS_REGION"
	EnvDefaultRegion   = "AWS_DEFAULT_REGION"
	EnvProfile         = "AWS_PROFILE"
	EnvPartition       = "RECONCILER_PARTITION"
	EnvCertValidation  = "RECONCILER_CERT_VALIDATION"
)

// Params are the caller-supplied inputs to resolution. All fields are
// optional; empty fields fall through to lower-priority sources.
type Params struct {
	// Source pins resolution to one source instead of walking the chain.
	Source Source

	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// IdentityID narrows the platform-identity source to a specific
	// role/identity; resolution fails if the platform identity differs.
	IdentityID string

	Profile        string
	CredentialFile string

	Region         string
	Partition      string
	CertValidation CertValidationMode
}

// Credential is the resolved provider identity plus the scope it
// authorizes. Immutable once resolved; lifetime is one invocation.
type Credential struct {
	Keys           aws.Credentials
	AccountID      string
	Region         string
	Environment    Environment
	CertValidation CertValidationMode
	Source         Source
}
