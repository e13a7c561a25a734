package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/viper"

	"github.com/olusolaa/cloud-reconciler/internal/errors"
)

const DefaultProfileName = "default"

// Credential file keys, one row of named fields per profile section.
const (
	profileKeyAccessKeyID     = "aws_access_key_id"
	profileKeySecretAccessKey = "aws_secret_access_key"
	profileKeySessionToken    = "aws_session_token"
	profileKeyRegion          = "region"
	profileKeyPartition       = "partition"
)

func defaultCredentialFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".aws", "credentials")
}

// profileRecord is one parsed profile row.
type profileRecord struct {
	keys      aws.Credentials
	region    string
	partition string
}

// loadProfile reads one named profile from the local credential file.
// The file is user-owned and read-only to this package.
func loadProfile(path, profile string) (*profileRecord, error) {
	if path == "" {
		path = defaultCredentialFilePath()
	}
	if profile == "" {
		profile = DefaultProfileName
	}

	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, errors.CodeCredentialFileError,
			fmt.Sprintf("credential file '%s' not readable", path))
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCredentialFileError,
			fmt.Sprintf("parsing credential file '%s'", path))
	}

	section := v.Sub(profile)
	if section == nil {
		return nil, errors.Newf(errors.CodeCredentialFileError,
			"profile '%s' not found in credential file '%s'", profile, path)
	}

	accessKey := section.GetString(profileKeyAccessKeyID)
	secretKey := section.GetString(profileKeySecretAccessKey)
	if accessKey == "" || secretKey == "" {
		return nil, errors.Newf(errors.CodeCredentialFileError,
			"profile '%s' is missing %s or %s", profile, profileKeyAccessKeyID, profileKeySecretAccessKey)
	}

	return &profileRecord{
		keys: aws.Credentials{
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
			SessionToken:    section.GetString(profileKeySessionToken),
			Source:          string(SourceProfile),
			CanExpire:       false,
			Expires:         time.Time{},
		},
		region:    section.GetString(profileKeyRegion),
		partition: section.GetString(profileKeyPartition),
	}, nil
}
