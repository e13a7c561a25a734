package credentials

import (
	"fmt"

	"github.com/olusolaa/cloud-reconciler/internal/errors"
)

// Environment describes the endpoint set of one cloud partition.
type Environment struct {
	Name        string
	Partition   string
	STSEndpoint string
	DNSSuffix   string
}

const DefaultPartition = "aws"

var environments = map[string]Environment{
	"aws": {
		Name:        "public",
		Partition:   "aws",
		STSEndpoint: "https://sts.amazonaws.com",
		DNSSuffix:   "amazonaws.com",
	},
	"aws-us-gov": {
		Name:        "us-gov",
		Partition:   "aws-us-gov",
		STSEndpoint: "https://sts.us-gov-west-1.amazonaws.com",
		DNSSuffix:   "amazonaws.com",
	},
	"aws-cn": {
		Name:        "china",
		Partition:   "aws-cn",
		STSEndpoint: "https://sts.cn-north-1.amazonaws.com.cn",
		DNSSuffix:   "amazonaws.com.cn",
	},
}

// EnvironmentFor resolves a partition name to its endpoint descriptor.
// An empty name selects the default public partition, the provider's
// well-known catch-all scope.
func EnvironmentFor(partition string) (Environment, error) {
	if partition == "" {
		partition = DefaultPartition
	}
	env, ok := environments[partition]
	if !ok {
		return Environment{}, errors.NewUserFacing(errors.CodeAuthError,
			fmt.Sprintf("unknown cloud partition '%s'", partition),
			"Valid partitions: aws, aws-us-gov, aws-cn.")
	}
	return env, nil
}
