package errors

type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeConfigValidation Code = "CONFIG_VALIDATION_ERROR"
	CodeConfigReadError  Code = "CONFIG_READ_ERROR"
	CodeConfigParseError Code = "CONFIG_PARSE_ERROR"
	CodeSpecReadError    Code = "SPEC_READ_ERROR"
	CodeSpecParseError   Code = "SPEC_PARSE_ERROR"

	CodeAuthError            Code = "AUTH_ERROR"
	CodeCredentialFileError  Code = "CREDENTIAL_FILE_ERROR"
	CodeImmutableConflict    Code = "IMMUTABLE_FIELD_CONFLICT"
	CodeProviderRequestError Code = "PROVIDER_REQUEST_ERROR"
	CodeOperationTimeout     Code = "OPERATION_TIMEOUT"
	CodeProvisioningFailed   Code = "PROVISIONING_FAILED"
	CodeResourceNotFound     Code = "RESOURCE_NOT_FOUND"

	CodeDiffError          Code = "DIFF_ERROR"
	CodePlanError          Code = "PLAN_ERROR"
	CodeTypeAssertionError Code = "TYPE_ASSERTION_ERROR"
	CodeUnsupportedKind    Code = "UNSUPPORTED_RESOURCE_KIND"
	CodeInvalidIdentity    Code = "INVALID_RESOURCE_IDENTITY"
	CodeNotImplemented     Code = "NOT_IMPLEMENTED"
)

func (c Code) String() string {
	return string(c)
}
