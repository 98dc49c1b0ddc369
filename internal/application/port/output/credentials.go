package output

// Credential kinds the login sub-protocol may request.
const (
	CredentialUsername = "username"
	CredentialPassword = "password"
)

// CredentialsPort is the narrow seam for credential injection. Values
// returned here go to the browser call only; everything the oracle or the
// trace sees carries the placeholder instead.
type CredentialsPort interface {
	Credential(kind string) (value string, ok bool)
}
