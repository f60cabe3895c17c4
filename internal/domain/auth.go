package domain

// SubjectType differentiates token subjects.
type SubjectType string

const (
	SubjectTypeOperator SubjectType = "OPERATOR"
)

// Operator is a configured person allowed to approve or reject requests.
type Operator struct {
	Username     string
	PasswordHash string
}
