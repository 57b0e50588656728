package domain

// SubjectType differentiates the principals that can call the API.
type SubjectType string

const (
	SubjectTypeCustomer SubjectType = "CUSTOMER"
	SubjectTypeProvider SubjectType = "PROVIDER"
	SubjectTypeAdmin    SubjectType = "ADMIN"
	SubjectTypeService  SubjectType = "SERVICE"
)

// AccountRef maps an account-holding subject to its penalty account.
func (s SubjectType) AccountRef(id string) (AccountRef, bool) {
	switch s {
	case SubjectTypeCustomer:
		return CustomerRef(id), true
	case SubjectTypeProvider:
		return ProviderRef(id), true
	default:
		return AccountRef{}, false
	}
}
