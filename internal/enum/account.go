package enum

type AccountRole string

const (
	AccountRoleUser  AccountRole = "user"
	AccountRoleAdmin AccountRole = "admin"
)

func (t AccountRole) String() string {
	return string(t)
}
