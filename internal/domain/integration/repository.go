package integration

// Repository persists integration accounts, keyed by (uid, provider).
type Repository interface {
	Create(account *Account) error
	GetByUIDAndProvider(uid, provider string) (*Account, error)
	ListByStatus(status ConnectionStatus) ([]*Account, error)
	Update(account *Account) error
	Delete(uid, provider string) error
}
