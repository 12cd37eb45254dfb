package meeting

// Repository persists meetings, keyed by (ownerUID, provider, externalID).
type Repository interface {
	Create(m *Meeting) error
	Update(m *Meeting) error
	GetByExternalID(ownerUID, provider, externalID string) (*Meeting, error)
	ListByOwner(ownerUID, provider string) ([]*Meeting, error)
	ListActiveByOwner(ownerUID, provider string) ([]*Meeting, error)
	CountActiveByOwner(ownerUID, provider string) (int64, error)

	// CancelAllByOwner marks every non-canceled meeting canceled; used on
	// disconnect without purge.
	CancelAllByOwner(ownerUID, provider string) error

	// DeleteByOwner hard-deletes all meetings; used on purge-on-disconnect.
	DeleteByOwner(ownerUID, provider string) error
}
