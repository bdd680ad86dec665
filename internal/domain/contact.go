package domain

// CustomerContact is one email address registered for a customer account.
type CustomerContact struct {
	ID        int64
	AccountID string
	Email     string
	IsPrimary bool
}
