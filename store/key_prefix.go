package store

// Declare database key prefix for objects
const (
	PrefixVault   = "vault:"
	PrefixHolding = "holding:"
)
