package contextkeys

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "storage-gateway context key " + string(c)
}

// UserIDKey is the key for the authenticated user in context.Context
const UserIDKey = contextKey("userID")

// ProviderKey is the key for the resolved provider short name in context.Context
const ProviderKey = contextKey("provider")

// AccountIDKey is the key for the resolved external account in context.Context
const AccountIDKey = contextKey("accountID")

// RequestIDKey is the key for the request ID in context.Context
const RequestIDKey = contextKey("requestID")

// ComponentKey is the key for the originating component in context.Context
const ComponentKey = contextKey("component")

// OperationKey is the key for the gateway operation in context.Context
const OperationKey = contextKey("operation")
