package model

// Credential identifies which external account applies to an inbound
// request. Resolvers return nil (no error) when they have nothing to offer,
// letting the chain continue to the next resolver.
type Credential struct {
	Provider  string `json:"provider"`
	AccountID string `json:"accountId"`
	UserID    string `json:"userId,omitempty"`
	// Source names the resolver that produced the credential
	Source string `json:"source,omitempty"`
}

// RequestContext is the inbound request surface the auth resolvers inspect.
// The HTTP adapter builds one per request; resolvers never touch transport
// types directly.
type RequestContext struct {
	AuthorizationHeader string
	Cookies             map[string]string
	Query               map[string]string
	SessionID           string
	// ProviderHint carries the provider short name from the route, so
	// resolvers can scope their lookup
	ProviderHint string
}

// Cookie returns the named cookie value, or empty
func (rc *RequestContext) Cookie(name string) string {
	if rc.Cookies == nil {
		return ""
	}
	return rc.Cookies[name]
}
