package domain

import "fmt"

type AuthProvider int

const (
	ProviderLocal AuthProvider = iota
	ProviderGoogle
	ProviderMicrosoft
	ProviderApple
	ProviderFacebook
	ProviderLti
	ProviderSaml
	ProviderLdap
	ProviderCustom
)

var authProviderNames = map[AuthProvider]string{
	ProviderLocal:     "local",
	ProviderGoogle:    "google",
	ProviderMicrosoft: "microsoft",
	ProviderApple:     "apple",
	ProviderFacebook:  "facebook",
	ProviderLti:       "lti",
	ProviderSaml:      "saml",
	ProviderLdap:      "ldap",
	ProviderCustom:    "custom",
}

var authProviderValues = invert(authProviderNames)

func (p AuthProvider) String() string {
	if s, ok := authProviderNames[p]; ok {
		return s
	}
	return fmt.Sprintf("AuthProvider(%d)", int(p))
}

// ParseAuthProvider decodes a stored value. Unknown input means a corrupt record.
func ParseAuthProvider(s string) (AuthProvider, error) {
	if p, ok := authProviderValues[s]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("%w: unknown auth_provider %q", ErrDataIntegrity, s)
}

type UserState int

const (
	StateRegistered UserState = iota
	StateVerified
	StateActive
	StateIncomplete
	StateDisabled
	StateLocked
	StateDeleted
)

var userStateNames = map[UserState]string{
	StateRegistered: "registered",
	StateVerified:   "verified",
	StateActive:     "active",
	StateIncomplete: "incomplete",
	StateDisabled:   "disabled",
	StateLocked:     "locked",
	StateDeleted:    "deleted",
}

var userStateValues = invert(userStateNames)

func (s UserState) String() string {
	if v, ok := userStateNames[s]; ok {
		return v
	}
	return fmt.Sprintf("UserState(%d)", int(s))
}

func ParseUserState(s string) (UserState, error) {
	if st, ok := userStateValues[s]; ok {
		return st, nil
	}
	return 0, fmt.Errorf("%w: unknown user_state %q", ErrDataIntegrity, s)
}

func invert[K comparable](m map[K]string) map[string]K {
	out := make(map[string]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}
