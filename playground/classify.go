package playground

import (
	"net/url"

	"playground/model"
)

// DefaultSettingsLink is where missing credentials are added.
const DefaultSettingsLink = "playground://settings/credentials"

// IsMissingCredential reports whether resp names a credential that is not
// configured together with a reason to show the user.
func IsMissingCredential(resp *model.Response) bool {
	return resp != nil && resp.APIKeyName != "" && resp.Reason != ""
}

// AnyMissingCredential reports whether any of resps is a missing credential
// response.
func AnyMissingCredential(resps ...*model.Response) bool {
	for _, r := range resps {
		if IsMissingCredential(r) {
			return true
		}
	}
	return false
}

// IsGenericError reports whether resp is absent or carries an error message.
func IsGenericError(resp *model.Response) bool {
	return resp == nil || resp.Error != ""
}

// Classify returns the error a response represents, or nil when it may be
// committed. settingsLink is the base of the remediation link for missing
// credentials.
func Classify(resp *model.Response, settingsLink string) *Error {
	switch {
	case IsMissingCredential(resp):
		return &Error{
			Kind:       KindMissingCredential,
			Message:    resp.Reason,
			APIKeyName: resp.APIKeyName,
			Link:       credentialLink(settingsLink, resp.APIKeyName),
		}
	case resp == nil:
		return &Error{Kind: KindUpstreamError, Message: "empty response"}
	case resp.Error != "":
		return &Error{Kind: KindUpstreamError, Message: resp.Error}
	}
	return nil
}

func credentialLink(base, keyName string) string {
	if base == "" {
		base = DefaultSettingsLink
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "#" + keyName
	}
	u.Fragment = keyName
	return u.String()
}
