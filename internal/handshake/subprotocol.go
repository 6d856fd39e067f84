package handshake

import (
	"github.com/dunglas/httpsfv"
	"golang.org/x/mod/semver"
)

// Protocol describes one subprotocol family the server accepts.
// A versioned family like {Name: "chat", Versions: ["v1", "v2"]} matches
// offers of the form "chat.v1"; an empty Versions list matches the bare name.
type Protocol struct {
	Name     string
	Versions []string
}

// ProtocolRegistry selects the subprotocol for a handshake from the client's
// offer list. RFC 6455 requires the server to echo one of the offered tokens
// verbatim, so selection always returns an offer, never a server-side name.
type ProtocolRegistry struct {
	protocols []Protocol
}

// NewProtocolRegistry builds a registry from the given protocol families.
func NewProtocolRegistry(protocols ...Protocol) *ProtocolRegistry {
	return &ProtocolRegistry{protocols: protocols}
}

// Empty reports whether the registry has no protocols configured.
func (reg *ProtocolRegistry) Empty() bool {
	return len(reg.protocols) == 0
}

// Select returns the first client offer the registry supports, honouring
// client preference order. Returns false when nothing matches; the handshake
// then proceeds without a subprotocol.
func (reg *ProtocolRegistry) Select(offers []string) (string, bool) {
	for _, offer := range offers {
		if reg.supports(offer) {
			return offer, true
		}
	}
	return "", false
}

// supports reports whether one offer is acceptable. An unversioned family
// matches its bare name only. A versioned family matches "name.version" when
// it lists that exact version, or a same-major version at least as new as the
// offer (the newer server can speak the older minor format).
func (reg *ProtocolRegistry) supports(offer string) bool {
	name, version := splitOffer(offer)

	for _, p := range reg.protocols {
		if len(p.Versions) == 0 {
			if p.Name == offer {
				return true
			}
			continue
		}
		if p.Name != name || version == "" {
			continue
		}
		for _, v := range p.Versions {
			if v == version {
				return true
			}
			sv, so := normalizeVersion(v), normalizeVersion(version)
			if !semver.IsValid(sv) || !semver.IsValid(so) {
				continue
			}
			if semver.Major(sv) == semver.Major(so) && semver.Compare(sv, so) >= 0 {
				return true
			}
		}
	}
	return false
}

// splitOffer splits "chat.v2" into ("chat", "v2"). The version is everything
// after the first dot whose suffix parses as a version, so "chat.v2.0" splits
// into ("chat", "v2.0"). Offers without a version-shaped suffix split into
// (offer, "").
func splitOffer(offer string) (name, version string) {
	for i := 1; i < len(offer)-1; i++ {
		if offer[i] != '.' {
			continue
		}
		suffix := offer[i+1:]
		if semver.IsValid(normalizeVersion(suffix)) {
			return offer[:i], suffix
		}
	}
	return offer, ""
}

// normalizeVersion adds the "v" prefix semver parsing requires.
func normalizeVersion(v string) string {
	if v == "" {
		return ""
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

// offersPerMessageDeflate reports whether the client's
// Sec-WebSocket-Extensions offer includes permessage-deflate. The header is
// an RFC 8941-compatible parameterised list, so it is parsed as one;
// unparseable offers count as no offer.
func offersPerMessageDeflate(offers []string) bool {
	if len(offers) == 0 {
		return false
	}
	list, err := httpsfv.UnmarshalList(offers)
	if err != nil {
		return false
	}
	for _, member := range list {
		item, ok := member.(httpsfv.Item)
		if !ok {
			continue
		}
		if token, ok := item.Value.(httpsfv.Token); ok && string(token) == "permessage-deflate" {
			return true
		}
	}
	return false
}
