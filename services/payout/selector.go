package payout

import (
	"creatorhub-payments/pkg/provider"
	"creatorhub-payments/services/creator"
)

// FeatureGatewayPayouts gates the card/bank gateway provider. Mobile money
// is always available.
const FeatureGatewayPayouts = "payouts_gateway_enabled"

// SelectProvider walks the fixed provider priority and returns the first one
// the creator holds a verified profile for. Selection is deterministic: the
// same profile set always yields the same provider regardless of the order
// profiles were verified in.
func SelectProvider(profiles []*creator.PaymentProfile, gatewayEnabled bool) (provider.Name, *creator.PaymentProfile, bool) {
	byProvider := make(map[provider.Name]*creator.PaymentProfile, len(profiles))
	for _, p := range profiles {
		if !p.IsVerified {
			continue
		}
		byProvider[provider.Name(p.Provider)] = p
	}

	for _, name := range provider.Priority {
		if name == provider.Chapa && !gatewayEnabled {
			continue
		}
		if p, ok := byProvider[name]; ok {
			return name, p, true
		}
	}

	return "", nil, false
}
