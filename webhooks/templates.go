package webhooks

import (
	"strings"

	"github.com/goliatone/go-identity-sync/core"
)

// ProviderWebhookTemplate bundles the verifier and delivery id extractor a
// provider's deliveries need.
type ProviderWebhookTemplate struct {
	ProviderID string
	Verifier   Verifier
	Extractor  DeliveryIDExtractor
}

// NewProcessor builds a processor from the template.
func (t ProviderWebhookTemplate) NewProcessor(ledger DeliveryLedger, handler Handler) *Processor {
	processor := NewProcessor(t.Verifier, ledger, handler)
	if t.Extractor != nil {
		processor.ExtractID = t.Extractor
	}
	return processor
}

func HeaderDeliveryIDExtractor(headers ...string) DeliveryIDExtractor {
	keys := append([]string(nil), headers...)
	return func(req core.InboundRequest) (string, error) {
		for _, key := range keys {
			if value := strings.TrimSpace(req.Header(key)); value != "" {
				return value, nil
			}
		}
		return "", core.BadInput("webhooks: delivery id is required for dedupe", nil)
	}
}

// NewClerkWebhookTemplate returns the template for Clerk deliveries, which
// are signed and sent by Svix.
func NewClerkWebhookTemplate(secret string, opts ...SvixOption) (ProviderWebhookTemplate, error) {
	verifier, err := NewSvixVerifier(secret, opts...)
	if err != nil {
		return ProviderWebhookTemplate{}, err
	}
	return ProviderWebhookTemplate{
		ProviderID: core.DefaultProviderID,
		Verifier:   verifier,
		Extractor:  HeaderDeliveryIDExtractor(HeaderSvixID, "webhook-id"),
	}, nil
}
