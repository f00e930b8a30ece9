package payments

import (
	"context"

	"gymgate/internal/payments/service"
	apperrors "gymgate/pkg/errors"
	"gymgate/pkg/kafka"
	"gymgate/pkg/logger"
)

// NewConfirmationHandler adapts the payment service to the broker. It is
// the async counterpart of the webhook: confirmations arriving on the
// payments topic credit the ledger the same way.
//
// Malformed or rejected events return an error so the consumer routes
// them to the DLQ; duplicates succeed silently.
func NewConfirmationHandler(svc service.PaymentService, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event service.PaymentEvent
		if err := msg.DecodeValue(&event); err != nil {
			log.Error("Failed to decode payment confirmation",
				"event_id", msg.GetEventID(),
				"error", err,
			)
			return err
		}

		// Broker confirmations may omit the provider event type; the
		// topic itself means the payment succeeded.
		if event.Type == "" {
			event.Type = service.EventTypePaymentSucceeded
		}

		outcome, err := svc.Process(ctx, &event)
		if err != nil {
			// Invalid metadata will never succeed on retry; drop it to
			// the DLQ via the error path.
			if apperrors.HasCode(err, apperrors.CodeInvalidInput) {
				log.Warn("Rejecting malformed payment confirmation", "payment_id", event.ID)
			}
			return err
		}

		log.Info("Processed payment confirmation", "payment_id", event.ID, "outcome", string(outcome))
		return nil
	}
}
