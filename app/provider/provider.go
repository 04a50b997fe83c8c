package provider

import (
	"context"

	"github.com/relayq/relayq/app/entity"
)

// MailSender is the transport capability the failover engine drives.
// Concrete transports plug in by implementing it.
type MailSender interface {
	Name() string
	SendEmail(ctx context.Context, email *entity.Email) error
}
