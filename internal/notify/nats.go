package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
)

// Publisher is the subset of *nats.Conn the NATS sink uses.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATS publishes notifications as JSON on a subject.
type NATS struct {
	pub     Publisher
	subject string
}

// NewNATS returns a sink publishing on subject.
func NewNATS(pub Publisher, subject string) *NATS {
	return &NATS{pub: pub, subject: subject}
}

func (s *NATS) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotification, ErrDeliveryFailed.Message()).Build()
	}

	msg := nats.NewMsg(s.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, n.CorrelationID)
	if err := s.pub.PublishMsg(msg); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotification, ErrDeliveryFailed.Message()).
			WithContext("subject", s.subject).
			Warning().
			Build()
	}

	slog.Debug("Published notification",
		slog.String("subject", s.subject),
		slog.Int64("notification_id", n.ID))
	return nil
}
