package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/cyplat/gandalf/internal/domain"
	"github.com/cyplat/gandalf/internal/log"
)

const KeyVerificationRequested = "user.verification_requested"

type VerificationRequested struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// VerificationNotifier publishes verification requests for the notifier
// worker to deliver.
type VerificationNotifier struct {
	pub      Publisher
	exchange string
}

func NewVerificationNotifier(pub Publisher, exchange string) *VerificationNotifier {
	return &VerificationNotifier{pub: pub, exchange: exchange}
}

func (n *VerificationNotifier) SendVerification(ctx context.Context, msg domain.VerificationEmail) error {
	return n.pub.Publish(ctx, n.exchange, KeyVerificationRequested, VerificationRequested{
		UserID: msg.UserID.String(),
		Email:  msg.Email,
		Token:  msg.Token,
	}, log.RequestID(ctx))
}

// VerificationHandler decodes VerificationRequested events and passes them
// to send. Undecodable events are dropped.
func VerificationHandler(send func(context.Context, domain.VerificationEmail) error) Handler {
	return func(ctx context.Context, body []byte) error {
		var ev VerificationRequested
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("%w: decode: %w", ErrDrop, err)
		}
		id, err := uuid.Parse(ev.UserID)
		if err != nil || ev.Email == "" || ev.Token == "" {
			return fmt.Errorf("%w: incomplete event for user %q", ErrDrop, ev.UserID)
		}
		return send(ctx, domain.VerificationEmail{UserID: id, Email: ev.Email, Token: ev.Token})
	}
}
