package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/propspace/authcore"
)

// DevSender writes the plaintext code to a zap logger. Local development
// only: it exists so a developer can complete signup and recovery flows
// without a delivery pipeline. Never wire it in production.
type DevSender struct {
	log *zap.Logger
}

func NewDevSender(log *zap.Logger) *DevSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &DevSender{log: log}
}

func (s *DevSender) SendOTP(_ context.Context, email, code string, purpose authcore.OTPPurpose) error {
	s.log.Info("otp issued",
		zap.String("email", email),
		zap.String("purpose", purpose.String()),
		zap.String("code", code),
	)
	return nil
}

// NoOpSender discards codes. Useful in tests that exercise issuance paths
// where delivery is out of scope.
type NoOpSender struct{}

func (NoOpSender) SendOTP(context.Context, string, string, authcore.OTPPurpose) error {
	return nil
}
