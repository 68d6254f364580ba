package logging

import (
	"context"

	"github.com/MrEthical07/jwtauth"
	"github.com/sirupsen/logrus"
)

// AuditSink writes engine audit events as structured log entries. Failed
// events are logged at warn level.
type AuditSink struct {
	log *Logger
}

var _ jwtauth.AuditSink = (*AuditSink)(nil)

func NewAuditSink(log *Logger) *AuditSink {
	return &AuditSink{log: log.WithComponent("audit")}
}

func (s *AuditSink) Emit(_ context.Context, ev jwtauth.AuditEvent) {
	fields := logrus.Fields{
		"event_type": ev.Type,
		"success":    ev.Success,
		"timestamp":  ev.Timestamp.Unix(),
	}
	if ev.UserID != "" {
		fields["user_id"] = ev.UserID
	}
	if ev.TokenID != "" {
		fields["token_id"] = ev.TokenID
	}
	if ev.IP != "" {
		fields["ip"] = ev.IP
	}
	if ev.Error != "" {
		fields["error"] = ev.Error
	}
	for k, v := range ev.Metadata {
		fields["md_"+k] = v
	}

	entry := s.log.Entry().WithFields(fields)
	if ev.Success {
		entry.Info("audit event")
		return
	}
	entry.Warn("audit event")
}
