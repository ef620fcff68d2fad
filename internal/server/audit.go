package server

import (
	"context"

	"github.com/glinharesb/ecsign/internal/audit"
	"github.com/glinharesb/ecsign/internal/wire"
)

func (s *SignerServer) QueryAudit(ctx context.Context, req *wire.QueryAuditRequest) (*wire.QueryAuditResponse, error) {
	entries := s.audit.Query(audit.Filter{
		KeyID:     req.KeyID,
		Operation: req.Operation,
		Start:     req.StartTime,
		End:       req.EndTime,
		Limit:     int(req.Limit),
	})

	out := make([]*wire.AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryToWire(e))
	}
	return &wire.QueryAuditResponse{Entries: out}, nil
}

func auditEntryToWire(e audit.Entry) *wire.AuditEntry {
	return &wire.AuditEntry{
		ID:          e.ID,
		Timestamp:   e.Timestamp,
		Operation:   e.Operation,
		KeyID:       e.KeyID,
		Status:      e.Status,
		Algorithm:   e.Algorithm,
		Verdict:     e.Verdict,
		PeerAddress: e.PeerAddress,
		Metadata:    e.Metadata,
	}
}
