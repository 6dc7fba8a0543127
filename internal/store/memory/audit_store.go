package memory

import (
	"context"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// AuditStore implements domain.AuditStore in memory.
type AuditStore struct {
	a access
}

// Log appends an audit entry.
func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	return s.a.write(func(st *state) error {
		st.auditSeq++
		st.audit = append(st.audit, domain.AuditEntry{
			ID:        st.auditSeq,
			Event:     event,
			Detail:    detail,
			CreatedAt: time.Now().UTC(),
		})
		return nil
	})
}

// List returns audit entries within opts, newest first.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	s.a.read(func(st *state) {
		for i := len(st.audit) - 1; i >= 0; i-- {
			if inRange(st.audit[i].CreatedAt, opts) {
				out = append(out, st.audit[i])
			}
		}
	})
	return page(out, opts), nil
}

var _ domain.AuditStore = (*AuditStore)(nil)
