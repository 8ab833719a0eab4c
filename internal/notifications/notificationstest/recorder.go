// Package notificationstest provides an in-memory Notifier for service tests.
package notificationstest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// Sent is one recorded notification. UserID is uuid.Nil for admin broadcasts.
type Sent struct {
	UserID  uuid.UUID
	Admins  bool
	Type    enums.NotificationType
	Link    string
	Subject string
}

// Recorder captures notifications instead of persisting them.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
}

func (r *Recorder) NotifyUser(_ context.Context, userID uuid.UUID, typ enums.NotificationType, link, subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{UserID: userID, Type: typ, Link: link, Subject: subject})
}

func (r *Recorder) NotifyAllAdmins(_ context.Context, typ enums.NotificationType, link, subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{Admins: true, Type: typ, Link: link, Subject: subject})
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// OfType filters recorded notifications by type.
func (r *Recorder) OfType(typ enums.NotificationType) []Sent {
	var out []Sent
	for _, s := range r.Sent() {
		if s.Type == typ {
			out = append(out, s)
		}
	}
	return out
}
