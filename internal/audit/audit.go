package audit

import (
	"net"
	"net/http"
	"strings"
	"time"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Entry is what callers hand to the emitter. ActorRole is optional; the
// emitter denormalizes the actor's current role when it is left empty.
type Entry struct {
	TenantID     *int64
	UserID       *int64
	ActorRole    string
	Action       string
	ResourceType string
	ResourceID   *int64
	Details      map[string]any
	Severity     Severity
	IPAddress    string
	UserAgent    string
}

// Record is the persisted, append-only row.
type Record struct {
	ID           string         `json:"id"`
	TenantID     *int64         `json:"tenant_id,omitempty"`
	UserID       *int64         `json:"user_id,omitempty"`
	ActorRole    string         `json:"actor_role,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   *int64         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Severity     Severity       `json:"severity"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// RequestMeta captures requester attributes for audit enrichment.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// MetaFromRequest extracts the requester IP (X-Forwarded-For aware) and
// user agent.
func MetaFromRequest(r *http.Request) RequestMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		parts := strings.Split(ip, ",")
		ip = strings.TrimSpace(parts[0])
	} else {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}

	return RequestMeta{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

// Apply copies request metadata onto an entry.
func (m RequestMeta) Apply(e *Entry) {
	e.IPAddress = m.IPAddress
	e.UserAgent = m.UserAgent
}
