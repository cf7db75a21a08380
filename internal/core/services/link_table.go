package services

import (
	"liveclass/internal/core/domain"

	"go.uber.org/zap"
)

// LinkTable indexes a room's links by (kind, remote participant) and
// enforces at-most-one-link-per-key. It is owned by one orchestrator and
// only touched from its event loop.
type LinkTable struct {
	links   map[domain.LinkKey]*Link
	newLink func(key domain.LinkKey) *Link
	logger  *zap.SugaredLogger
}

func NewLinkTable(newLink func(key domain.LinkKey) *Link, logger *zap.SugaredLogger) *LinkTable {
	return &LinkTable{
		links:   make(map[domain.LinkKey]*Link),
		newLink: newLink,
		logger:  logger,
	}
}

func (t *LinkTable) Get(key domain.LinkKey) (*Link, bool) {
	link, ok := t.links[key]
	return link, ok
}

func (t *LinkTable) Len() int { return len(t.links) }

// CreateForOutbound registers a fresh link for a locally initiated
// negotiation. A leftover link for the same key is closed and replaced so a
// stale negotiation attempt never blocks reconnection.
func (t *LinkTable) CreateForOutbound(key domain.LinkKey) *Link {
	if existing, ok := t.links[key]; ok {
		t.logger.Warnw("replacing existing link for outbound negotiation",
			"link", key.String(), "state", existing.State().String())
		existing.Close()
	}
	link := t.newLink(key)
	t.links[key] = link
	return link
}

// GetOrCreateForInboundOffer returns the link an inbound offer belongs to.
// An existing idle link is reused; an existing link past idle means the
// remote restarted negotiation without a stop, which is a protocol
// violation, so the stale link is closed and replaced.
func (t *LinkTable) GetOrCreateForInboundOffer(key domain.LinkKey) *Link {
	if existing, ok := t.links[key]; ok {
		if existing.State() == domain.LinkStateIdle {
			return existing
		}
		t.logger.Warnw("inbound offer collides with non-idle link, replacing",
			"link", key.String(), "state", existing.State().String(),
			"error", domain.ErrDuplicateLink)
		existing.Close()
	}
	link := t.newLink(key)
	t.links[key] = link
	return link
}

// RemoveAndClose closes and drops the entry if present.
func (t *LinkTable) RemoveAndClose(key domain.LinkKey) {
	if link, ok := t.links[key]; ok {
		link.Close()
		delete(t.links, key)
	}
}

// CloseAllForRemote closes every link of any kind to the given participant.
// Invoked on participant departure.
func (t *LinkTable) CloseAllForRemote(remote domain.Username) {
	for key, link := range t.links {
		if key.Remote == remote {
			link.Close()
			delete(t.links, key)
		}
	}
}

// CloseAllOfKind closes every link of one kind. Invoked when the local
// broadcaster stops their own stream.
func (t *LinkTable) CloseAllOfKind(kind domain.LinkKind) {
	for key, link := range t.links {
		if key.Kind == kind {
			link.Close()
			delete(t.links, key)
		}
	}
}

// CloseAll tears down the whole table, for orchestrator shutdown.
func (t *LinkTable) CloseAll() {
	for key, link := range t.links {
		link.Close()
		delete(t.links, key)
	}
}
