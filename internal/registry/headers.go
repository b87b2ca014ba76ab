package registry

import (
	"fmt"
	"sort"

	"golang.org/x/net/http/httpguts"

	"github.com/sieve-urls/sieve/internal/netctx"
)

// Approval is the review state of a custom header.
type Approval string

const (
	// ApprovalUnknown means nobody has decided yet; the header is held
	// back and requests carrying its context are not yet valid.
	ApprovalUnknown Approval = "unknown"
	// ApprovalApproved means the header is sent.
	ApprovalApproved Approval = "approved"
	// ApprovalDenied means the header is kept but never sent.
	ApprovalDenied Approval = "denied"
)

// HeaderEntry is one custom header under one network context. Reason is the
// importer's explanation of why the header exists, shown when asking the
// user to approve it.
type HeaderEntry struct {
	Value    string   `json:"value"`
	Approval Approval `json:"approval"`
	Reason   string   `json:"reason,omitempty"`
}

// SetCustomHeader stores a header under a context. Name and value must be
// legal HTTP header material; imported rule packs are not trusted to get
// that right.
func (r *Registry) SetCustomHeader(ctx netctx.Context, name, value string, approval Approval, reason string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("invalid header name %q", name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("invalid value for header %q", name)
	}
	switch approval {
	case ApprovalUnknown, ApprovalApproved, ApprovalDenied:
	default:
		return fmt.Errorf("invalid approval state %q", approval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, ok := r.headers[ctx]
	if !ok {
		entries = map[string]HeaderEntry{}
		r.headers[ctx] = entries
	}
	entries[name] = HeaderEntry{Value: value, Approval: approval, Reason: reason}
	r.setDirtyLocked()
	return nil
}

// SetHeaderApproval records a decision on a held header.
func (r *Registry) SetHeaderApproval(ctx netctx.Context, name string, approval Approval) error {
	switch approval {
	case ApprovalApproved, ApprovalDenied, ApprovalUnknown:
	default:
		return fmt.Errorf("invalid approval state %q", approval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, ok := r.headers[ctx]
	if !ok {
		return fmt.Errorf("no custom headers under %s", ctx)
	}
	entry, ok := entries[name]
	if !ok {
		return fmt.Errorf("no custom header %q under %s", name, ctx)
	}
	entry.Approval = approval
	entries[name] = entry
	r.setDirtyLocked()
	return nil
}

// DeleteCustomHeader removes a header from a context.
func (r *Registry) DeleteCustomHeader(ctx netctx.Context, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, ok := r.headers[ctx]
	if !ok {
		return
	}
	if _, ok := entries[name]; !ok {
		return
	}
	delete(entries, name)
	if len(entries) == 0 {
		delete(r.headers, ctx)
	}
	r.setDirtyLocked()
}

// GetHeaders flattens the approved headers across contexts, later (more
// specific) contexts overriding earlier ones. Unknown and denied entries
// are never emitted.
func (r *Registry) GetHeaders(contexts []netctx.Context) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := map[string]string{}
	for _, ctx := range contexts {
		for name, entry := range r.headers[ctx] {
			if entry.Approval == ApprovalApproved {
				out[name] = entry.Value
			}
		}
	}
	return out
}

// IsValid reports whether requests under these contexts may proceed: false
// while any header is still awaiting a decision.
func (r *Registry) IsValid(contexts []netctx.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ctx := range contexts {
		for _, entry := range r.headers[ctx] {
			if entry.Approval == ApprovalUnknown {
				return false
			}
		}
	}
	return true
}

// PendingHeader is one undecided header, surfaced for review.
type PendingHeader struct {
	Context netctx.Context `json:"context"`
	Name    string         `json:"name"`
	Value   string         `json:"value"`
	Reason  string         `json:"reason,omitempty"`
}

// GetUnknownHeaders lists the undecided headers under the given contexts.
// The approval flow is asynchronous: callers show these to the user and
// feed decisions back through SetHeaderApproval; nothing blocks.
func (r *Registry) GetUnknownHeaders(contexts []netctx.Context) []PendingHeader {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []PendingHeader
	for _, ctx := range contexts {
		for name, entry := range r.headers[ctx] {
			if entry.Approval == ApprovalUnknown {
				pending = append(pending, PendingHeader{Context: ctx, Name: name, Value: entry.Value, Reason: entry.Reason})
			}
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Context != pending[j].Context {
			return pending[i].Context.String() < pending[j].Context.String()
		}
		return pending[i].Name < pending[j].Name
	})
	return pending
}

// GetAllUnknownHeaders lists every undecided header in the registry.
func (r *Registry) GetAllUnknownHeaders() []PendingHeader {
	r.mu.Lock()
	contexts := make([]netctx.Context, 0, len(r.headers))
	for ctx := range r.headers {
		contexts = append(contexts, ctx)
	}
	r.mu.Unlock()

	sort.Slice(contexts, func(i, j int) bool { return contexts[i].String() < contexts[j].String() })
	return r.GetUnknownHeaders(contexts)
}

// HasCustomHeaders reports whether a context has any headers at all.
func (r *Registry) HasCustomHeaders(ctx netctx.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.headers[ctx]) > 0
}

// GetShareableCustomHeaders returns a context's approved headers, the set
// safe to include when exporting rules for someone else.
func (r *Registry) GetShareableCustomHeaders(ctx netctx.Context) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := map[string]string{}
	for name, entry := range r.headers[ctx] {
		if entry.Approval == ApprovalApproved {
			out[name] = entry.Value
		}
	}
	return out
}

// SetGlobalUserAgent installs the User-Agent sent with every request. It is
// self-inflicted configuration, so it is born approved.
func (r *Registry) SetGlobalUserAgent(value string) error {
	return r.SetCustomHeader(netctx.Global(), "User-Agent", value, ApprovalApproved, "set by the user")
}

// GetHeadersForURL is GetHeaders over the URL's own context chain, with the
// matched URL class's per-class overrides applied last.
func (r *Registry) GetHeadersForURL(url string) map[string]string {
	headers := r.GetHeaders(netctx.ContextsForURL(url))
	for name, value := range r.GetURLClassHeaders(url) {
		headers[name] = value
	}
	return headers
}
