package file

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// ActionKind enumerates the actions a dispatcher can run. Dispatch is an
// exhaustive switch; adding a kind without handling it fails at execution,
// not silently.
type ActionKind int

const (
	ActionRename ActionKind = iota
	ActionShare
	ActionUnshare
	ActionDelete
	ActionDownload
	ActionDetails
)

func (k ActionKind) String() string {
	switch k {
	case ActionRename:
		return "rename"
	case ActionShare:
		return "share"
	case ActionUnshare:
		return "unshare"
	case ActionDelete:
		return "delete"
	case ActionDownload:
		return "download"
	case ActionDetails:
		return "details"
	default:
		return "unknown"
	}
}

// ParseActionKind maps a wire value onto an ActionKind.
func ParseActionKind(s string) (ActionKind, bool) {
	switch s {
	case "rename":
		return ActionRename, true
	case "share":
		return ActionShare, true
	case "unshare":
		return ActionUnshare, true
	case "delete":
		return ActionDelete, true
	case "download":
		return ActionDownload, true
	case "details":
		return ActionDetails, true
	default:
		return 0, false
	}
}

// State tracks the lifecycle of one in-flight action.
type State int

const (
	StateIdle State = iota
	StateSelected
	StateConfirming
	StateExecuting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelected:
		return "selected"
	case StateConfirming:
		return "confirming"
	case StateExecuting:
		return "executing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Draft holds proposed, uncommitted input for an action. On failure it is
// preserved so the caller can retry without re-entering input.
type Draft struct {
	NewName string
	Emails  []string
}

// Outcome is the result of a successfully executed action.
type Outcome struct {
	Record  Record
	URL     string
	Warning *CleanupWarning
}

var actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gostash_file_actions_total",
	Help: "File actions executed, by kind and result.",
}, []string{"kind", "result"})

var errBadTransition = errors.New("invalid dispatcher state transition")

// Dispatcher runs one action at a time against a single file. It holds a
// transient copy of the record during an edit session; the persistence
// gateway stays the source of truth.
type Dispatcher struct {
	mu     sync.Mutex
	state  State
	kind   ActionKind
	draft  Draft
	file   Record
	gw     MetadataGateway
	blobs  BlobGateway
	cache  *Cache
	logger *zap.Logger
}

// NewDispatcher builds a dispatcher bound to one file record.
func NewDispatcher(rec Record, gw MetadataGateway, blobs BlobGateway, cache *Cache, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		state:  StateIdle,
		file:   rec,
		gw:     gw,
		blobs:  blobs,
		cache:  cache,
		logger: logger.Named("dispatcher").With(zap.String("file_id", rec.ID.String())),
	}
}

// State returns the current machine state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Draft returns the preserved draft, meaningful after a failure.
func (d *Dispatcher) Draft() Draft {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draft
}

// FileID returns the identifier of the bound file.
func (d *Dispatcher) FileID() uuid.UUID {
	return d.file.ID
}

// Select picks an action for the bound file. Selecting while an action is
// executing is rejected; the caller must wait for a terminal state.
func (d *Dispatcher) Select(kind ActionKind) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateExecuting {
		return ErrActionInFlight
	}

	if !(d.state == StateFailed && d.kind == kind) {
		d.draft = Draft{}
	}
	d.kind = kind
	d.state = StateSelected
	return nil
}

// Confirm moves a selected action into the confirmation step.
func (d *Dispatcher) Confirm() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateSelected {
		return fmt.Errorf("%w: confirm from %s", errBadTransition, d.state)
	}
	d.state = StateConfirming
	return nil
}

// Cancel aborts the current action and discards the draft. It is allowed
// from any state but Executing.
func (d *Dispatcher) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateExecuting {
		return ErrActionInFlight
	}
	d.state = StateIdle
	d.draft = Draft{}
	return nil
}

// ConfirmAndExecute runs the named action with the given draft. The
// caller states which kind it is confirming; if another session
// re-selected a different action in between, the confirm is rejected
// with ErrSelectionChanged and nothing executes.
//
// Validation failures leave the machine in Confirming with the draft
// intact and never reach the gateway. Gateway failures land in Failed,
// preserving the draft for retry. Success discards the draft and returns
// to Idle. Details and Download are read-only short circuits that skip
// the Executing state.
func (d *Dispatcher) ConfirmAndExecute(ctx context.Context, kind ActionKind, draft Draft) (Outcome, error) {
	d.mu.Lock()
	switch d.state {
	case StateSelected, StateConfirming, StateFailed:
	default:
		d.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: execute from %s", errBadTransition, d.state)
	}
	if kind != d.kind {
		d.mu.Unlock()
		return Outcome{}, ErrSelectionChanged
	}
	d.draft = draft
	readOnly := kind == ActionDetails || kind == ActionDownload
	if !readOnly {
		d.state = StateExecuting
	}
	d.mu.Unlock()

	out, err := d.execute(ctx, kind, draft)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			actionsTotal.WithLabelValues(kind.String(), "invalid").Inc()
			d.state = StateConfirming
			return Outcome{}, err
		}
		actionsTotal.WithLabelValues(kind.String(), "failed").Inc()
		d.logger.Warn("action failed", zap.String("kind", kind.String()), zap.Error(err))
		d.state = StateFailed
		return Outcome{}, err
	}

	actionsTotal.WithLabelValues(kind.String(), "succeeded").Inc()
	d.draft = Draft{}
	if out.Record.ID != uuid.Nil {
		d.file = out.Record
	}
	// Succeeded discards the draft and collapses straight back to Idle.
	d.state = StateIdle
	return out, nil
}

func (d *Dispatcher) execute(ctx context.Context, kind ActionKind, draft Draft) (Outcome, error) {
	switch kind {
	case ActionRename:
		return d.rename(ctx, draft.NewName)
	case ActionShare:
		return d.share(ctx, draft.Emails)
	case ActionUnshare:
		return d.unshare(ctx, draft.Emails)
	case ActionDelete:
		return d.delete(ctx)
	case ActionDownload:
		return d.download(ctx)
	case ActionDetails:
		return d.details(ctx)
	default:
		return Outcome{}, fmt.Errorf("unhandled action kind %d", kind)
	}
}

// rename updates the base name, leaving the extension untouched. Renaming
// to the current name is a no-op success.
func (d *Dispatcher) rename(ctx context.Context, newName string) (Outcome, error) {
	name := strings.TrimSpace(newName)
	if name == "" {
		return Outcome{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	current, err := d.freshRead(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if current.Name == name {
		return Outcome{Record: current}, nil
	}

	updated, err := d.gw.Update(ctx, current.ID, Patch{Name: &name})
	if err != nil {
		return Outcome{}, asGatewayError("rename", err)
	}

	d.cache.Invalidate(updated.ID)
	return Outcome{Record: updated}, nil
}

// share replaces the sharing list with the de-duplicated union of the
// current set and the given addresses, minus the owner.
func (d *Dispatcher) share(ctx context.Context, emails []string) (Outcome, error) {
	for _, addr := range emails {
		if !IsValidShareTarget(addr) {
			return Outcome{}, &ValidationError{Field: "emails", Reason: fmt.Sprintf("malformed address %q", addr)}
		}
	}

	current, err := d.freshRead(ctx)
	if err != nil {
		return Outcome{}, err
	}

	merged := mergeShareList(current.SharedWith, emails, current.OwnerEmail)
	updated, err := d.gw.Update(ctx, current.ID, Patch{SharedWith: &merged})
	if err != nil {
		return Outcome{}, asGatewayError("share", err)
	}

	d.cache.Invalidate(updated.ID)
	return Outcome{Record: updated}, nil
}

// unshare removes one address. An absent address is a no-op success.
func (d *Dispatcher) unshare(ctx context.Context, emails []string) (Outcome, error) {
	if len(emails) != 1 {
		return Outcome{}, &ValidationError{Field: "emails", Reason: "unshare takes exactly one address"}
	}
	target := emails[0]

	current, err := d.freshRead(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if !current.SharedWithContains(target) {
		return Outcome{Record: current}, nil
	}

	remaining := make([]string, 0, len(current.SharedWith))
	for _, e := range current.SharedWith {
		if e != target {
			remaining = append(remaining, e)
		}
	}

	updated, err := d.gw.Update(ctx, current.ID, Patch{SharedWith: &remaining})
	if err != nil {
		return Outcome{}, asGatewayError("unshare", err)
	}

	d.cache.Invalidate(updated.ID)
	return Outcome{Record: updated}, nil
}

// delete removes the metadata record first, then the blob. A crash or
// failure between the two leaves an orphaned blob invisible to queries,
// never a live record pointing at missing bytes. Blob failure after the
// record is gone reports success with a cleanup warning.
func (d *Dispatcher) delete(ctx context.Context) (Outcome, error) {
	if err := d.gw.DeleteRecord(ctx, d.file.ID); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return Outcome{}, ErrFileNotFound
		}
		return Outcome{}, asGatewayError("delete record", err)
	}
	d.cache.Invalidate(d.file.ID)

	var warning *CleanupWarning
	if err := d.blobs.DeleteBlob(ctx, d.file.BlobRef); err != nil {
		warning = &CleanupWarning{BlobRef: d.file.BlobRef, Err: err}
		d.logger.Warn("blob cleanup pending", zap.String("blob_ref", d.file.BlobRef), zap.Error(err))
	}

	return Outcome{Warning: warning}, nil
}

func (d *Dispatcher) download(ctx context.Context) (Outcome, error) {
	u, err := d.blobs.BuildRetrievalURL(ctx, d.file.BlobRef)
	if err != nil {
		if errors.Is(err, ErrInvalidBlobRef) {
			return Outcome{}, &ValidationError{Field: "blob_ref", Reason: "malformed reference"}
		}
		return Outcome{}, err
	}
	return Outcome{Record: d.file, URL: u}, nil
}

func (d *Dispatcher) details(ctx context.Context) (Outcome, error) {
	rec, err := d.freshRead(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Record: rec}, nil
}

// freshRead fetches the record straight from the gateway so share-list
// replacement always starts from current state (last-writer-wins).
func (d *Dispatcher) freshRead(ctx context.Context) (Record, error) {
	rec, err := d.gw.GetByID(ctx, d.file.ID)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return Record{}, ErrFileNotFound
		}
		return Record{}, asGatewayError("get", err)
	}
	return rec, nil
}

// mergeShareList unions existing and added addresses, dropping duplicates
// and the owner while preserving first-seen order.
func mergeShareList(existing, added []string, owner string) []string {
	merged := make([]string, 0, len(existing)+len(added))
	seen := make(map[string]struct{}, len(existing)+len(added))
	for _, e := range append(append([]string{}, existing...), added...) {
		addr := strings.TrimSpace(e)
		if addr == "" || addr == owner {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		merged = append(merged, addr)
	}
	return merged
}
