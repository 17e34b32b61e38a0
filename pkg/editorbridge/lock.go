package editorbridge

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// LockState is the editing lock seen from the caller's side.
type LockState int

const (
	Unlocked LockState = iota
	LockedByCaller
	LockedByOther
)

func (s LockState) String() string {
	switch s {
	case LockedByCaller:
		return "locked_by_caller"
	case LockedByOther:
		return "locked_by_other"
	default:
		return "unlocked"
	}
}

// Reasons reported to the editor when the lock is not available.
const (
	ReasonLockedByOther = "The document is locked by another user."
	ReasonNoWriteAccess = "The document cannot be modified by this user."
)

// LockSnapshot is the lock status projected for one caller.
type LockSnapshot struct {
	Acquired  bool   `json:"isLockAcquired"`
	Available bool   `json:"isLockAvailable"`
	Reason    string `json:"reason,omitempty"`
}

// LockOutcome is the result of an acquire or release.
type LockOutcome struct {
	State    LockState
	Changed  bool
	Node     *Node
	Snapshot LockSnapshot
}

// LockCoordinator acquires, releases and reports editing locks.
type LockCoordinator struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewLockCoordinator creates a coordinator.
func NewLockCoordinator(logger *slog.Logger) *LockCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LockCoordinator{logger: logger, now: time.Now}
}

// State classifies the node lock relative to principal.
func (c *LockCoordinator) State(node *Node, principal string) LockState {
	switch node.LockOwner {
	case "":
		return Unlocked
	case principal:
		return LockedByCaller
	default:
		return LockedByOther
	}
}

// Snapshot projects the lock status of node for the session principal.
func (c *LockCoordinator) Snapshot(ctx context.Context, sess Session, node *Node) (LockSnapshot, error) {
	switch c.State(node, sess.Principal()) {
	case LockedByCaller:
		return LockSnapshot{Acquired: true, Available: true}, nil
	case LockedByOther:
		return LockSnapshot{Reason: ReasonLockedByOther}, nil
	}
	canWrite, err := sess.HasPermission(ctx, node.ID, PermissionWrite)
	if err != nil {
		return LockSnapshot{}, &NodeError{NodeID: node.ID, Op: "check permission", Err: err}
	}
	if !canWrite {
		return LockSnapshot{Reason: ReasonNoWriteAccess}, nil
	}
	return LockSnapshot{Available: true}, nil
}

// Acquire locks node for the session principal. A lock held by someone else and
// a missing write permission are reported in the outcome, not as errors.
func (c *LockCoordinator) Acquire(ctx context.Context, sess Session, node *Node) (*LockOutcome, error) {
	state := c.State(node, sess.Principal())
	out := &LockOutcome{State: state, Node: node}

	if state == Unlocked {
		canWrite, err := sess.HasPermission(ctx, node.ID, PermissionWrite)
		if err != nil {
			return nil, &NodeError{NodeID: node.ID, Op: "check permission", Err: err}
		}
		if !canWrite {
			out.Snapshot = LockSnapshot{Reason: ReasonNoWriteAccess}
			return out, nil
		}

		locked, err := sess.SetLock(ctx, node.ID)
		switch {
		case errors.Is(err, ErrPermissionDenied):
			out.Snapshot = LockSnapshot{Reason: ReasonNoWriteAccess}
			return out, nil
		case errors.Is(err, ErrLockConflict):
			refreshed, gerr := sess.GetNode(ctx, node.ID)
			if gerr != nil {
				return nil, gerr
			}
			out.Node = refreshed
			out.State = LockedByOther
		case err != nil:
			return nil, &NodeError{NodeID: node.ID, Op: "lock", Err: err}
		default:
			out.Node = locked
			out.State = LockedByCaller
			out.Changed = true
			c.logger.Info("lock acquired", "node_id", node.ID, "principal", sess.Principal())
		}
	}

	snap, err := c.Snapshot(ctx, sess, out.Node)
	if err != nil {
		return nil, err
	}
	out.Snapshot = snap
	return out, nil
}

// Release unlocks node when the session principal holds the lock. Otherwise it
// reports that nothing was removed.
func (c *LockCoordinator) Release(ctx context.Context, sess Session, node *Node) (*LockOutcome, error) {
	state := c.State(node, sess.Principal())
	out := &LockOutcome{State: state, Node: node}

	if state == LockedByCaller {
		removed, err := sess.RemoveLock(ctx, node.ID)
		if err != nil {
			return nil, &NodeError{NodeID: node.ID, Op: "unlock", Err: err}
		}
		refreshed, err := sess.GetNode(ctx, node.ID)
		if err != nil {
			return nil, err
		}
		out.Node = refreshed
		out.Changed = removed
		out.State = c.State(refreshed, sess.Principal())
		if removed {
			c.logger.Info("lock released", "node_id", node.ID, "principal", sess.Principal())
		}
	}

	snap, err := c.Snapshot(ctx, sess, out.Node)
	if err != nil {
		return nil, err
	}
	out.Snapshot = snap
	return out, nil
}

// NewContext captures the snapshot and a few node attributes for the editor.
func (c *LockCoordinator) NewContext(node *Node, snap LockSnapshot) DocumentContext {
	return DocumentContext{
		Version:        DocumentContextVersion,
		LockInfo:       snap,
		DocumentType:   node.Type,
		LifecycleState: node.LifecycleState,
		CapturedAt:     c.now().UTC(),
	}
}

// CachedStatus answers a status check from the context the editor echoed.
// The repository is not consulted.
func (c *LockCoordinator) CachedStatus(dc DocumentContext) LockSnapshot {
	return dc.LockInfo
}
