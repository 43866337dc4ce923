// Package lifecycle reconciles the desired action against the instance's
// authoritative remote state and the operator's local record, issuing the
// minimal set of control-plane operations and keeping the record consistent
// with remote reality.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/sergical/openclaw-ec2-setup/internal/cloud"
	"github.com/sergical/openclaw-ec2-setup/internal/state"
)

// Action is the operator's desired outcome for one invocation. It is never
// persisted.
type Action string

const (
	ActionEnsureRunning Action = "ensure-running"
	ActionStop          Action = "stop"
	ActionTerminate     Action = "terminate"
)

// CloudAPI is the slice of the EC2 control plane the controller needs.
// *cloud.Client satisfies it; tests substitute an in-memory fake.
type CloudAPI interface {
	Describe(ctx context.Context, instanceID string) (cloud.Status, error)
	Provision(ctx context.Context, spec cloud.ProvisionSpec) (state.Record, error)
	Start(ctx context.Context, instanceID string) error
	Stop(ctx context.Context, instanceID string) error
	Terminate(ctx context.Context, instanceID string) error
	WaitFor(ctx context.Context, instanceID string, target cloud.State, timeout time.Duration) (cloud.Status, error)
	DeleteSecurityGroup(ctx context.Context, stem string, mode cloud.ReachabilityMode) error
	DeleteKeyPair(ctx context.Context, keyPath string) error
}

// Store is the local record persistence the controller needs. *state.Store
// satisfies it.
type Store interface {
	Load() (state.Record, bool, error)
	Save(state.Record) error
	Clear() error
}

// Mesh issues the best-effort VPN deauthentication prior to termination.
type Mesh interface {
	MeshLogout(ctx context.Context, rec state.Record) error
}

// ConfirmFunc asks the operator for a literal typed affirmation before a
// destructive action. Returning false is a clean cancellation, not an error.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Controller holds one invocation's collaborators and immutable inputs.
// It is single-use and single-threaded: concurrent invocations against the
// same state file are undefined (last writer wins).
type Controller struct {
	Cloud   CloudAPI
	Store   Store
	Mesh    Mesh
	Confirm ConfirmFunc

	// Spec carries the provisioning inputs used when ensure-running finds no
	// usable instance. Spec.UserData must be pre-built by the caller.
	Spec cloud.ProvisionSpec

	// Timeout bounds every blocking wait on an asynchronous remote
	// transition. On expiry a slow-provisioning error is raised rather than
	// hanging; the record is persisted first so a later run can resume.
	Timeout time.Duration
}

var (
	ErrUnreachable = fmt.Errorf("could not query instance state; not proceeding " +
		"on a stale view (retry in a moment)")
	ErrTransitionInProgress = fmt.Errorf("instance is mid-transition; wait for " +
		"the current transition to finish and retry")
	ErrProvisionTimeout = fmt.Errorf("instance did not become ready in time; " +
		"the record was kept so a retry can resume")
	ErrActionUnknown = fmt.Errorf("unknown desired action")
)

// Reconcile drives the instance toward 'action'. The remote state fetched
// here is authoritative and overrides any stale local assumption; the one
// exception is a failed query (unknown state), which is never authoritative
// and never justifies destroying local state.
func (c *Controller) Reconcile(ctx context.Context, action Action) error {
	log := clog.FromContext(ctx).With("action", string(action))

	rec, ok, err := c.Store.Load()
	if err != nil {
		return err
	}
	if !ok {
		return c.reconcileNoRecord(ctx, action)
	}
	log = log.With("instance_id", rec.InstanceID)

	// Transitional states resolve on their own; give them a bounded chance
	// to do so before re-evaluating, but only for ensure-running. Forcing a
	// transition out of a transitional state is never allowed.
	const maxSettleAttempts = 3
	for attempt := 0; ; attempt++ {
		status, err := c.Cloud.Describe(ctx, rec.InstanceID)
		if status.State == cloud.StateUnknown {
			return fmt.Errorf("%w: %w", ErrUnreachable, err)
		}
		if err != nil {
			return err
		}

		if !status.State.Transitional() {
			return c.reconcileTerminal(ctx, action, rec, status)
		}
		if action != ActionEnsureRunning {
			return fmt.Errorf("%w (currently %s)", ErrTransitionInProgress, status.State)
		}
		if attempt >= maxSettleAttempts {
			return fmt.Errorf("%w (stuck in %s)", ErrProvisionTimeout, status.State)
		}
		log.Info("instance is mid-transition, waiting", "state", status.State)
		if _, err := c.Cloud.WaitFor(ctx, rec.InstanceID, status.State.Resolution(), c.Timeout); err != nil {
			return err
		}
	}
}

func (c *Controller) reconcileNoRecord(ctx context.Context, action Action) error {
	log := clog.FromContext(ctx)
	switch action {
	case ActionEnsureRunning:
		return c.provision(ctx)
	case ActionStop:
		log.Info("no instance on record, nothing to stop")
		return nil
	case ActionTerminate:
		log.Info("no instance on record, nothing to terminate")
		return nil
	}
	return fmt.Errorf("%w: %q", ErrActionUnknown, action)
}

func (c *Controller) reconcileTerminal(ctx context.Context, action Action, rec state.Record, status cloud.Status) error {
	log := clog.FromContext(ctx)

	switch status.State {
	case cloud.StateTerminated:
		// The resource was deleted out from under us (or a prior teardown
		// was interrupted after terminate). The record is stale; purge it
		// before anything else.
		log.Info("instance already terminated, purging stale record")
		if err := c.Store.Clear(); err != nil {
			return err
		}
		return c.reconcileNoRecord(ctx, action)

	case cloud.StateStopped:
		switch action {
		case ActionEnsureRunning:
			return c.startAndRefresh(ctx, rec)
		case ActionStop:
			log.Info("instance already stopped")
			return nil
		case ActionTerminate:
			// Mesh logout needs a reachable host; a stopped instance has
			// none, so the device entry is left for Tailscale's expiry.
			return c.terminate(ctx, rec, false)
		}

	case cloud.StateRunning:
		switch action {
		case ActionEnsureRunning:
			// Already satisfied; just keep the recorded address honest.
			if status.Address != "" && status.Address != rec.Address {
				rec.Address = status.Address
				return c.Store.Save(rec)
			}
			return nil
		case ActionStop:
			log.Info("stopping instance")
			if err := c.Cloud.Stop(ctx, rec.InstanceID); err != nil {
				return err
			}
			_, err := c.Cloud.WaitFor(ctx, rec.InstanceID, cloud.StateStopped, c.Timeout)
			return err
		case ActionTerminate:
			return c.terminate(ctx, rec, true)
		}

	case cloud.StatePending, cloud.StateStopping, cloud.StateShuttingDown, cloud.StateUnknown:
		// Handled before dispatch; unreachable.
	}
	return fmt.Errorf("%w: %q", ErrActionUnknown, action)
}

// provision creates a fresh instance and persists its record before waiting,
// so a slow launch leaves a resumable record rather than an orphan.
func (c *Controller) provision(ctx context.Context) error {
	log := clog.FromContext(ctx)

	rec, err := c.Cloud.Provision(ctx, c.Spec)
	if err != nil {
		return err
	}
	if err := c.Store.Save(rec); err != nil {
		return err
	}

	status, err := c.Cloud.WaitFor(ctx, rec.InstanceID, cloud.StateRunning, c.Timeout)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProvisionTimeout, err)
	}
	rec.Address = status.Address
	if err := c.Store.Save(rec); err != nil {
		return err
	}
	log.Info("instance ready", "instance_id", rec.InstanceID, "address", rec.Address)
	return nil
}

// startAndRefresh restarts a stopped instance. The address is volatile across
// a stop/start cycle, so it is always re-fetched and re-persisted, never
// reused from the stale record.
func (c *Controller) startAndRefresh(ctx context.Context, rec state.Record) error {
	log := clog.FromContext(ctx)

	log.Info("starting stopped instance", "instance_id", rec.InstanceID)
	if err := c.Cloud.Start(ctx, rec.InstanceID); err != nil {
		return err
	}
	status, err := c.Cloud.WaitFor(ctx, rec.InstanceID, cloud.StateRunning, c.Timeout)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProvisionTimeout, err)
	}
	rec.Address = status.Address
	if err := c.Store.Save(rec); err != nil {
		return err
	}
	log.Info("instance running", "address", rec.Address)
	return nil
}

// terminate destroys the instance after a literal typed confirmation.
//
// Ordering is deliberate: the mesh logout runs before the terminate call so
// the device entry does not linger as an orphaned peer, and the record is
// purged only after terminate has been issued. The security group is removed
// after termination and may legitimately fail if still referenced elsewhere.
func (c *Controller) terminate(ctx context.Context, rec state.Record, meshReachable bool) error {
	log := clog.FromContext(ctx)

	confirmed, err := c.Confirm(ctx, fmt.Sprintf(
		"This permanently destroys instance %s and its data.", rec.InstanceID,
	))
	if err != nil {
		return err
	}
	if !confirmed {
		log.Info("termination cancelled")
		return nil
	}

	if meshReachable {
		tolerated(ctx, "mesh logout", c.Mesh.MeshLogout(ctx, rec))
	}

	log.Info("terminating instance", "instance_id", rec.InstanceID)
	if err := c.Cloud.Terminate(ctx, rec.InstanceID); err != nil {
		return err
	}

	// Wait for the instance to actually reach 'terminated' so its network
	// interface is released; until then the security group delete is
	// guaranteed to fail. Slow termination is itself a tolerated failure.
	_, err = c.Cloud.WaitFor(ctx, rec.InstanceID, cloud.StateTerminated, c.Timeout)
	tolerated(ctx, "await termination", err)

	tolerated(ctx, "key pair cleanup", c.Cloud.DeleteKeyPair(ctx, rec.KeyPath))
	tolerated(ctx, "security group cleanup", c.Cloud.DeleteSecurityGroup(ctx, c.Spec.Name, c.Spec.Mode))

	return c.Store.Clear()
}

// tolerated records a best-effort step's failure without escalating it. These
// steps never fail the overall operation: the primary destructive action has
// already succeeded or is independent of them.
func tolerated(ctx context.Context, step string, err error) {
	if err == nil {
		return
	}
	clog.FromContext(ctx).Warn("tolerated failure", "step", step, "error", err)
}
