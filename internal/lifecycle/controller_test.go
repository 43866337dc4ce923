package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergical/openclaw-ec2-setup/internal/cloud"
	"github.com/sergical/openclaw-ec2-setup/internal/state"
)

// calls is a shared, ordered log of every collaborator interaction, so tests
// can assert both what happened and in which order.
type calls struct {
	log []string
}

func (c *calls) add(name string) {
	c.log = append(c.log, name)
}

func (c *calls) index(name string) int {
	for i, entry := range c.log {
		if entry == name {
			return i
		}
	}
	return -1
}

// mutating returns the subset of logged calls that change remote resources.
func (c *calls) mutating() []string {
	var out []string
	for _, entry := range c.log {
		switch entry {
		case "provision", "start", "stop", "terminate":
			out = append(out, entry)
		}
	}
	return out
}

type fakeCloud struct {
	calls *calls

	status      cloud.Status
	describeErr error

	provisionRec state.Record
	provisionErr error

	// waitStatus is returned by WaitFor per target state.
	waitStatus map[cloud.State]cloud.Status
	waitErr    error
}

func (f *fakeCloud) Describe(_ context.Context, _ string) (cloud.Status, error) {
	f.calls.add("describe")
	if f.describeErr != nil {
		return cloud.Status{State: cloud.StateUnknown}, f.describeErr
	}
	return f.status, nil
}

func (f *fakeCloud) Provision(_ context.Context, _ cloud.ProvisionSpec) (state.Record, error) {
	f.calls.add("provision")
	return f.provisionRec, f.provisionErr
}

func (f *fakeCloud) Start(_ context.Context, _ string) error {
	f.calls.add("start")
	return nil
}

func (f *fakeCloud) Stop(_ context.Context, _ string) error {
	f.calls.add("stop")
	return nil
}

func (f *fakeCloud) Terminate(_ context.Context, _ string) error {
	f.calls.add("terminate")
	return nil
}

func (f *fakeCloud) WaitFor(_ context.Context, _ string, target cloud.State, _ time.Duration) (cloud.Status, error) {
	f.calls.add("waitfor:" + string(target))
	if f.waitErr != nil {
		return cloud.Status{State: cloud.StateUnknown}, f.waitErr
	}
	if status, ok := f.waitStatus[target]; ok {
		// The wait resolved; subsequent describes observe the new state.
		f.status = status
		return status, nil
	}
	return cloud.Status{State: target}, nil
}

func (f *fakeCloud) DeleteSecurityGroup(_ context.Context, _ string, _ cloud.ReachabilityMode) error {
	f.calls.add("del-sg")
	return nil
}

func (f *fakeCloud) DeleteKeyPair(_ context.Context, _ string) error {
	f.calls.add("del-key")
	return nil
}

type fakeStore struct {
	calls *calls

	rec state.Record
	ok  bool
}

func (f *fakeStore) Load() (state.Record, bool, error) {
	return f.rec, f.ok, nil
}

func (f *fakeStore) Save(rec state.Record) error {
	f.calls.add("save")
	f.rec, f.ok = rec, true
	return nil
}

func (f *fakeStore) Clear() error {
	f.calls.add("clear")
	f.rec, f.ok = state.Record{}, false
	return nil
}

type fakeMesh struct {
	calls *calls
	err   error
}

func (f *fakeMesh) MeshLogout(_ context.Context, _ state.Record) error {
	f.calls.add("mesh-logout")
	return f.err
}

func confirmAlways(context.Context, string) (bool, error) { return true, nil }
func confirmNever(context.Context, string) (bool, error)  { return false, nil }

type fixture struct {
	calls *calls
	cloud *fakeCloud
	store *fakeStore
	mesh  *fakeMesh
	ctrl  *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := &calls{}
	fc := &fakeCloud{
		calls: log,
		provisionRec: state.Record{
			InstanceID: "i-new00000000000001",
			KeyPath:    "/keys/openclaw-new.pem",
			Region:     "us-west-2",
			User:       "ubuntu",
		},
		waitStatus: map[cloud.State]cloud.Status{
			cloud.StateRunning: {State: cloud.StateRunning, Address: "203.0.113.77"},
		},
	}
	fs := &fakeStore{calls: log}
	fm := &fakeMesh{calls: log}
	return &fixture{
		calls: log,
		cloud: fc,
		store: fs,
		mesh:  fm,
		ctrl: &Controller{
			Cloud:   fc,
			Store:   fs,
			Mesh:    fm,
			Confirm: confirmAlways,
			Spec:    cloud.ProvisionSpec{Name: "openclaw", Mode: cloud.ReachabilityPublic},
			Timeout: time.Minute,
		},
	}
}

func (f *fixture) withRecord(rec state.Record) *fixture {
	f.store.rec, f.store.ok = rec, true
	return f
}

func testRecord() state.Record {
	return state.Record{
		InstanceID: "i-old00000000000001",
		Address:    "198.51.100.1",
		KeyPath:    "/keys/openclaw-old.pem",
		Region:     "us-west-2",
		User:       "ubuntu",
	}
}

func TestNoRecordNeverMutatesExceptProvision(t *testing.T) {
	t.Run("stop-is-a-no-op", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.ctrl.Reconcile(t.Context(), ActionStop))
		assert.Empty(t, f.calls.mutating())
	})
	t.Run("terminate-is-a-no-op", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.ctrl.Reconcile(t.Context(), ActionTerminate))
		assert.Empty(t, f.calls.mutating())
	})
	t.Run("ensure-running-only-provisions", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.ctrl.Reconcile(t.Context(), ActionEnsureRunning))
		assert.Equal(t, []string{"provision"}, f.calls.mutating())
	})
}

func TestUnreachableStateIsNeverActedOn(t *testing.T) {
	for _, action := range []Action{ActionEnsureRunning, ActionStop, ActionTerminate} {
		t.Run(string(action), func(t *testing.T) {
			f := newFixture(t).withRecord(testRecord())
			f.cloud.describeErr = fmt.Errorf("throttled")

			err := f.ctrl.Reconcile(t.Context(), action)
			require.ErrorIs(t, err, ErrUnreachable)
			assert.Empty(t, f.calls.mutating())
			// The local record survives: unknown is not authoritative.
			assert.True(t, f.store.ok)
		})
	}
}

func TestStopIdempotence(t *testing.T) {
	f := newFixture(t).withRecord(testRecord())
	f.cloud.status = cloud.Status{State: cloud.StateStopped}

	// Second stop in a row: the instance is already stopped, so zero remote
	// mutating calls are issued.
	require.NoError(t, f.ctrl.Reconcile(t.Context(), ActionStop))
	assert.Empty(t, f.calls.mutating())
}

func TestStopRunningInstance(t *testing.T) {
	f := newFixture(t).withRecord(testRecord())
	f.cloud.status = cloud.Status{State: cloud.StateRunning, Address: "198.51.100.1"}

	require.NoError(t, f.ctrl.Reconcile(t.Context(), ActionStop))
	assert.Equal(t, []string{"stop"}, f.calls.mutating())
}

func TestAddressRefreshedAfterRestart(t *testing.T) {
	f := newFixture(t).withRecord(testRecord())
	f.cloud.status = cloud.Status{State: cloud.StateStopped}

	require.NoError(t, f.ctrl.Reconcile(t.Context(), ActionEnsureRunning))

	assert.Equal(t, []string{"start"}, f.calls.mutating())
	// The persisted address equals the post-transition observation, not the
	// pre-transition stored value.
	assert.Equal(t, "203.0.113.77", f.store.rec.Address)
	assert.NotEqual(t, testRecord().Address, f.store.rec.Address)
}

func TestTerminateDeclinedIsCleanCancellation(t *testing.T) {
	f := newFixture(t).withRecord(testRecord())
	f.cloud.status = cloud.Status{State: cloud.StateRunning, Address: "198.51.100.1"}
	f.ctrl.Confirm = confirmNever

	require.NoError(t, f.ctrl.Reconcile(t.Context(), ActionTerminate))
	assert.Empty(t, f.calls.mutating())
	assert.True(t, f.store.ok, "record must be left untouched")
}

func TestTerminateRunningOrdering(t *testing.T) {
	f := newFixture(t).withRecord(testRecord())
	f.cloud.status = cloud.Status{State: cloud.StateRunning, Address: "198.51.100.1"}

	require.NoError(t, f.ctrl.Reconcile(t.Context(), ActionTerminate))

	logout := f.calls.index("mesh-logout")
	terminate := f.calls.index("terminate")
	clear := f.calls.index("clear")
	require.GreaterOrEqual(t, logout, 0, "mesh logout must be attempted")
	require.GreaterOrEqual(t, terminate, 0)
	require.GreaterOrEqual(t, clear, 0)
	// Deauthenticate before destroying, purge only after terminate issued.
	assert.Less(t, logout, terminate)
	assert.Less(t, terminate, clear)
	// Ingress cleanup runs after termination.
	assert.Less(t, terminate, f.calls.index("del-sg"))
	assert.False(t, f.store.ok)
}

func TestTerminateToleratesMeshLogoutFailure(t *testing.T) {
	f := newFixture(t).withRecord(testRecord())
	f.cloud.status = cloud.Status{State: cloud.StateRunning, Address: "198.51.100.1"}
	f.mesh.err = fmt.Errorf("host unreachable")

	require.NoError(t, f.ctrl.Reconcile(t.Context(), ActionTerminate))
	assert.GreaterOrEqual(t, f.calls.index("terminate"), 0)
	assert.False(t, f.store.ok)
}

func TestTerminateStoppedSkipsMeshLogout(t *testing.T) {
	f := newFixture(t).withRecord(testRecord())
	f.cloud.status = cloud.Status{State: cloud.StateStopped}

	require.NoError(t, f.ctrl.Reconcile(t.Context(), ActionTerminate))
	assert.Equal(t, -1, f.calls.index("mesh-logout"))
	assert.Equal(t, []string{"terminate"}, f.calls.mutating())
	assert.False(t, f.store.ok)
}

func TestStaleRecordPurgedAndReprovisioned(t *testing.T) {
	// The resource was deleted externally: record present, remote state
	// terminated.
	f := newFixture(t).withRecord(testRecord())
	f.cloud.status = cloud.Status{State: cloud.StateTerminated}

	require.NoError(t, f.ctrl.Reconcile(t.Context(), ActionEnsureRunning))

	assert.Less(t, f.calls.index("clear"), f.calls.index("provision"))
	assert.Equal(t, []string{"provision"}, f.calls.mutating())
	require.True(t, f.store.ok)
	assert.NotEqual(t, testRecord().InstanceID, f.store.rec.InstanceID)
}

func TestStaleRecordPurgedOnStopAndTerminate(t *testing.T) {
	for _, action := range []Action{ActionStop, ActionTerminate} {
		t.Run(string(action), func(t *testing.T) {
			f := newFixture(t).withRecord(testRecord())
			f.cloud.status = cloud.Status{State: cloud.StateTerminated}

			require.NoError(t, f.ctrl.Reconcile(t.Context(), action))
			assert.Empty(t, f.calls.mutating())
			assert.False(t, f.store.ok)
		})
	}
}

func TestTransitionalStateRejectsDestructiveActions(t *testing.T) {
	for _, transitional := range []cloud.State{cloud.StatePending, cloud.StateStopping, cloud.StateShuttingDown} {
		for _, action := range []Action{ActionStop, ActionTerminate} {
			t.Run(string(transitional)+"/"+string(action), func(t *testing.T) {
				f := newFixture(t).withRecord(testRecord())
				f.cloud.status = cloud.Status{State: transitional}

				err := f.ctrl.Reconcile(t.Context(), action)
				require.ErrorIs(t, err, ErrTransitionInProgress)
				assert.Empty(t, f.calls.mutating())
			})
		}
	}
}

func TestTransitionalStateSettlesForEnsureRunning(t *testing.T) {
	f := newFixture(t).withRecord(testRecord())
	f.cloud.status = cloud.Status{State: cloud.StatePending}

	require.NoError(t, f.ctrl.Reconcile(t.Context(), ActionEnsureRunning))

	// The controller waited for pending to resolve, then found the instance
	// running: no start, stop, or provision needed.
	assert.GreaterOrEqual(t, f.calls.index("waitfor:running"), 0)
	assert.Empty(t, f.calls.mutating())
}

func TestRunningEnsureRunningRefreshesDriftedAddress(t *testing.T) {
	f := newFixture(t).withRecord(testRecord())
	f.cloud.status = cloud.Status{State: cloud.StateRunning, Address: "203.0.113.99"}

	require.NoError(t, f.ctrl.Reconcile(t.Context(), ActionEnsureRunning))
	assert.Empty(t, f.calls.mutating())
	assert.Equal(t, "203.0.113.99", f.store.rec.Address)
}

func TestSlowProvisionKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.cloud.waitErr = fmt.Errorf("exceeded max wait time")

	err := f.ctrl.Reconcile(t.Context(), ActionEnsureRunning)
	require.ErrorIs(t, err, ErrProvisionTimeout)

	// The record was persisted before the wait so a later invocation can
	// resume reconciliation rather than orphaning the instance.
	require.True(t, f.store.ok)
	assert.Equal(t, "i-new00000000000001", f.store.rec.InstanceID)
}
