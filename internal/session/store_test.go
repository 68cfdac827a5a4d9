package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCreateAndGet(t *testing.T) {
	st := NewStore("/bin/cat", time.Minute, time.Second, 0, nil)
	defer st.Stop()

	sess, err := st.Create()
	require.NoError(t, err)
	defer sess.destroy()

	got, ok := st.Get(sess.ID)
	assert.True(t, ok)
	assert.Same(t, sess, got)
}

func TestStoreGetMissingReturnsFalse(t *testing.T) {
	st := NewStore("/bin/cat", time.Minute, time.Second, 0, nil)
	defer st.Stop()

	_, ok := st.Get("does-not-exist")
	assert.False(t, ok)
}

func TestStoreRejectsOverCapacity(t *testing.T) {
	st := NewStore("/bin/cat", time.Minute, time.Second, 1, nil)
	defer st.Stop()

	sess, err := st.Create()
	require.NoError(t, err)
	defer sess.destroy()

	_, err = st.Create()
	assert.Error(t, err)
}

func TestReaperEvictsOrphanedSession(t *testing.T) {
	st := NewStore("/bin/cat", 30*time.Millisecond, 20*time.Millisecond, 0, nil)
	defer st.Stop()

	sess, err := st.Create()
	require.NoError(t, err)
	sess.Detach()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := st.Get(sess.ID); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("orphaned session was never reaped")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestReaperEvictsSessionWhoseShellDiedOnItsOwn(t *testing.T) {
	// /bin/true exits immediately on its own. Nobody ever detaches, so this
	// must be reaped via the !IsAlive() branch, not the orphan-timeout one.
	st := NewStore("/bin/true", time.Minute, 15*time.Millisecond, 0, nil)
	defer st.Stop()

	sess, err := st.Create()
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := st.Get(sess.ID); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("session with a dead shell was never reaped")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestReaperLeavesAttachedSessionAlone(t *testing.T) {
	st := NewStore("/bin/cat", 20*time.Millisecond, 15*time.Millisecond, 0, nil)
	defer st.Stop()

	sess, err := st.Create()
	require.NoError(t, err)
	defer sess.destroy()

	_, sub := sess.Attach()
	defer sub.Close()

	time.Sleep(150 * time.Millisecond)

	_, ok := st.Get(sess.ID)
	assert.True(t, ok, "attached session should never be reaped")
}
