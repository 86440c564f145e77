package ssreg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPrimaryReplicaAssignment(t *testing.T) {
	r := New(0)

	ss1, recovered, err := r.Register("ss-1", "10.0.0.1", 9100, 9101)
	require.NoError(t, err)
	require.False(t, recovered)
	require.True(t, ss1.IsPrimary)
	require.Empty(t, ss1.ReplicaOf)

	ss2, _, err := r.Register("ss-2", "10.0.0.2", 9100, 9101)
	require.NoError(t, err)
	require.False(t, ss2.IsPrimary)
	require.Equal(t, "ss-1", ss2.ReplicaOf)

	ss3, _, err := r.Register("ss-3", "10.0.0.3", 9100, 9101)
	require.NoError(t, err)
	require.True(t, ss3.IsPrimary)

	replicas := r.ReplicasOf("ss-1")
	require.Len(t, replicas, 1)
	require.Equal(t, "ss-2", replicas[0].SSID)
}

func TestRecoveryDetection(t *testing.T) {
	r := New(0)
	_, recovered, err := r.Register("ss-1", "10.0.0.1", 9100, 9101)
	require.NoError(t, err)
	require.False(t, recovered)

	require.True(t, r.MarkInactive("ss-1"))

	_, recovered, err = r.Register("ss-1", "10.0.0.1", 9200, 9201)
	require.NoError(t, err)
	require.True(t, recovered)

	rec, ok := r.Get("ss-1")
	require.True(t, ok)
	require.Equal(t, 9200, rec.ClientPort)
}

func TestFailureDetectorSweep(t *testing.T) {
	r := New(0)
	_, _, err := r.Register("ss-1", "10.0.0.1", 9100, 9101)
	require.NoError(t, err)

	r.mu.Lock()
	r.order[0].LastHeartbeat = time.Now().Add(-time.Hour)
	r.mu.Unlock()

	var failed []string
	r.sweep(30*time.Second, func(rec *Record) { failed = append(failed, rec.SSID) })

	require.Equal(t, []string{"ss-1"}, failed)
	rec, _ := r.Get("ss-1")
	require.False(t, rec.IsActive)
}

func TestRouteFor(t *testing.T) {
	r := New(0)
	_, _, _ = r.Register("ss-1", "10.0.0.1", 9100, 9101)
	_, _, _ = r.Register("ss-2", "10.0.0.2", 9100, 9101)

	rec, ok := r.RouteFor("10.0.0.1", 9100)
	require.True(t, ok)
	require.Equal(t, "ss-1", rec.SSID)

	r.MarkInactive("ss-1")
	rec, ok = r.RouteFor("10.0.0.1", 9100)
	require.True(t, ok)
	require.Equal(t, "ss-2", rec.SSID)

	r.MarkInactive("ss-2")
	_, ok = r.RouteFor("10.0.0.1", 9100)
	require.False(t, ok)
}
