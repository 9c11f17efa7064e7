package effects

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorldClockOnlyAdvancesOnStep(t *testing.T) {
	w := NewWorld(1, 1_000)
	clk := &simulationClock{world: w}
	require.Equal(t, uint64(1_000), clk.NowMillis())

	done := make(chan struct{})
	go func() {
		_ = clk.Sleep(context.Background(), 50*time.Millisecond)
		close(done)
	}()

	// Sleep schedules an event but the world hasn't been stepped yet, so
	// NowMillis must not have moved and Sleep must still be pending.
	select {
	case <-done:
		t.Fatal("Sleep returned before the world was stepped")
	case <-time.After(20 * time.Millisecond):
	}

	require.True(t, w.Step())
	<-done
	require.Equal(t, uint64(1_050), clk.NowMillis())
}

func TestWorldDeliversEventsInDueOrderRegardlessOfScheduleOrder(t *testing.T) {
	w := NewWorld(2, 0)
	var order []string

	w.schedule(30*time.Millisecond, func() { order = append(order, "third") })
	w.schedule(10*time.Millisecond, func() { order = append(order, "first") })
	w.schedule(20*time.Millisecond, func() { order = append(order, "second") })

	require.Equal(t, 3, w.Run(10))
	require.Equal(t, []string{"first", "second", "third"}, order)
}

func TestSimulationNetworkDeliversThroughWorldStepping(t *testing.T) {
	w := NewWorld(3, 0)
	a := NewSimulationNetwork("a", w, 10*time.Millisecond, 0)
	b := NewSimulationNetwork("b", w, 10*time.Millisecond, 0)
	_ = a

	require.NoError(t, b.Send(context.Background(), "a", []byte("ping")))

	recvDone := make(chan struct{})
	var from string
	var payload []byte
	go func() {
		var err error
		from, payload, err = a.Recv(context.Background())
		require.NoError(t, err)
		close(recvDone)
	}()

	require.True(t, w.Run(10) > 0)
	<-recvDone
	require.Equal(t, "b", from)
	require.Equal(t, []byte("ping"), payload)
}

func TestSimulationRandomIsAPureFunctionOfWorldSeedAndDrawOrder(t *testing.T) {
	w1 := NewWorld(7, 0)
	w2 := NewWorld(7, 0)
	r1 := &simulationRandom{world: w1}
	r2 := &simulationRandom{world: w2}

	require.Equal(t, r1.Bytes(8), r2.Bytes(8))
	require.Equal(t, r1.Uint64(), r2.Uint64())
	require.Equal(t, r1.UUID(), r2.UUID())
}

func TestSimulationTickerReschedulesUntilStopped(t *testing.T) {
	w := NewWorld(4, 0)
	task := NewSimulationTask(w)
	ch, stop := task.Ticker(10 * time.Millisecond)

	ticks := 0
	for i := 0; i < 3; i++ {
		require.True(t, w.Step())
		select {
		case <-ch:
			ticks++
		default:
		}
	}
	stop()
	require.Greater(t, ticks, 0)
}

func TestSimulationBiometricAlwaysApproves(t *testing.T) {
	ok, err := simulationBiometric{}.Verify(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSimulationSystemReportsNodeAddrAndWorldClockUptime(t *testing.T) {
	w := NewWorld(3, 5_000)
	sys := &simulationSystem{world: w, node: "node-a"}

	require.Equal(t, "node-a", sys.Hostname())
	require.Equal(t, 5_000*time.Millisecond, sys.Uptime())
}
