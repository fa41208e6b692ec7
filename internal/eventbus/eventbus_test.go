package eventbus

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmit_InvokesSubscribersInOrder(t *testing.T) {
	b, err := New("", 0, nil)
	require.NoError(t, err)

	var order []int
	b.Subscribe(GraphUpdated, func(Event) { order = append(order, 1) })
	b.Subscribe(GraphUpdated, func(Event) { order = append(order, 2) })
	b.Subscribe(NodeReady, func(Event) { order = append(order, 99) })

	b.Emit(GraphUpdated, nil)
	require.Equal(t, []int{1, 2}, order)
}

func TestEmit_IsolatesPanickingSubscriber(t *testing.T) {
	b, err := New("", 0, nil)
	require.NoError(t, err)

	var secondRan bool
	b.Subscribe(NodeReady, func(Event) { panic("boom") })
	b.Subscribe(NodeReady, func(Event) { secondRan = true })

	require.NotPanics(t, func() { b.Emit(NodeReady, nil) })
	require.True(t, secondRan, "a panicking subscriber must not block later subscribers")
}

func TestUnsubscribeAll(t *testing.T) {
	b, err := New("", 0, nil)
	require.NoError(t, err)

	called := false
	b.Subscribe(RunComplete, func(Event) { called = true })
	b.UnsubscribeAll()
	b.Emit(RunComplete, nil)

	require.False(t, called)
}

func TestEmit_AppendsJSONLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.log")
	b, err := New(logPath, 0, nil)
	require.NoError(t, err)
	defer b.Close()

	b.Emit(GraphUpdated, map[string]string{"k": "v"})
	b.Emit(NodeReady, map[string]string{"node_id": "a"})

	f, err := os.Open(logPath)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines int
	for scanner.Scan() {
		lines++
	}
	require.Equal(t, 2, lines)
}

func TestEmit_RotatesWhenOverCap(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.log")
	b, err := New(logPath, 64, nil) // tiny cap forces rotation quickly
	require.NoError(t, err)
	defer b.Close()

	for i := 0; i < 20; i++ {
		b.Emit(GraphUpdated, map[string]string{"k": "some reasonably sized payload value"})
	}

	_, err = os.Stat(logPath + ".1")
	require.NoError(t, err, "expected at least one rotated file <path>.1")
}
