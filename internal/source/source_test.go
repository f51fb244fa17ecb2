package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
)

var (
	_ Source = (*Memory)(nil)
	_ Source = (*Log)(nil)
	_ Source = (*Rod)(nil)
)

func TestMemory_FindAndFindAll(t *testing.T) {
	m := NewMemory().Set("h1", "Conference").Set("nav a", "Home", "Program")
	ctx := context.Background()

	got, err := m.Find(ctx, "h1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, sampling.Of("Conference"), got)

	got, err = m.Find(ctx, "missing", time.Second)
	require.NoError(t, err)
	assert.False(t, got.Present)

	all, err := m.FindAll(ctx, "nav a")
	require.NoError(t, err)
	assert.Equal(t, []string{"Home", "Program"}, all)

	all, err = m.FindAll(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, all)

	m.Remove("h1")
	got, err = m.Find(ctx, "h1", 0)
	require.NoError(t, err)
	assert.False(t, got.Present)
}

func TestMemory_ErrorsAreRecoverableSourceErrors(t *testing.T) {
	m := NewMemory()
	m.SetError("h1", errors.New("detached"))

	_, err := m.Find(context.Background(), "h1", time.Second)
	require.Error(t, err)
	assert.True(t, sampling.IsRecoverable(err))

	m.SetError("h1", nil)
	_, err = m.Find(context.Background(), "h1", time.Second)
	assert.NoError(t, err)
}

func TestParseFixture_ScalarAndListValues(t *testing.T) {
	m, err := ParseFixture([]byte(`
current: https://example.com/conference
values:
  h1: Conference 2024
  nav a: [Home, Program, Venue]
`))
	require.NoError(t, err)
	ctx := context.Background()

	cur, err := m.CurrentValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/conference", cur)

	h1, err := m.Find(ctx, "h1", 0)
	require.NoError(t, err)
	assert.Equal(t, "Conference 2024", h1.Value)

	nav, err := m.FindAll(ctx, "nav a")
	require.NoError(t, err)
	assert.Len(t, nav, 3)
}

func TestParseFixture_RejectsNestedMaps(t *testing.T) {
	_, err := ParseFixture([]byte("values:\n  h1:\n    nested: true\n"))
	assert.Error(t, err)
}

func TestLoadFixture_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte("values:\n  title: Home\n"), 0o644))

	m, err := LoadFixture(path)
	require.NoError(t, err)
	got, err := m.Find(context.Background(), "title", 0)
	require.NoError(t, err)
	assert.Equal(t, "Home", got.Value)
}

func TestLog_FindReturnsLatestMatchGroup(t *testing.T) {
	l := NewLog()
	l.Append("status=starting", "request id=1", "status=ready")

	got, err := l.Find(context.Background(), `status=(\w+)`, 0)
	require.NoError(t, err)
	assert.Equal(t, sampling.Of("ready"), got)

	got, err = l.Find(context.Background(), `request id=\d`, 0)
	require.NoError(t, err)
	assert.Equal(t, "request id=1", got.Value)

	all, err := l.FindAll(context.Background(), `status=(\w+)`)
	require.NoError(t, err)
	assert.Equal(t, []string{"starting", "ready"}, all)
}

func TestLog_FindWaitsForLine(t *testing.T) {
	l := NewLog()
	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(10 * time.Millisecond)
		fmt.Fprintln(l, "deploy finished version=42")
	}()

	got, err := l.Find(context.Background(), `version=(\d+)`, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "42", got.Value)
	<-done
}

func TestLog_FindTimesOutAsAbsent(t *testing.T) {
	l := NewLog()
	got, err := l.Find(context.Background(), `never`, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, got.Present)
}

func TestLog_CancelledContextIsSourceError(t *testing.T) {
	l := NewLog()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Find(ctx, `never`, time.Minute)
	require.Error(t, err)
	assert.True(t, sampling.IsRecoverable(err))
}

func TestLog_InvalidSelectorIsConfigError(t *testing.T) {
	_, err := NewLog().Find(context.Background(), `(`, 0)
	assert.True(t, sampling.IsConfigError(err))
}

func TestLog_WriteBuffersPartialLines(t *testing.T) {
	l := NewLog()
	_, err := l.Write([]byte("first\nsec"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, l.Lines())

	_, err = l.Write([]byte("ond\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, l.Lines())

	cur, err := l.CurrentValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", cur)
}

func TestLog_WriteKeepsLongLines(t *testing.T) {
	l := NewLog()
	long := strings.Repeat("x", 70000)

	n, err := l.Write([]byte(long + "\nafter\r\n"))
	require.NoError(t, err)
	assert.Equal(t, len(long)+8, n)
	assert.Equal(t, []string{long, "after"}, l.Lines())

	// a long partial line is held across writes
	_, err = l.Write([]byte(long))
	require.NoError(t, err)
	_, err = l.Write([]byte("!\n"))
	require.NoError(t, err)
	lines := l.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, long+"!", lines[2])
}
