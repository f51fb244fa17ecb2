package expected

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeProps(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParse_KeyValueLines(t *testing.T) {
	src := "\ufeff# comment\n! also a comment\n\n" +
		"Chrome_1024.conferencepage.title = Conference 2024\n" +
		"  indented=value with = sign\n" +
		"empty=\n" +
		"multi=line one\\nline two\n" +
		"lead=\\  padded\n" +
		"umlaut=Grüße\r\n" +
		"colon:separated\n" +
		"space separated value\n" +
		"escaped=Caf\\u00e9\n" +
		"continued=first \\\n    second\n" +
		"literal=${not.expanded}\n"

	got, err := Parse(strings.NewReader(src), "test.properties")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Chrome_1024.conferencepage.title": "Conference 2024",
		"indented":                         "value with = sign",
		"empty":                            "",
		"multi":                            "line one\nline two",
		"lead":                             "  padded",
		"umlaut":                           "Grüße",
		"colon":                            "separated",
		"space":                            "separated value",
		"escaped":                          "Café",
		"continued":                        "first second",
		"literal":                          "${not.expanded}",
	}, got)
}

func TestParse_MalformedLinesReportFileAndLine(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"invalid unicode escape", "a=1\nb=2\nc=\\u00zz\n", 3},
		{"invalid utf8", "a=1\nb=\xff\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src), "bad.properties")
			require.Error(t, err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "bad.properties", pe.File)
			assert.Equal(t, tt.line, pe.Line)
			assert.True(t, IsParseError(err))
		})
	}
}

func TestWrite_SortedAndReparsable(t *testing.T) {
	values := map[string]string{
		"b.key": "tab\there",
		"a.key": " leading space",
		"c.key": `back\slash`,
	}
	var buf strings.Builder
	require.NoError(t, Write(&buf, values))
	assert.Equal(t, "a.key = \\ leading space\nb.key = tab\\there\nc.key = back\\\\slash\n", buf.String())

	back, err := Parse(strings.NewReader(buf.String()), "")
	require.NoError(t, err)
	assert.Equal(t, values, back)
}

func TestWrite_RejectsUnsafeKeys(t *testing.T) {
	for _, k := range []string{"", "a=b", "line\nbreak", "#comment"} {
		assert.Error(t, Write(io.Discard, map[string]string{k: "v"}), "key %q", k)
	}
}

func TestOpen_LoadsNestedFilesAndSkipsRecordDir(t *testing.T) {
	root := t.TempDir()
	writeProps(t, filepath.Join(root, "home.properties"), "home.title=Home\n")
	writeProps(t, filepath.Join(root, "chrome", "conf.properties"), "Chrome_1024.conference.title=Conference\n")
	writeProps(t, filepath.Join(root, "notes.txt"), "ignored=yes\n")
	writeProps(t, filepath.Join(root, DefaultRecordDir, "x", RecordedFile), "home.title=Recorded\n")

	d, err := Open(root, quiet())
	require.NoError(t, err)

	v, ok := d.Get("home.title")
	assert.True(t, ok)
	assert.Equal(t, "Home", v)

	v, ok = d.Get("Chrome_1024.conference.title")
	assert.True(t, ok)
	assert.Equal(t, "Conference", v)

	_, ok = d.Get("ignored")
	assert.False(t, ok)
	assert.Equal(t, []string{"Chrome_1024.conference.title", "home.title"}, d.Keys())
	assert.Equal(t, 2, d.Len())
}

func TestOpen_MissingRootIsEmpty(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "nope"), quiet())
	require.NoError(t, err)
	assert.Zero(t, d.Len())
	_, ok := d.Get("anything")
	assert.False(t, ok)
}

func TestOpen_MalformedFileFails(t *testing.T) {
	root := t.TempDir()
	writeProps(t, filepath.Join(root, "bad.properties"), "bad=\\u00zz\n")

	_, err := Open(root, quiet())
	require.Error(t, err)
	assert.True(t, IsParseError(err))
}

func TestReload_KeepsSnapshotOnError(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.properties")
	writeProps(t, file, "k=1\n")

	d, err := Open(root, quiet())
	require.NoError(t, err)

	writeProps(t, file, "k=\\uzzzz\n")
	require.Error(t, d.Reload())
	v, _ := d.Get("k")
	assert.Equal(t, "1", v)

	writeProps(t, file, "k=2\n")
	require.NoError(t, d.Reload())
	v, _ = d.Get("k")
	assert.Equal(t, "2", v)
}

func TestRecordNewValue_WritesUnderDifferencesPath(t *testing.T) {
	root := t.TempDir()
	d, err := Open(root, quiet())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, d.RecordNewValue(ctx, "Chrome_1024/conferencepage", "Chrome_1024.conferencepage.title", "Conference"))
	require.NoError(t, d.RecordNewValue(ctx, "Chrome_1024/conferencepage", "Chrome_1024.conferencepage.count", "3"))

	data, err := os.ReadFile(filepath.Join(root, DefaultRecordDir, "Chrome_1024", "conferencepage", RecordedFile))
	require.NoError(t, err)
	assert.Equal(t, "Chrome_1024.conferencepage.count = 3\nChrome_1024.conferencepage.title = Conference\n", string(data))

	// recorded values are candidates, not expectations
	_, ok := d.Get("Chrome_1024.conferencepage.title")
	assert.False(t, ok)
}

func TestRecordNewValue_RejectsEscapingPath(t *testing.T) {
	d, err := Open(t.TempDir(), quiet())
	require.NoError(t, err)

	for _, p := range []string{"../outside", "/abs/path", ".."} {
		assert.Error(t, d.RecordNewValue(context.Background(), p, "k", "v"), p)
	}
}

func TestRecordNewValue_ConcurrentWritersAreSerialized(t *testing.T) {
	root := t.TempDir()
	d, err := Open(root, quiet())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := "page.item" + string(rune('a'+i))
			assert.NoError(t, d.RecordNewValue(context.Background(), "page", key, "v"))
		}()
	}
	wg.Wait()

	f, err := os.Open(filepath.Join(d.RecordRoot(), "page", RecordedFile))
	require.NoError(t, err)
	defer f.Close()
	values, err := Parse(f, "")
	require.NoError(t, err)
	assert.Len(t, values, 20)
}

func TestPromote_MergesRecordedIntoExpected(t *testing.T) {
	root := t.TempDir()
	expectedFile := filepath.Join(root, "expected.properties")
	writeProps(t, expectedFile, "home.title=Home\nhome.count=2\n")

	d, err := Open(root, quiet())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, d.RecordNewValue(ctx, "home", "home.title", "Home"))
	require.NoError(t, d.RecordNewValue(ctx, "home", "home.count", "3"))
	require.NoError(t, d.RecordNewValue(ctx, "venue", "venue.title", "Venue"))

	changes, err := Promote(d.RecordRoot(), expectedFile, true)
	require.NoError(t, err)
	assert.Equal(t, []Change{
		{Key: "home.count", Old: "2", New: "3"},
		{Key: "venue.title", New: "Venue", Added: true},
	}, changes)

	before, err := os.ReadFile(expectedFile)
	require.NoError(t, err)
	assert.Equal(t, "home.title=Home\nhome.count=2\n", string(before), "dry run leaves file untouched")

	_, err = Promote(d.RecordRoot(), expectedFile, false)
	require.NoError(t, err)
	require.NoError(t, d.Reload())
	v, _ := d.Get("home.count")
	assert.Equal(t, "3", v)
	v, _ = d.Get("venue.title")
	assert.Equal(t, "Venue", v)
}

type failingRecorder struct{ err error }

func (f failingRecorder) RecordNewValue(context.Context, string, string, string) error {
	return f.err
}

func TestRecorders_FanOutAndJoinErrors(t *testing.T) {
	d, err := Open(t.TempDir(), quiet())
	require.NoError(t, err)
	boom := errors.New("boom")

	r := Recorders(d, nil, failingRecorder{err: boom})
	err = r.RecordNewValue(context.Background(), "p", "p.k", "v")
	assert.ErrorIs(t, err, boom)

	_, statErr := os.Stat(filepath.Join(d.RecordRoot(), "p", RecordedFile))
	assert.NoError(t, statErr, "healthy recorder still wrote")
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.properties")
	writeProps(t, file, "k=1\n")

	d, err := Open(root, quiet())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	reloaded := make(chan error, 8)
	done := make(chan error, 1)
	go func() {
		done <- d.Watch(ctx, 10*time.Millisecond, func(err error) {
			select {
			case reloaded <- err:
			default:
			}
		})
	}()

	// give the watcher time to register before changing the file
	require.Eventually(t, func() bool {
		writeProps(t, file, "k=2\n")
		select {
		case err := <-reloaded:
			return err == nil
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	v, _ := d.Get("k")
	assert.Equal(t, "2", v)

	cancel()
	require.NoError(t, <-done)
}

func TestMap_Get(t *testing.T) {
	m := Map{"a": "1"}
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = m.Get("b")
	assert.False(t, ok)
}
