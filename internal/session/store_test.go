package session

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/docdesk/internal/blob"
	"github.com/shehryarbajwa/docdesk/internal/canvas"
	"github.com/shehryarbajwa/docdesk/pkg/models"
)

// fakeClock hands out timers that only fire when the test says so.
// With handoff set, Fire returns only once the waiting goroutine has received.
type fakeClock struct {
	mu      sync.Mutex
	handoff bool
	pending []chan time.Time
	delays  []time.Duration
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	size := 1
	if c.handoff {
		size = 0
	}
	ch := make(chan time.Time, size)
	c.pending = append(c.pending, ch)
	c.delays = append(c.delays, d)
	return ch
}

// Fire releases every pending timer
func (c *fakeClock) Fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.pending {
		ch <- time.Now()
	}
	c.pending = nil
}

// FireAt releases the i-th pending timer only
func (c *fakeClock) FireAt(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[i] <- time.Now()
	c.pending = append(c.pending[:i], c.pending[i+1:]...)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func newTestStore(t *testing.T, maxPending int64) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	s := NewStore("", blob.NewStore(), Options{
		UploadDelay:       time.Second,
		MaxPendingUploads: maxPending,
		Clock:             clock,
	})
	t.Cleanup(s.Close)
	return s, clock
}

func file(name string) *models.File {
	return &models.File{Name: name, ContentType: "text/plain", Body: strings.NewReader("content of " + name)}
}

func names(docs []models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Name
	}
	return out
}

func TestLoginUploadDeleteScenario(t *testing.T) {
	s, clock := newTestStore(t, 0)

	assert.False(t, s.Authenticated())
	s.Login()
	assert.True(t, s.Authenticated())
	docs, _ := s.Documents()
	assert.Empty(t, docs)

	upload, err := s.SelectFile(file("fileA"))
	require.NoError(t, err)
	assert.Equal(t, models.ProgressStarted, upload.Percent)
	assert.Equal(t, models.UploadPending, upload.Status)
	assert.Equal(t, models.ProgressStarted, s.Progress()[upload.ID].Percent)
	assert.Equal(t, []time.Duration{time.Second}, clock.delays)

	docs, _ = s.Documents()
	assert.Empty(t, docs, "documents appear only after the delay")

	clock.Fire()
	s.Wait()

	docs, rev := s.Documents()
	assert.Equal(t, []string{"fileA"}, names(docs))
	assert.Equal(t, models.ProgressComplete, s.Progress()[upload.ID].Percent)
	assert.Equal(t, models.UploadCompleted, s.Progress()[upload.ID].Status)
	assert.NotNil(t, s.Progress()[upload.ID].CompletedAt)

	require.NoError(t, s.DeleteDocumentAt(0, rev))
	docs, _ = s.Documents()
	assert.Empty(t, docs)
}

func TestUploadsKeepSubmissionOrder(t *testing.T) {
	s, clock := newTestStore(t, 0)
	s.Login()

	_, err := s.SelectFile(file("a"))
	require.NoError(t, err)
	_, err = s.DropFiles([]models.File{*file("b"), *file("c")})
	require.NoError(t, err)
	_, err = s.SelectFile(file("d"))
	require.NoError(t, err)

	// complete the last upload first
	clock.FireAt(2)
	require.Eventually(t, func() bool {
		docs, _ := s.Documents()
		return len(docs) == 1
	}, time.Second, time.Millisecond)

	clock.Fire()
	s.Wait()

	docs, _ := s.Documents()
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(docs))
	for _, d := range docs {
		assert.NotEmpty(t, d.ID)
		assert.True(t, strings.HasPrefix(d.ContentHandle, blob.HandlePrefix))
	}
}

func TestProgressIsTrackedPerUpload(t *testing.T) {
	s, clock := newTestStore(t, 0)
	s.Login()

	first, err := s.SelectFile(file("first"))
	require.NoError(t, err)
	second, err := s.SelectFile(file("second"))
	require.NoError(t, err)

	clock.FireAt(0)
	require.Eventually(t, func() bool {
		return s.Progress()[first.ID].Percent == models.ProgressComplete
	}, time.Second, time.Millisecond)

	progress := s.Progress()
	assert.Len(t, progress, 2)
	assert.Equal(t, models.ProgressStarted, progress[second.ID].Percent)

	clock.Fire()
	s.Wait()
}

func TestLogoutClearsEverything(t *testing.T) {
	s, clock := newTestStore(t, 0)
	s.Login()

	_, err := s.DropFiles([]models.File{*file("fileA"), *file("fileB")})
	require.NoError(t, err)
	clock.Fire()
	s.Wait()
	require.NoError(t, s.SetTypedSignature("Jane Doe"))

	s.Logout()
	snap := s.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Empty(t, snap.Documents)
	assert.Empty(t, snap.Uploads)
	assert.True(t, snap.Signature.IsEmpty())
	assert.Equal(t, 0, s.Blobs().Len())

	s.Login()
	docs, _ := s.Documents()
	assert.Empty(t, docs, "documents are not restored by a new login")
}

func TestLogoutWhenLoggedOut(t *testing.T) {
	s, _ := newTestStore(t, 0)
	s.Logout()
	assert.False(t, s.Authenticated())
	docs, _ := s.Documents()
	assert.Empty(t, docs)
}

func TestLogoutCancelsPendingUploads(t *testing.T) {
	s, clock := newTestStore(t, 0)
	s.Login()

	events, stop := s.Subscribe()
	defer stop()

	upload, err := s.SelectFile(file("late"))
	require.NoError(t, err)

	s.Logout()
	s.Login()
	clock.Fire()
	s.Wait()

	docs, _ := s.Documents()
	assert.Empty(t, docs, "a cancelled upload must not repopulate the new session")
	assert.Empty(t, s.Progress())
	assert.Equal(t, 0, s.Blobs().Len())

	var types []models.EventType
	for len(events) > 0 {
		e := <-events
		if e.UploadID == upload.ID {
			types = append(types, e.Type)
		}
	}
	assert.Equal(t, []models.EventType{models.EventUploadStarted, models.EventUploadCancelled}, types)
}

func TestLogoutAfterTimerFired(t *testing.T) {
	s, clock := newTestStore(t, 0)
	clock.handoff = true
	s.Login()

	upload, err := s.SelectFile(file("raced"))
	require.NoError(t, err)

	// the completion has its timer but is stuck behind the lock when logout runs
	s.mu.Lock()
	clock.Fire()
	pending, handles := s.resetLocked()
	s.mu.Unlock()

	assert.Equal(t, []string{upload.ID}, pending)
	assert.Empty(t, handles)

	s.Wait()
	docs, _ := s.Documents()
	assert.Empty(t, docs)
	assert.Empty(t, s.Progress())
	assert.Equal(t, 0, s.Blobs().Len())
}

func TestOperationsRequireLogin(t *testing.T) {
	s, _ := newTestStore(t, 0)

	ops := map[string]func() error{
		"SelectFile":           func() error { _, err := s.SelectFile(file("x")); return err },
		"DropFiles":            func() error { _, err := s.DropFiles([]models.File{*file("x")}); return err },
		"DeleteDocument":       func() error { return s.DeleteDocument("missing") },
		"DeleteDocumentAt":     func() error { return s.DeleteDocumentAt(0, 0) },
		"AttachCanvas":         func() error { return s.AttachCanvas(canvas.New(0, 0)) },
		"Draw":                 func() error { return s.Draw([]models.Point{{X: 1, Y: 1}}) },
		"SaveSignature":        s.SaveSignature,
		"ClearSignature":       s.ClearSignature,
		"SetTypedSignature":    func() error { return s.SetTypedSignature("x") },
		"AttachSignatureImage": func() error { return s.AttachSignatureImage(file("sig.png")) },
		"SetPenColor":          func() error { return s.SetPenColor("red") },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, op(), ErrUnauthenticated)
		})
	}
	assert.Equal(t, 0, s.Blobs().Len())
}

func TestEmptyUploads(t *testing.T) {
	s, _ := newTestStore(t, 0)
	s.Login()

	_, err := s.SelectFile(nil)
	assert.ErrorIs(t, err, ErrNoFileSelected)
	_, err = s.DropFiles(nil)
	assert.ErrorIs(t, err, ErrNoFiles)
	assert.Empty(t, s.Progress())
}

func TestUploadReadFailure(t *testing.T) {
	s, clock := newTestStore(t, 1)
	s.Login()

	_, err := s.DropFiles([]models.File{*file("ok"), {Name: "broken", Body: failingReader{}}})
	assert.Error(t, err)
	assert.Empty(t, s.Progress())
	assert.Equal(t, 0, s.Blobs().Len())

	// the pending slot was given back
	_, err = s.SelectFile(file("next"))
	require.NoError(t, err)
	clock.Fire()
	s.Wait()
}

func TestTooManyPendingUploads(t *testing.T) {
	s, clock := newTestStore(t, 2)
	s.Login()

	_, err := s.SelectFile(file("one"))
	require.NoError(t, err)
	_, err = s.SelectFile(file("two"))
	require.NoError(t, err)
	_, err = s.SelectFile(file("three"))
	assert.ErrorIs(t, err, ErrTooManyUploads)

	clock.Fire()
	s.Wait()

	_, err = s.SelectFile(file("three"))
	require.NoError(t, err)
	clock.Fire()
	s.Wait()

	docs, _ := s.Documents()
	assert.Equal(t, []string{"one", "two", "three"}, names(docs))
}

func uploadAll(t *testing.T, s *Store, clock *fakeClock, fileNames ...string) []models.Document {
	t.Helper()
	files := make([]models.File, len(fileNames))
	for i, n := range fileNames {
		files[i] = *file(n)
	}
	_, err := s.DropFiles(files)
	require.NoError(t, err)
	clock.Fire()
	s.Wait()
	docs, _ := s.Documents()
	return docs
}

func TestDeleteDocumentByID(t *testing.T) {
	s, clock := newTestStore(t, 0)
	s.Login()
	docs := uploadAll(t, s, clock, "a", "b", "c")
	require.Len(t, docs, 3)

	require.NoError(t, s.DeleteDocument(docs[1].ID))
	remaining, _ := s.Documents()
	assert.Equal(t, []string{"a", "c"}, names(remaining))
	assert.Equal(t, 2, s.Blobs().Len())

	err := s.DeleteDocument(docs[1].ID)
	assert.ErrorIs(t, err, ErrStaleReference)
}

func TestDeleteDocumentAt(t *testing.T) {
	s, clock := newTestStore(t, 0)
	s.Login()
	uploadAll(t, s, clock, "a", "b", "c", "d")

	_, rev := s.Documents()
	require.NoError(t, s.DeleteDocumentAt(2, rev))
	docs, newRev := s.Documents()
	assert.Equal(t, []string{"a", "b", "d"}, names(docs))
	assert.NotEqual(t, rev, newRev)

	// index computed from the old snapshot
	assert.ErrorIs(t, s.DeleteDocumentAt(0, rev), ErrStaleReference)
	assert.ErrorIs(t, s.DeleteDocumentAt(3, newRev), ErrStaleReference)
	assert.ErrorIs(t, s.DeleteDocumentAt(-1, newRev), ErrStaleReference)

	docs, _ = s.Documents()
	assert.Len(t, docs, 3)
}

func TestTypedSignatureThenClear(t *testing.T) {
	s, _ := newTestStore(t, 0)
	s.Login()

	require.NoError(t, s.SetTypedSignature("Jane Doe"))
	assert.Equal(t, models.Signature{Kind: models.SignatureTyped, TypedText: "Jane Doe"}, s.Signature())

	require.NoError(t, s.ClearSignature())
	sig := s.Signature()
	assert.Empty(t, sig.TypedText)
	assert.Empty(t, sig.DrawnDataURL)
	assert.Empty(t, sig.ImageURL)
	assert.True(t, sig.IsEmpty())

	require.NoError(t, s.SetTypedSignature("  Jane  "))
	assert.Equal(t, "  Jane  ", s.Signature().TypedText, "text is stored verbatim")
	require.NoError(t, s.SetTypedSignature(""))
	assert.True(t, s.Signature().IsEmpty())
}

func TestSaveSignatureWithoutCanvas(t *testing.T) {
	s, _ := newTestStore(t, 0)
	s.Login()

	assert.ErrorIs(t, s.SaveSignature(), ErrInvalidState)
	assert.ErrorIs(t, s.Draw([]models.Point{{X: 1, Y: 1}}), ErrInvalidState)
	assert.ErrorIs(t, s.AttachCanvas(nil), ErrInvalidState)
	assert.True(t, s.Signature().IsEmpty())
}

func TestDrawnSignature(t *testing.T) {
	s, _ := newTestStore(t, 0)
	s.Login()

	require.NoError(t, s.SetPenColor("#336699"))
	c := canvas.New(100, 40)
	require.NoError(t, s.AttachCanvas(c))
	assert.Equal(t, "#336699", c.PenColor())

	require.NoError(t, s.Draw([]models.Point{{X: 5, Y: 5}, {X: 60, Y: 30}}))
	require.NoError(t, s.SaveSignature())

	sig := s.Signature()
	assert.Equal(t, models.SignatureDrawn, sig.Kind)
	assert.True(t, strings.HasPrefix(sig.DrawnDataURL, "data:image/png;base64,"))

	require.NoError(t, s.ClearSignature())
	assert.True(t, c.IsEmpty())
	assert.True(t, s.Signature().IsEmpty())
}

func TestOversizedCanvasKeepsSessionUsable(t *testing.T) {
	s, _ := newTestStore(t, 0)
	s.Login()

	require.NoError(t, s.AttachCanvas(canvas.New(1<<31, 1<<31)))
	assert.ErrorIs(t, s.Draw([]models.Point{{X: 0, Y: 0}, {X: 2000000000, Y: 0}}), canvas.ErrInvalidStroke)
	require.NoError(t, s.Draw([]models.Point{{X: 0, Y: 0}, {X: 100, Y: 100}}))
	require.NoError(t, s.SaveSignature())

	done := make(chan bool)
	go func() { done <- s.Authenticated() }()
	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("store lock still held after saving the signature")
	}
	assert.Equal(t, models.SignatureDrawn, s.Signature().Kind)
}

func TestSignatureMethodsAreExclusive(t *testing.T) {
	s, _ := newTestStore(t, 0)
	s.Login()
	require.NoError(t, s.AttachCanvas(canvas.New(0, 0)))

	require.NoError(t, s.SetTypedSignature("Jane"))
	assert.ErrorIs(t, s.SaveSignature(), ErrSignatureLocked)
	assert.ErrorIs(t, s.Draw([]models.Point{{X: 1, Y: 1}}), ErrSignatureLocked)
	assert.ErrorIs(t, s.AttachSignatureImage(file("sig.png")), ErrSignatureLocked)
	assert.Equal(t, "Jane", s.Signature().TypedText)

	require.NoError(t, s.ClearSignature())
	require.NoError(t, s.AttachSignatureImage(file("sig.png")))
	assert.ErrorIs(t, s.SetTypedSignature("Jane"), ErrSignatureLocked)
	assert.Equal(t, models.SignatureImage, s.Signature().Kind)
}

func TestAttachSignatureImage(t *testing.T) {
	s, _ := newTestStore(t, 0)
	s.Login()

	assert.ErrorIs(t, s.AttachSignatureImage(nil), ErrNoFileSelected)
	assert.True(t, s.Signature().IsEmpty())

	require.NoError(t, s.AttachSignatureImage(file("first.png")))
	first := s.Signature().ImageURL
	assert.True(t, strings.HasPrefix(first, blob.HandlePrefix))

	require.NoError(t, s.AttachSignatureImage(file("second.png")))
	second := s.Signature().ImageURL
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, s.Blobs().Len(), "replaced image is released")

	require.NoError(t, s.ClearSignature())
	assert.Equal(t, 0, s.Blobs().Len())
}

func TestSubscribeReceivesEvents(t *testing.T) {
	s, clock := newTestStore(t, 0)
	events, stop := s.Subscribe()

	s.Login()
	upload, err := s.SelectFile(file("a"))
	require.NoError(t, err)
	clock.Fire()
	s.Wait()
	docs, _ := s.Documents()
	require.NoError(t, s.DeleteDocument(docs[0].ID))

	want := []models.EventType{
		models.EventLogin,
		models.EventUploadStarted,
		models.EventUploadCompleted,
		models.EventDocumentDeleted,
	}
	for _, typ := range want {
		e := <-events
		assert.Equal(t, typ, e.Type)
		assert.Equal(t, s.ID(), e.SessionID)
		assert.False(t, e.At.IsZero())
		if typ == models.EventUploadCompleted {
			assert.Equal(t, upload.ID, e.UploadID)
			assert.Equal(t, models.ProgressComplete, e.Percent)
		}
	}

	stop()
	stop()
	_, open := <-events
	assert.False(t, open)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	s, _ := newTestStore(t, 0)
	events, stop := s.Subscribe()
	defer stop()

	s.Login()
	s.Close()
	for range events {
	}

	s.Login()
	assert.False(t, s.Authenticated(), "a closed store stays logged out")

	late, _ := s.Subscribe()
	_, open := <-late
	assert.False(t, open)
}
