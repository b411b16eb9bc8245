package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/ytindexer/internal/indexer"
	"github.com/fpang/ytindexer/internal/notify"
)

const testPlaylist = "https://www.youtube.com/playlist?list=PLtest"

type fakePurger struct {
	deleted int
	err     error
	calls   int
}

func (f *fakePurger) DeleteAll(context.Context) (int, error) {
	f.calls++
	return f.deleted, f.err
}

type fakeRunner struct {
	sum   indexer.Summary
	err   error
	calls []string
}

func (f *fakeRunner) Run(_ context.Context, playlistURL string) (indexer.Summary, error) {
	f.calls = append(f.calls, playlistURL)
	return f.sum, f.err
}

type fakeNotifier struct {
	events []notify.PlaylistIndexed
}

func (f *fakeNotifier) PublishPlaylistIndexed(_ context.Context, e notify.PlaylistIndexed) error {
	f.events = append(f.events, e)
	return nil
}

// callbackServer records every request made to the ResponseURL.
type callbackServer struct {
	*httptest.Server
	mu       sync.Mutex
	methods  []string
	bodies   []map[string]any
	respCode int
}

func newCallbackServer(t *testing.T) *callbackServer {
	t.Helper()
	cs := &callbackServer{respCode: http.StatusOK}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		cs.mu.Lock()
		cs.methods = append(cs.methods, r.Method)
		cs.bodies = append(cs.bodies, body)
		code := cs.respCode
		cs.mu.Unlock()
		w.WriteHeader(code)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *callbackServer) requests() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.bodies)
}

func customResourceEvent(requestType cfn.RequestType, responseURL string) cfn.Event {
	return cfn.Event{
		RequestType:        requestType,
		RequestID:          "req-1",
		ResponseURL:        responseURL,
		ResourceType:       "Custom::PlaylistIndexer",
		LogicalResourceID:  "Indexer",
		PhysicalResourceID: "indexer-physical",
		StackID:            "arn:aws:cloudformation:us-east-1:123456789012:stack/media/1",
	}
}

type fixture struct {
	dispatcher *Dispatcher
	purger     *fakePurger
	runner     *fakeRunner
	notifier   *fakeNotifier
	metrics    *bytes.Buffer
}

func newFixture(playlistURL string) *fixture {
	f := &fixture{
		purger:   &fakePurger{deleted: 7},
		runner:   &fakeRunner{sum: indexer.Summary{RunID: "run-1", Processed: 3, Indexed: 3, Attempts: 3, Duration: 2 * time.Second}},
		notifier: &fakeNotifier{},
		metrics:  &bytes.Buffer{},
	}
	reporter := &CallbackReporter{client: http.DefaultClient, logStream: "2026/10/17/[$LATEST]abc"}
	f.dispatcher = NewDispatcher(playlistURL, f.purger, f.runner, reporter).
		WithNotifier(f.notifier).
		WithMetricsWriter(f.metrics)
	return f
}

func TestHandle_DeletePurgesOnceAndNeverIndexes(t *testing.T) {
	cs := newCallbackServer(t)
	f := newFixture(testPlaylist)

	status, err := f.dispatcher.Handle(context.Background(), customResourceEvent(cfn.RequestDelete, cs.URL))
	require.NoError(t, err)
	assert.Equal(t, cfn.StatusSuccess, status)
	assert.Equal(t, 1, f.purger.calls)
	assert.Empty(t, f.runner.calls)
	assert.Empty(t, f.notifier.events)

	require.Equal(t, 1, cs.requests())
	assert.Equal(t, http.MethodPut, cs.methods[0])
	assert.Equal(t, "SUCCESS", cs.bodies[0]["Status"])
	assert.Equal(t, "indexer-physical", cs.bodies[0]["PhysicalResourceId"])
	assert.Equal(t, "req-1", cs.bodies[0]["RequestId"])
	assert.Equal(t, "Indexer", cs.bodies[0]["LogicalResourceId"])
	assert.Contains(t, f.metrics.String(), `"ObjectsDeleted":7`)
}

func TestHandle_DeletePurgeFailureReportsFailedWithoutRetry(t *testing.T) {
	cs := newCallbackServer(t)
	f := newFixture(testPlaylist)
	f.purger.err = errors.New("access denied")

	status, err := f.dispatcher.Handle(context.Background(), customResourceEvent(cfn.RequestDelete, cs.URL))
	require.NoError(t, err)
	assert.Equal(t, cfn.StatusFailed, status)
	assert.Equal(t, 1, f.purger.calls, "a failed purge is not retried")
	assert.Empty(t, f.runner.calls)

	require.Equal(t, 1, cs.requests(), "exactly one callback")
	assert.Equal(t, "FAILED", cs.bodies[0]["Status"])
	assert.Contains(t, cs.bodies[0]["Reason"], "2026/10/17/[$LATEST]abc")
}

func TestHandle_CreateRunsIndexing(t *testing.T) {
	for _, rt := range []cfn.RequestType{cfn.RequestCreate, cfn.RequestUpdate} {
		t.Run(string(rt), func(t *testing.T) {
			cs := newCallbackServer(t)
			f := newFixture(testPlaylist)

			status, err := f.dispatcher.Handle(context.Background(), customResourceEvent(rt, cs.URL))
			require.NoError(t, err)
			assert.Equal(t, cfn.StatusSuccess, status)
			assert.Equal(t, []string{testPlaylist}, f.runner.calls)
			assert.Zero(t, f.purger.calls)

			require.Equal(t, 1, cs.requests())
			assert.Equal(t, "SUCCESS", cs.bodies[0]["Status"])
			assert.Empty(t, cs.bodies[0]["Reason"])

			require.Len(t, f.notifier.events, 1)
			assert.Equal(t, "run-1", f.notifier.events[0].RunID)
			assert.Equal(t, "SUCCESS", f.notifier.events[0].Status)
			assert.Empty(t, f.notifier.events[0].FailedStage)
		})
	}
}

func TestHandle_IndexingFailureReportsFailed(t *testing.T) {
	cs := newCallbackServer(t)
	f := newFixture(testPlaylist)
	f.runner.err = errors.New("index https://www.youtube.com/watch?v=bad: fetch")
	f.runner.sum = indexer.Summary{
		RunID:         "run-2",
		Attempts:      3,
		FailedURL:     "https://www.youtube.com/watch?v=bad",
		FailedOutcome: indexer.OutcomeFetchFailed,
	}

	status, err := f.dispatcher.Handle(context.Background(), customResourceEvent(cfn.RequestCreate, cs.URL))
	require.NoError(t, err)
	assert.Equal(t, cfn.StatusFailed, status)
	require.Equal(t, 1, cs.requests())
	assert.Equal(t, "FAILED", cs.bodies[0]["Status"])

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "fetch", f.notifier.events[0].FailedStage)
	assert.Equal(t, "FAILED", f.notifier.events[0].Status)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(f.metrics.Bytes(), &doc))
	assert.EqualValues(t, 1, doc["Failures"])
	assert.EqualValues(t, 3, doc["Attempts"])
	assert.Equal(t, "index", doc["Operation"])
	assert.Equal(t, "run-2", doc["runId"])
}

func TestHandle_EmptyPlaylistIsNoOp(t *testing.T) {
	cs := newCallbackServer(t)
	f := newFixture("")

	status, err := f.dispatcher.Handle(context.Background(), customResourceEvent(cfn.RequestCreate, cs.URL))
	require.NoError(t, err)
	assert.Equal(t, cfn.StatusSuccess, status)
	assert.Empty(t, f.runner.calls)
	assert.Empty(t, f.notifier.events)
	require.Equal(t, 1, cs.requests())
	assert.Equal(t, "SUCCESS", cs.bodies[0]["Status"])
}

func TestHandle_ScheduledInvocationSendsNoCallback(t *testing.T) {
	cs := newCallbackServer(t)
	f := newFixture(testPlaylist)

	status, err := f.dispatcher.Handle(context.Background(), cfn.Event{})
	require.NoError(t, err)
	assert.Equal(t, cfn.StatusSuccess, status)
	assert.Len(t, f.runner.calls, 1)

	ev := customResourceEvent(cfn.RequestCreate, cs.URL)
	ev.ResourceType = "AWS::Events::Rule"
	_, err = f.dispatcher.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.Zero(t, cs.requests(), "non custom resource events get no callback")
}

func TestHandle_CallbackFailureReturnsStatusAndError(t *testing.T) {
	cs := newCallbackServer(t)
	cs.respCode = http.StatusForbidden
	f := newFixture(testPlaylist)

	status, err := f.dispatcher.Handle(context.Background(), customResourceEvent(cfn.RequestCreate, cs.URL))
	require.Error(t, err)
	assert.Equal(t, cfn.StatusSuccess, status)
	assert.Contains(t, err.Error(), "403")
}

func TestReport_PhysicalResourceIDFallsBackToLogStream(t *testing.T) {
	cs := newCallbackServer(t)
	r := &CallbackReporter{client: http.DefaultClient, logStream: "stream-1"}
	ev := customResourceEvent(cfn.RequestCreate, cs.URL)
	ev.PhysicalResourceID = ""

	require.NoError(t, r.Report(context.Background(), ev, cfn.StatusSuccess))
	require.Equal(t, 1, cs.requests())
	assert.Equal(t, "stream-1", cs.bodies[0]["PhysicalResourceId"])
}

func TestIsCustomResource(t *testing.T) {
	tests := []struct {
		name         string
		resourceType string
		responseURL  string
		want         bool
	}{
		{"custom prefix", "Custom::Indexer", "https://example.com", true},
		{"generic type", "AWS::CloudFormation::CustomResource", "https://example.com", true},
		{"no response url", "Custom::Indexer", "", false},
		{"other resource", "AWS::S3::Bucket", "https://example.com", false},
		{"empty event", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := cfn.Event{ResourceType: tt.resourceType, ResponseURL: tt.responseURL}
			assert.Equal(t, tt.want, IsCustomResource(ev))
		})
	}
}
