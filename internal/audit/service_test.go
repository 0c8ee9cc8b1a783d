package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/bill-audit/constants"
	"github.com/joseph-ayodele/bill-audit/internal/common"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
	"github.com/joseph-ayodele/bill-audit/internal/jobs"
	"github.com/joseph-ayodele/bill-audit/internal/pipeline"
	repomocks "github.com/joseph-ayodele/bill-audit/internal/repository/mocks"
	"github.com/joseph-ayodele/bill-audit/internal/storage"
	storemocks "github.com/joseph-ayodele/bill-audit/internal/storage/mocks"
)

// runnerFunc adapts a function to Runner.
type runnerFunc func(ctx context.Context, job *jobs.Job, in pipeline.Input) (pipeline.Result, error)

func (f runnerFunc) Run(ctx context.Context, job *jobs.Job, in pipeline.Input) (pipeline.Result, error) {
	return f(ctx, job, in)
}

func completing(ctx context.Context, job *jobs.Job, in pipeline.Input) (pipeline.Result, error) {
	job.Log(constants.SeverityOK, "Report ready - 1 matched, 0 issues")
	job.Complete(entity.Summary{Total: 1, Matched: 1}, pipeline.ReportKey(job))
	return pipeline.Result{}, nil
}

func zipBytes(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, n := range names {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, _ = w.Write([]byte(n))
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type harness struct {
	svc       *Service
	store     *jobs.Store
	artifacts *storemocks.MockStorage
}

func newHarness(t *testing.T, runner Runner, repo *repomocks.MockAuditRunRepository) *harness {
	t.Helper()
	store := jobs.NewStore()
	queue := jobs.NewQueue(nil, jobs.WithWorkers(1))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		queue.Shutdown(ctx)
	})
	artifacts := &storemocks.MockStorage{}
	var svc *Service
	if repo != nil {
		svc = NewService(Config{WorkDir: t.TempDir()}, store, queue, runner, artifacts, repo, nil)
	} else {
		svc = NewService(Config{WorkDir: t.TempDir()}, store, queue, runner, artifacts, nil, nil)
	}
	return &harness{svc: svc, store: store, artifacts: artifacts}
}

func waitTerminal(t *testing.T, h *harness, id uuid.UUID) {
	t.Helper()
	require.Eventually(t, func() bool {
		j, ok := h.store.Get(id)
		if !ok || !j.Terminal() {
			return false
		}
		h.svc.mu.Lock()
		defer h.svc.mu.Unlock()
		r, ok := h.svc.runs[id]
		return ok && r.Status != string(constants.JobStatusProcessing)
	}, 5*time.Second, 5*time.Millisecond)
}

func TestSubmit_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		req  SubmitRequest
		msg  string
	}{
		{
			name: "not a zip name",
			req:  SubmitRequest{ArchiveName: "bills.rar", Archive: bytes.NewReader(zipBytes(t, "a.jpg"))},
			msg:  "zip_file",
		},
		{
			name: "missing archive",
			req:  SubmitRequest{ArchiveName: "bills.zip"},
			msg:  "is required",
		},
		{
			name: "corrupt archive",
			req:  SubmitRequest{ArchiveName: "bills.zip", Archive: strings.NewReader("not a zip")},
			msg:  "not a readable ZIP",
		},
		{
			name: "no bill files",
			req:  SubmitRequest{ArchiveName: "bills.zip", Archive: bytes.NewReader(zipBytes(t, "notes.txt", "Payments/upi.png", ".hidden.jpg"))},
			msg:  "no bill files",
		},
		{
			name: "bad ledger type",
			req: SubmitRequest{
				ArchiveName: "bills.zip", Archive: bytes.NewReader(zipBytes(t, "a.jpg")),
				LedgerName: "ledger.pdf", Ledger: strings.NewReader("x"),
			},
			msg: "csv_file",
		},
		{
			name: "empty ledger",
			req: SubmitRequest{
				ArchiveName: "bills.zip", Archive: bytes.NewReader(zipBytes(t, "a.jpg")),
				LedgerName: "ledger.csv", Ledger: strings.NewReader("Bill Number,Vendor Name\n"),
			},
			msg: "no data rows",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, runnerFunc(completing), nil)

			id, err := h.svc.Submit(context.Background(), tc.req)

			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
			assert.Contains(t, err.Error(), tc.msg)
			assert.Equal(t, uuid.Nil, id)
			assert.Zero(t, h.store.Len())
		})
	}
}

func TestSubmit_RunsAndServesReport(t *testing.T) {
	var got pipeline.Input
	runner := runnerFunc(func(ctx context.Context, job *jobs.Job, in pipeline.Input) (pipeline.Result, error) {
		got = in
		return completing(ctx, job, in)
	})
	h := newHarness(t, runner, nil)

	id, err := h.svc.Submit(context.Background(), SubmitRequest{
		ArchiveName: "March Bills.zip",
		Archive:     bytes.NewReader(zipBytes(t, "March/a.jpg", "b.pdf")),
		LedgerName:  "ledger.csv",
		Ledger:      strings.NewReader("Bill Number,Vendor Name\nCR/482,Acme\n"),
	})
	require.NoError(t, err)
	waitTerminal(t, h, id)

	assert.Equal(t, "March Bills.zip", got.ArchiveName)
	assert.Equal(t, "ledger.csv", got.LedgerName)
	assert.NotEmpty(t, got.LedgerPath)

	st, err := h.svc.Poll(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusDone, st.Status)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, jobs.StepComplete, st.Step)
	require.Len(t, st.Logs, 2)
	assert.Equal(t, "Audit queued", st.Logs[0].Message)

	again, err := h.svc.Poll(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, again.Logs, "lines are delivered once")

	key := "audit_" + id.String()[:8] + ".xlsx"
	h.artifacts.On("Get", mock.Anything, key).
		Return(io.NopCloser(strings.NewReader("xlsx")), storage.ObjectInfo{Key: key, Size: 4}, nil)

	rc, info, err := h.svc.Report(context.Background(), id)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, ReportFileName, info.FileName)
	assert.Equal(t, pipeline.ReportContentType, info.ContentType)
	assert.EqualValues(t, 4, info.Size)
	h.artifacts.AssertExpectations(t)
}

func TestReport_NotReadyWhileRunning(t *testing.T) {
	release := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, job *jobs.Job, in pipeline.Input) (pipeline.Result, error) {
		<-release
		return completing(ctx, job, in)
	})
	h := newHarness(t, runner, nil)

	id, err := h.svc.Submit(context.Background(), SubmitRequest{ArchiveName: "b.zip", Archive: bytes.NewReader(zipBytes(t, "a.png"))})
	require.NoError(t, err)

	_, _, err = h.svc.Report(context.Background(), id)
	assert.ErrorIs(t, err, common.ErrNotReady)

	st, err := h.svc.Poll(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusProcessing, st.Status)
	assert.Equal(t, pipeline.ProgressQueued, st.Progress)

	close(release)
	waitTerminal(t, h, id)
}

func TestSubmit_FailedRun(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, job *jobs.Job, in pipeline.Input) (pipeline.Result, error) {
		return pipeline.Result{}, errors.New("no bill files found in archive")
	})
	repo := &repomocks.MockAuditRunRepository{}
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	finished := make(chan *entity.AuditRun, 1)
	repo.On("Finish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		finished <- args.Get(1).(*entity.AuditRun)
	}).Return(nil)
	h := newHarness(t, runner, repo)

	id, err := h.svc.Submit(context.Background(), SubmitRequest{ArchiveName: "b.zip", Archive: bytes.NewReader(zipBytes(t, "a.jpg"))})
	require.NoError(t, err)
	waitTerminal(t, h, id)

	var run *entity.AuditRun
	select {
	case run = <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("run was not persisted")
	}
	assert.Equal(t, string(constants.JobStatusError), run.Status)
	require.NotNil(t, run.ErrorMessage)
	assert.Contains(t, *run.ErrorMessage, "no bill files")
	assert.NotNil(t, run.FinishedAt)

	st, err := h.svc.Poll(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusError, st.Status)

	_, _, err = h.svc.Report(context.Background(), id)
	assert.ErrorIs(t, err, common.ErrNotReady)
}

func TestPoll_FallsBackToRepository(t *testing.T) {
	repo := &repomocks.MockAuditRunRepository{}
	id := uuid.New()
	key := "audit_" + id.String()[:8] + ".xlsx"
	done := time.Now()
	repo.On("Get", mock.Anything, id).Return(&entity.AuditRun{
		ID: id, Status: "done", ReportKey: &key, FinishedAt: &done,
		Summary: []byte(`{"total":4,"matched":3,"mismatch":1}`),
	}, nil)
	missing := uuid.New()
	repo.On("Get", mock.Anything, missing).Return(nil, common.NewAppError(common.CodeNotFound, "audit not found", common.ErrNotFound))
	h := newHarness(t, runnerFunc(completing), repo)

	st, err := h.svc.Poll(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusDone, st.Status)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, jobs.StepComplete, st.Step, "matches a live poll of a done job")
	assert.Empty(t, st.Logs)
	require.NotNil(t, st.Summary)
	assert.Equal(t, 3, st.Summary.Matched)

	h.artifacts.On("Get", mock.Anything, key).
		Return(io.NopCloser(strings.NewReader("x")), storage.ObjectInfo{Key: key, ContentType: "application/octet-stream"}, nil)
	rc, info, err := h.svc.Report(context.Background(), id)
	require.NoError(t, err)
	_ = rc.Close()
	assert.Equal(t, "application/octet-stream", info.ContentType)

	_, err = h.svc.Poll(context.Background(), missing)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPoll_UnknownWithoutRepository(t *testing.T) {
	h := newHarness(t, runnerFunc(completing), nil)
	_, err := h.svc.Poll(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSweepAndList(t *testing.T) {
	h := newHarness(t, runnerFunc(completing), nil)

	first, err := h.svc.Submit(context.Background(), SubmitRequest{ArchiveName: "one.zip", Archive: bytes.NewReader(zipBytes(t, "a.jpg"))})
	require.NoError(t, err)
	waitTerminal(t, h, first)
	time.Sleep(2 * time.Millisecond)
	second, err := h.svc.Submit(context.Background(), SubmitRequest{ArchiveName: "two.zip", Archive: bytes.NewReader(zipBytes(t, "b.jpg"))})
	require.NoError(t, err)
	waitTerminal(t, h, second)

	runs, err := h.svc.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "two.zip", runs[0].ArchiveName)
	assert.Equal(t, "done", runs[0].Status)
	require.NotNil(t, runs[0].ReportKey)

	assert.Zero(t, h.svc.Sweep(), "retention not reached")

	firstKey := "audit_" + first.String()[:8] + ".xlsx"
	secondKey := "audit_" + second.String()[:8] + ".xlsx"
	h.artifacts.On("Delete", mock.Anything, firstKey).Return(nil).Once()
	h.artifacts.On("Delete", mock.Anything, secondKey).Return(common.ErrNotFound).Once()

	h.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, 2, h.svc.Sweep())
	assert.Zero(t, h.store.Len())
	runs, err = h.svc.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
	h.artifacts.AssertExpectations(t)

	assert.Zero(t, h.svc.Sweep())
	h.artifacts.AssertNumberOfCalls(t, "Delete", 2)
}

func TestSubmit_QueueClosed(t *testing.T) {
	h := newHarness(t, runnerFunc(completing), nil)
	h.svc.queue.Shutdown(context.Background())

	id, err := h.svc.Submit(context.Background(), SubmitRequest{ArchiveName: "a.zip", Archive: bytes.NewReader(zipBytes(t, "a.jpg"))})

	require.Error(t, err)
	assert.Equal(t, uuid.Nil, id)
	assert.Equal(t, common.CodeInternal, common.ErrorCode(err))
	assert.Zero(t, h.store.Len())
}

func TestList_UsesRepository(t *testing.T) {
	repo := &repomocks.MockAuditRunRepository{}
	repo.On("List", mock.Anything, 5).Return([]entity.AuditRun{{ArchiveName: "x.zip"}}, nil)
	h := newHarness(t, runnerFunc(completing), repo)

	runs, err := h.svc.List(context.Background(), 5)

	require.NoError(t, err)
	assert.Len(t, runs, 1)
	repo.AssertExpectations(t)
}
