package cli_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Autopost/internal/cli"
)

const wfID = "5f0c5a7e-3d2b-4f7a-9a51-2f6f1c0e8b11"

func sampleWorkflow(status string) cli.WorkflowResponse {
	return cli.WorkflowResponse{
		ID:          wfID,
		UserID:      "u1",
		Title:       "Hello",
		ContentType: "blog_post",
		Status:      status,
		MaxRetries:  3,
		CreatedAt:   "2026-03-01T12:00:00Z",
	}
}

type fakeAPI struct {
	lastBody   map[string]any
	lastQuery  string
	startError *cli.ErrorDetail
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux.HandleFunc("GET /api/v1/workflows", func(w http.ResponseWriter, r *http.Request) {
		f.lastQuery = r.URL.RawQuery
		write(w, http.StatusOK, map[string]any{"data": []cli.WorkflowResponse{sampleWorkflow("completed")}, "total": 1})
	})
	mux.HandleFunc("POST /api/v1/workflows", func(w http.ResponseWriter, r *http.Request) {
		f.lastQuery = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &f.lastBody))
		wf := sampleWorkflow("pending")
		wf.StartError = f.startError
		write(w, http.StatusCreated, map[string]any{"data": wf})
	})
	mux.HandleFunc("POST /api/v1/workflows/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]any{"data": cli.CancelResponse{Cancelled: false, Workflow: sampleWorkflow("completed")}})
	})
	mux.HandleFunc("POST /api/v1/workflows/{id}/retry", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusUnprocessableEntity, map[string]any{"error": map[string]string{
			"code": "INVALID_STATE", "message": "only failed workflows can be retried",
		}})
	})
	mux.HandleFunc("GET /api/v1/scheduler/tasks", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]any{"data": []cli.TaskResponse{{ID: wfID, Kind: "retry", State: "waiting", Attempt: 2}}, "total": 1})
	})
	return mux
}

func run(t *testing.T, api *fakeAPI, jsonMode bool, args ...string) (string, string, error) {
	t.Helper()

	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	var stdout, stderr bytes.Buffer
	clientFn := func() *cli.Client { return cli.NewClient(srv.URL) }
	outputFn := func() *cli.Output { return cli.NewOutputTo(jsonMode, &stdout, &stderr) }

	root := &cobra.Command{Use: "autopost-cli", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(cli.NewWorkflowCmd(clientFn, outputFn), cli.NewTasksCmd(clientFn, outputFn))
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestWorkflowList_Table(t *testing.T) {
	api := &fakeAPI{}
	out, _, err := run(t, api, false, "workflow", "list", "--user", "u1", "--status", "completed")
	require.NoError(t, err)

	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, wfID)
	assert.Contains(t, out, "0/3")
	assert.Contains(t, api.lastQuery, "user_id=u1")
	assert.Contains(t, api.lastQuery, "status=completed")
}

func TestWorkflowList_JSON(t *testing.T) {
	out, _, err := run(t, &fakeAPI{}, true, "wf", "list")
	require.NoError(t, err)

	var got []cli.WorkflowResponse
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "completed", got[0].Status)
}

func TestWorkflowCreate(t *testing.T) {
	api := &fakeAPI{}
	_, msg, err := run(t, api, false, "workflow", "create",
		"--user", "u1", "--connection", "c1", "--title", "Hello",
		"--content", "<p>Hi</p>", "--type", "tutorial", "--tags", "go,cli",
		"--at", "2026-03-01T15:00:00Z", "--start",
	)
	require.NoError(t, err)

	assert.Contains(t, msg, "Workflow created: "+wfID)
	assert.Equal(t, "start=true", api.lastQuery)
	assert.Equal(t, "tutorial", api.lastBody["content_type"])
	assert.Equal(t, []any{"go", "cli"}, api.lastBody["tags"])
	assert.Equal(t, "2026-03-01T15:00:00Z", api.lastBody["scheduled_publish_time"])
}

func TestWorkflowCreate_StartFailed(t *testing.T) {
	api := &fakeAPI{startError: &cli.ErrorDetail{Code: "UNAVAILABLE", Message: "engine is shutting down"}}
	out, msg, err := run(t, api, false, "workflow", "create",
		"--user", "u1", "--connection", "c1", "--title", "Hello", "--content", "<p>Hi</p>", "--start",
	)

	assert.ErrorContains(t, err, "created but not started: engine is shutting down")
	assert.Contains(t, msg, "Workflow created: "+wfID)
	assert.Contains(t, out, wfID)
}

func TestWorkflowCreate_RequiresContent(t *testing.T) {
	_, _, err := run(t, &fakeAPI{}, false, "workflow", "create", "--user", "u1", "--connection", "c1", "--title", "T")
	assert.ErrorContains(t, err, "content is required")

	_, _, err = run(t, &fakeAPI{}, false, "workflow", "create", "--user", "u1", "--connection", "c1", "--title", "T",
		"--content", "x", "--at", "tomorrow")
	assert.ErrorContains(t, err, "invalid --at")
}

func TestWorkflowCancel_AlreadyFinished(t *testing.T) {
	_, msg, err := run(t, &fakeAPI{}, false, "workflow", "cancel", wfID)
	require.NoError(t, err)
	assert.Contains(t, msg, "already completed")
}

func TestWorkflowRetry_APIError(t *testing.T) {
	_, _, err := run(t, &fakeAPI{}, false, "workflow", "retry", wfID)
	assert.EqualError(t, err, "INVALID_STATE: only failed workflows can be retried")
}

func TestTasks(t *testing.T) {
	out, _, err := run(t, &fakeAPI{}, false, "tasks")
	require.NoError(t, err)
	assert.Contains(t, out, "retry")
	assert.Contains(t, out, wfID)
}
