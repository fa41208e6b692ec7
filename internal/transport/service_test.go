package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/workforce-hq/workforce/internal/registry"
)

func newTestService(t *testing.T) (*Service, *mux.Router, *registry.Registry) {
	t.Helper()
	reg := registry.New(t.TempDir(), filepath.Join(t.TempDir(), "events.log"), 0, nil)
	svc := NewService(reg, nil, "127.0.0.1", 8787)
	router := mux.NewRouter()
	svc.LoadRoutes(router)
	return svc, router, reg
}

func TestHealth(t *testing.T) {
	_, router, _ := newTestService(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownWorkspace_Returns404(t *testing.T) {
	_, router, _ := newTestService(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/workspace/does-not-exist/get-graph", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterWorkspace_ThenAddNode_QueuesMutation(t *testing.T) {
	_, router, _ := newTestService(t)

	workfile := filepath.Join(t.TempDir(), "flow.graphml")
	regBody, _ := json.Marshal(map[string]string{"path": workfile})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/workspace/register", bytes.NewReader(regBody))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var regResp struct {
		WorkspaceID string `json:"workspace_id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&regResp))
	require.NotEmpty(t, regResp.WorkspaceID)

	addBody, _ := json.Marshal(map[string]any{"label": "build"})
	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/workspace/"+regResp.WorkspaceID+"/add-node", bytes.NewReader(addBody))
	router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusAccepted, rec2.Code)
}

func TestAcceptMutation_DuplicateIdempotencyKeyIsFlagged(t *testing.T) {
	_, router, _ := newTestService(t)

	workfile := filepath.Join(t.TempDir(), "flow.graphml")
	regBody, _ := json.Marshal(map[string]string{"path": workfile})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/workspace/register", bytes.NewReader(regBody)))
	var regResp struct {
		WorkspaceID string `json:"workspace_id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&regResp))

	addBody, _ := json.Marshal(map[string]any{"label": "build", "idempotency_key": "key-1"})

	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, httptest.NewRequest(http.MethodPost, "/workspace/"+regResp.WorkspaceID+"/add-node", bytes.NewReader(addBody)))
	var first map[string]any
	require.NoError(t, json.NewDecoder(rec1.Body).Decode(&first))
	require.Nil(t, first["duplicate"])

	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, "/workspace/"+regResp.WorkspaceID+"/add-node", bytes.NewReader(addBody)))
	var second map[string]any
	require.NoError(t, json.NewDecoder(rec2.Body).Decode(&second))
	require.Equal(t, true, second["duplicate"])
}

func TestRun_RejectsCycleWith400(t *testing.T) {
	_, router, reg := newTestService(t)

	workfile := filepath.Join(t.TempDir(), "flow.graphml")
	e, err := reg.GetOrCreate(workfile, false)
	require.NoError(t, err)

	aID, err := e.Ctx.Store.AddNode("a", 0, 0, "")
	require.NoError(t, err)
	bID, err := e.Ctx.Store.AddNode("b", 0, 0, "")
	require.NoError(t, err)
	_, err = e.Ctx.Store.AddEdge(aID, bID, "blocking")
	require.NoError(t, err)
	_, err = e.Ctx.Store.AddEdge(bID, aID, "blocking")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/workspace/"+e.WorkspaceID+"/run", bytes.NewReader([]byte(`{}`)))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveAs_RejectsWhileRunActive(t *testing.T) {
	_, router, reg := newTestService(t)

	workfile := filepath.Join(t.TempDir(), "flow.graphml")
	e, err := reg.GetOrCreate(workfile, false)
	require.NoError(t, err)

	_, err = e.Ctx.Store.AddNode("a", 0, 0, "")
	require.NoError(t, err)

	_, _, err = e.Ctx.StartRun(nil)
	require.NoError(t, err)

	newPath := filepath.Join(t.TempDir(), "copy.graphml")
	body, _ := json.Marshal(map[string]string{"new_path": newPath})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/workspace/"+e.WorkspaceID+"/save-as", bytes.NewReader(body))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}
