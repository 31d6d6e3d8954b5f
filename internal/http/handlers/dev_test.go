package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postDev(h *DevHandler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.SimulateMessage(rec, httptest.NewRequest(http.MethodPost, "/api/dev/message", strings.NewReader(body)))
	return rec
}

func TestDevSimulateMessage(t *testing.T) {
	engine := &fakeProcessor{reply: "When works for you?"}
	h := NewDevHandler(engine, &fakePause{}, nil)

	rec := postDev(h, `{"from":"+15551234567","body":"book me in"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DevMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "When works for you?", resp.Reply)
	assert.Equal(t, []string{"+15551234567|book me in"}, engine.calls)
}

func TestDevSimulatePaused(t *testing.T) {
	engine := &fakeProcessor{reply: "should not run"}
	h := NewDevHandler(engine, &fakePause{paused: true}, nil)

	rec := postDev(h, `{"from":"+15551234567","body":"hello"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DevMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Agent is currently paused.", resp.Reply)
	assert.Empty(t, engine.calls)
}

func TestDevSimulateEngineError(t *testing.T) {
	h := NewDevHandler(&fakeProcessor{err: errors.New("db down")}, nil, nil)

	rec := postDev(h, `{"from":"+15551234567","body":"hello"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DevMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "db down", resp.Error)
	assert.Empty(t, resp.Reply)
}

func TestDevSimulateValidation(t *testing.T) {
	h := NewDevHandler(&fakeProcessor{}, nil, nil)

	rec := postDev(h, `{"from":"","body":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postDev(h, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
