package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/siae-sistema/cardlink/internal/capture"
	"github.com/siae-sistema/cardlink/internal/models"
	"github.com/siae-sistema/cardlink/internal/storage"
	"github.com/stretchr/testify/require"
)

type fakeLinker struct {
	mu    sync.Mutex
	links map[string]string
	err   error
}

func (l *fakeLinker) LinkCard(ctx context.Context, studentID, uid string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.links[studentID] = uid
	return nil
}

func (l *fakeLinker) linked(studentID string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.links[studentID]
}

type station struct {
	t      *testing.T
	srv    *httptest.Server
	linker *fakeLinker
	h      *Handler
}

func startStation(t *testing.T) *station {
	t.Helper()
	reg := prometheus.NewRegistry()
	linker := &fakeLinker{links: map[string]string{}}
	h := New(capture.Config{
		UIDLength:     8,
		Debounce:      20 * time.Millisecond,
		FocusInterval: 20 * time.Millisecond,
	}, linker, reg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()

	srv := httptest.NewServer(h.Routes(reg))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &station{t: t, srv: srv, linker: linker, h: h}
}

func (s *station) do(method, path string, body any) *http.Response {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, r)
	require.NoError(s.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *station) create(studentID string) models.Enrollment {
	s.t.Helper()
	resp := s.do("POST", "/api/enrollments", createEnrollmentRequest{StudentID: studentID, StudentName: "Ana"})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode)
	var e models.Enrollment
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&e))
	return e
}

func (s *station) get(id string) enrollmentView {
	s.t.Helper()
	resp := s.do("GET", "/api/enrollments/"+id, nil)
	require.Equal(s.t, http.StatusOK, resp.StatusCode)
	var v enrollmentView
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// tap submits a whole burst and waits for the station to consume it.
func (s *station) tap(id, value string) {
	s.t.Helper()
	resp := s.do("POST", "/api/enrollments/"+id+"/input", inputRequest{Value: value})
	require.Equal(s.t, http.StatusNoContent, resp.StatusCode)
	require.Eventually(s.t, func() bool {
		v := s.get(id)
		return v.Snapshot == nil || v.Snapshot.Pending == ""
	}, time.Second, 5*time.Millisecond)
}

func TestEnrollmentLinksCard(t *testing.T) {
	s := startStation(t)
	e := s.create("A0001")
	require.Equal(t, models.EnrollmentCapturing, e.Status)

	s.tap(e.ID, "29115803")
	v := s.get(e.ID)
	require.NotNil(t, v.Snapshot)
	require.Equal(t, 1, v.Snapshot.Count)

	s.tap(e.ID, "29115803")
	s.tap(e.ID, "29115803AB")

	require.Eventually(t, func() bool {
		return s.get(e.ID).Status == models.EnrollmentLinked
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "29115803", s.linker.linked("A0001"))

	v = s.get(e.ID)
	require.Equal(t, "29115803", v.UID)
	require.Nil(t, v.Snapshot)

	s.create("A0002")
}

func TestEnrollmentMismatchKeepsCapturing(t *testing.T) {
	s := startStation(t)
	e := s.create("A0001")

	s.tap(e.ID, "29115803")
	s.tap(e.ID, "29115803")
	s.tap(e.ID, "29115804")

	v := s.get(e.ID)
	require.Equal(t, models.EnrollmentCapturing, v.Status)
	require.NotNil(t, v.Snapshot)
	require.Equal(t, 0, v.Snapshot.Count)
	require.Equal(t, capture.MismatchMessage, v.Snapshot.LastError)
	require.Empty(t, s.linker.linked("A0001"))
}

func TestEnrollmentLinkFailure(t *testing.T) {
	s := startStation(t)
	s.linker.mu.Lock()
	s.linker.err = storage.ErrCardTaken
	s.linker.mu.Unlock()
	e := s.create("A0001")

	for range capture.RequiredReads {
		s.tap(e.ID, "29115803")
	}

	require.Eventually(t, func() bool {
		return s.get(e.ID).Status == models.EnrollmentFailed
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "Card is already linked to another student", s.get(e.ID).Error)

	s.create("A0001")
}

func TestOneEnrollmentAtATime(t *testing.T) {
	s := startStation(t)
	e := s.create("A0001")

	resp := s.do("POST", "/api/enrollments", createEnrollmentRequest{StudentID: "A0002"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do("DELETE", "/api/enrollments/"+e.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, models.EnrollmentClosed, s.get(e.ID).Status)

	resp = s.do("POST", "/api/enrollments/"+e.ID+"/input", inputRequest{Value: "29115803"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	s.create("A0002")
}

func TestLinkAfterCloseIsDropped(t *testing.T) {
	s := startStation(t)
	e := s.create("A0001")

	resp := s.do("DELETE", "/api/enrollments/"+e.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A UID accepted just before the close finishes its link afterwards.
	s.h.link(e.ID, "29115803")
	s.h.link("missing", "29115803")

	require.Empty(t, s.linker.linked("A0001"))
	v := s.get(e.ID)
	require.Equal(t, models.EnrollmentClosed, v.Status)
	require.Empty(t, v.UID)
	require.False(t, s.h.ctrl.Snapshot().Saving)

	next := s.create("A0002")
	require.Equal(t, models.EnrollmentCapturing, next.Status)
}

func TestEnrollmentRequestErrors(t *testing.T) {
	s := startStation(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"missing student", "POST", "/api/enrollments", createEnrollmentRequest{StudentName: "Ana"}, http.StatusBadRequest},
		{"unknown enrollment", "GET", "/api/enrollments/nope", nil, http.StatusNotFound},
		{"delete unknown", "DELETE", "/api/enrollments/nope", nil, http.StatusNotFound},
		{"input unknown", "POST", "/api/enrollments/nope/input", inputRequest{Value: "1"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestStationWebsocket(t *testing.T) {
	s := startStation(t)

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/station/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func(want string) message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		for {
			var msg message
			require.NoError(t, conn.ReadJSON(&msg))
			if msg.Type == want {
				return msg
			}
		}
	}

	first := read(msgSnapshot)
	require.False(t, first.Snapshot.Open)

	e := s.create("A0001")
	read(msgFocus)

	for range capture.RequiredReads {
		require.NoError(t, conn.WriteJSON(inbound{Type: msgInput, Value: "29115803"}))
		for {
			msg := read(msgSnapshot)
			if msg.Snapshot.Pending == "" && msg.Snapshot.Count > 0 || msg.Snapshot.Phase == capture.PhaseAccepted {
				break
			}
		}
	}

	for {
		msg := read(msgEnrollment)
		if msg.Enrollment.Status == models.EnrollmentLinked {
			require.Equal(t, e.ID, msg.Enrollment.ID)
			break
		}
	}
	require.Equal(t, "29115803", s.linker.linked("A0001"))
}

func TestStationDismiss(t *testing.T) {
	s := startStation(t)

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/station/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	e := s.create("A0001")
	require.NoError(t, conn.WriteJSON(inbound{Type: msgDismiss}))

	require.Eventually(t, func() bool {
		return s.get(e.ID).Status == models.EnrollmentClosed
	}, time.Second, 5*time.Millisecond)
}

func TestAmbientRoutes(t *testing.T) {
	s := startStation(t)
	e := s.create("A0001")
	s.tap(e.ID, "2911580Z")

	resp := s.do("GET", "/healthcheck", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do("GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `cardlink_capture_bursts_total{outcome="malformed"} 1`)

	resp = s.do("GET", "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "/station.js")
}

func TestLinkErrorMessage(t *testing.T) {
	require.Equal(t, "Student not found", linkErrorMessage(storage.ErrStudentNotFound))
	require.Equal(t, "Student already has a linked card", linkErrorMessage(storage.ErrStudentHasCard))
	require.Equal(t, "boom", linkErrorMessage(errors.New("boom")))
}
