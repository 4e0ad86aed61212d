package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/siae-sistema/cardlink/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestLinkCard(t *testing.T) {
	var got linkRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/nfc", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"nfc_uid":"29115803","matricula_estudiante":"A0001"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", time.Second)
	require.NoError(t, c.LinkCard(context.Background(), "A0001", "29115803"))
	require.Equal(t, linkRequest{UID: "29115803", StudentID: "A0001"}, got)
}

func TestLinkCardErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		detail  string
	}{
		{
			name:    "unknown student",
			status:  http.StatusNotFound,
			body:    `{"detail":"La matrícula 'A9' no existe. No se puede vincular la tarjeta."}`,
			wantErr: storage.ErrStudentNotFound,
			detail:  "La matrícula 'A9' no existe. No se puede vincular la tarjeta.",
		},
		{
			name:    "uid already linked",
			status:  http.StatusBadRequest,
			body:    `{"detail":"El NFC UID '29115803' ya está registrado y vinculado a otra matrícula."}`,
			wantErr: storage.ErrCardTaken,
		},
		{
			name:    "student has a card",
			status:  http.StatusBadRequest,
			body:    `{"detail":"El estudiante 'A0001' ya tiene una tarjeta NFC vinculada."}`,
			wantErr: storage.ErrStudentHasCard,
		},
		{
			name:   "plain text failure",
			status: http.StatusInternalServerError,
			body:   "boom\n",
			detail: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewClient(srv.URL, "", time.Second).LinkCard(context.Background(), "A0001", "29115803")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.status, apiErr.Status)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
			if tt.detail != "" {
				require.Equal(t, tt.detail, apiErr.Detail)
			}
		})
	}
}

func TestRegisterAccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/asistencia/registrar-nfc", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))

		var req accessRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.UID {
		case "29115803":
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":42,"tipo":"entrada","timestamp":"2026-03-02T08:15:00.5-06:00"}`))
		case "AABBCCDD":
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"detail":"Ya se registró un acceso hoy."}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Tarjeta NFC no reconocida o no vinculada."}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	ctx := context.Background()

	access, err := c.RegisterAccess(ctx, "29115803")
	require.NoError(t, err)
	require.Equal(t, uint(42), access.ID)
	require.Equal(t, "2026-03-02", access.Day)
	require.Equal(t, "29115803", access.CardUID)

	_, err = c.RegisterAccess(ctx, "AABBCCDD")
	require.ErrorIs(t, err, storage.ErrDuplicateAccess)

	_, err = c.RegisterAccess(ctx, "DEADBEEF")
	require.ErrorIs(t, err, storage.ErrCardNotFound)
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClient(url, "", time.Second).LinkCard(context.Background(), "A0001", "29115803")
	require.Error(t, err)
	var apiErr *APIError
	require.False(t, errors.As(err, &apiErr))
}
