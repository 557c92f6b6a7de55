package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_List(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		expectedCode  int
		expectedCount int
	}{
		{name: "default limit", query: "", expectedCode: http.StatusOK, expectedCount: 3},
		{name: "explicit limit", query: "?limit=2", expectedCode: http.StatusOK, expectedCount: 2},
		{name: "invalid limit", query: "?limit=zero", expectedCode: http.StatusBadRequest},
		{name: "negative limit", query: "?limit=-4", expectedCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			repo := NewRepositoryStub()
			runId := uuid.New()
			for _, recipient := range []string{"a@example.edu", "b@example.edu", "c@example.edu"} {
				_, err := repo.Store(context.Background(), Record{RunId: runId, Report: "pi-weekly", Recipient: recipient, Status: StatusSent, Attempts: 1})
				require.NoError(t, err)
			}
			handler := NewHandler(repo)
			req := httptest.NewRequest("GET", "/api/deliveries"+tt.query, nil)
			rr := httptest.NewRecorder()

			// when
			handler.List(rr, req)

			// then
			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedCode != http.StatusOK {
				return
			}
			var dtos []RecordDTO
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&dtos))
			require.Len(t, dtos, tt.expectedCount)
			assert.Equal(t, "c@example.edu", dtos[0].Recipient)
			assert.Equal(t, runId.String(), dtos[0].RunId)
		})
	}
}
