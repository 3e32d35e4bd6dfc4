package shared

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idsRequest struct {
	QuestionIDs []uuid.UUID `json:"questionIds" validate:"required,min=1"`
	Status      string      `json:"status"      validate:"omitempty,oneof=approved rejected"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid json", body: `{"questionIds":["` + uuid.NewString() + `"],"status":"approved"}`},
		{name: "trailing comma", body: `{"questionIds":[],}`, wantErr: true},
		{name: "empty body", body: "", wantErr: true},
		{name: "unknown field", body: `{"questionIds":[],"extra":1}`, wantErr: true},
		{name: "bad uuid", body: `{"questionIds":["nope"]}`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tc.body))
			var target idsRequest
			err := DecodeJSON(req, &target)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, target.QuestionIDs, 1)
		})
	}
}

type errorReader struct{}

func (errorReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestDecodeJSONWithReadError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", errorReader{})
	var target idsRequest
	assert.ErrorIs(t, DecodeJSON(req, &target), io.ErrUnexpectedEOF)
}

type selfValidating struct{ ok bool }

func (s selfValidating) Validate() error {
	if !s.ok {
		return errors.New("not ok")
	}
	return nil
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(&idsRequest{QuestionIDs: []uuid.UUID{uuid.New()}}))
	assert.Error(t, ValidateRequest(&idsRequest{}))
	assert.Error(t, ValidateRequest(&idsRequest{QuestionIDs: []uuid.UUID{uuid.New()}, Status: "maybe"}))

	assert.NoError(t, ValidateRequest(selfValidating{ok: true}))
	assert.EqualError(t, ValidateRequest(selfValidating{}), "not ok")
}
