package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/apperror"
)

func render(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Error(c, err)
	return w
}

func TestErrorRendersKindAndField(t *testing.T) {
	sentinel := apperror.NewField(apperror.KindValidation, "guest_count", "guest count exceeds property capacity")
	w := render(apperror.Detail(sentinel, "guest count 6 exceeds capacity 4"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "guest count 6 exceeds capacity 4", body.Error)
	assert.Equal(t, "validation", body.Kind)
	assert.Equal(t, "guest_count", body.Field)
}

func TestErrorHidesInternalErrors(t *testing.T) {
	w := render(errors.New("connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestPageResponseNeverNull(t *testing.T) {
	resp := NewPageResponse[string](nil, 1, 20, 0)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"page":1,"page_size":20,"total":0}`, string(raw))
}
