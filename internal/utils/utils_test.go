// internal/utils/utils_test.go
package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	first := Paginate(items, PaginationParams{Page: 1, Limit: 2})
	assert.Equal(t, []int{1, 2}, first.Data)
	assert.Equal(t, 3, first.TotalPages)
	assert.EqualValues(t, 5, first.Total)

	last := Paginate(items, PaginationParams{Page: 3, Limit: 2})
	assert.Equal(t, []int{5}, last.Data)

	past := Paginate(items, PaginationParams{Page: 9, Limit: 2})
	assert.Empty(t, past.Data)
}

func TestGetLimitParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]int{"": 20, "5": 5, "0": 20, "abc": 20, "1000": 20}
	for q, want := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?limit="+q, nil)
		assert.Equal(t, want, GetLimitParam(c, 20, 500), q)
	}
}

func TestDomainErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		code int
	}{
		{apperr.NewValidationError("bad"), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", apperr.NewNotFoundError("school", "12")), http.StatusNotFound},
		{&apperr.NotReversibleError{EntryID: "a", Reason: "already reverted"}, http.StatusConflict},
		{&apperr.SourceUnavailableError{}, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		DomainErrorResponse(c, tc.err)

		assert.Equal(t, tc.code, w.Code, tc.err.Error())
		var body APIResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		require.NotNil(t, body.Error)
	}
}

func TestValidate(t *testing.T) {
	type req struct {
		Role   string `validate:"user_role"`
		Status string `validate:"school_status"`
		Reason string `validate:"required,notblank"`
	}

	err := Validate(&req{Role: "Nope", Status: "Closed", Reason: "  "}, "invalid request")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Len(t, GetValidationErrors(err), 3)

	assert.NoError(t, Validate(&req{Role: string(models.UserRoleTeacher), Status: string(models.SchoolStatusActive), Reason: "ok"}, "invalid"))
}

func TestDomainErrorResponseListsViolations(t *testing.T) {
	gin.SetMode(gin.TestMode)
	type req struct {
		Reason string `validate:"required,notblank"`
	}
	err := Validate(&req{Reason: " "}, "invalid request")
	require.Error(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPut, "/", nil)
	DomainErrorResponse(c, fmt.Errorf("wrap: %w", err))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error struct {
			Code    string                  `json:"code"`
			Details []apperr.FieldViolation `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	require.Len(t, body.Error.Details, 1)
	assert.Equal(t, "reason", body.Error.Details[0].Field)
	assert.Equal(t, "notblank", body.Error.Details[0].Tag)
}

func TestGetActorFromContext(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetActorFromContext(c)
	assert.False(t, ok)

	c.Set("actor_id", "ops-1")
	c.Set("actor_name", "Ops")
	actor, ok := GetActorFromContext(c)
	assert.True(t, ok)
	assert.Equal(t, models.Actor{ID: "ops-1", Name: "Ops"}, actor)
}
