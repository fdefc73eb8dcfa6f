package bind_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderdesk/config"
	"github.com/shashiranjanraj/orderdesk/pkg/bind"
)

type login struct {
	StaffID  string `json:"staffId"  validate:"required"`
	Password string `json:"password" validate:"required"`
}

func post(body string) (*httptest.ResponseRecorder, *http.Request) {
	return httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var in login
		w, r := post(`{"staffId":"staff","password":"secret"}`)
		errs, err := bind.JSON(w, r, &in)
		require.NoError(t, err)
		assert.Empty(t, errs)
		assert.Equal(t, "staff", in.StaffID)
	})

	t.Run("validation errors", func(t *testing.T) {
		var in login
		w, r := post(`{"staffId":"staff"}`)
		errs, err := bind.JSON(w, r, &in)
		require.NoError(t, err)
		assert.Contains(t, errs, "password")
		assert.NotContains(t, errs, "staffId")
	})

	t.Run("malformed", func(t *testing.T) {
		var in login
		w, r := post(`{"staffId":`)
		errs, err := bind.JSON(w, r, &in)
		assert.ErrorContains(t, err, "invalid JSON")
		assert.Nil(t, errs)
	})
}

func TestDecodeRejectsOversizedBody(t *testing.T) {
	prev := config.Current().MaxBodyBytes
	config.Override(func(s *config.Settings) { s.MaxBodyBytes = 16 })
	t.Cleanup(func() { config.Override(func(s *config.Settings) { s.MaxBodyBytes = prev }) })

	var in login
	w, r := post(`{"staffId":"a-very-long-staff-identifier"}`)
	assert.ErrorContains(t, bind.Decode(w, r, &in), "too large")
}
