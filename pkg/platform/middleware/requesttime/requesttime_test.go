package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"courtside/pkg/requestcontext"
)

func TestMiddlewareStampsRequest(t *testing.T) {
	var first, second time.Time
	var ok bool
	handler := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		first, ok = requestcontext.NowIfSet(r.Context())
		second = requestcontext.Now(r.Context())
	}))

	before := time.Now()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, ok)
	assert.Equal(t, first, second, "one time per request")
	assert.False(t, first.Before(before))
}
