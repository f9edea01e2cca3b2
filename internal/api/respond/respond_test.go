package respond

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reverie-ai/reverie/internal/model"
)

func TestWriteServiceErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: no such thread", model.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad username", model.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: duplicate path", model.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: backend down", model.ErrDependency), http.StatusBadGateway},
		{fmt.Errorf("%w: bad envelope", model.ErrMalformedOutput), http.StatusInternalServerError},
		{fmt.Errorf("plain failure"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		WriteServiceError(rr, tc.err)
		if rr.Code != tc.want {
			t.Errorf("WriteServiceError(%v) = %d, want %d", tc.err, rr.Code, tc.want)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
	}
}
