package errutil_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/mintenance/surveyor/pkg/utils/errutil"
)

func TestHandleHTTP(t *testing.T) {
	t.Run("writes JSON error body with status", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := goerr.New("invalid image url", goerr.V("url", "ftp://x"))

		errutil.HandleHTTP(context.Background(), w, err, http.StatusBadRequest)

		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
		gt.Value(t, w.Header().Get("Content-Type")).Equal("application/json")

		var body map[string]string
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &body)).Required()
		gt.String(t, body["error"]).Contains("invalid image url")
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		errutil.HandleHTTP(context.Background(), w, nil, http.StatusInternalServerError)
		gt.Value(t, w.Body.Len()).Equal(0)
	})
}
