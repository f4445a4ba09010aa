package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeJSON reads a single JSON object from the body, rejecting unknown
// fields and anything larger than maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return badRequest("request body too large")
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDate),
			errors.Is(err, core.ErrInvalidAutopayDay):
			return err
		}
		return badRequest("invalid JSON: %v", err)
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// amountInput accepts an amount as a JSON number or a decimal string and
// applies the same rules as typed input.
type amountInput string

func (a *amountInput) UnmarshalJSON(b []byte) error {
	*a = amountInput(strings.Trim(string(b), `"`))
	return nil
}

func (a amountInput) Money() (core.Money, error) {
	return core.ParseAmount(string(a))
}

func queryDate(r *http.Request, key string) (*core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return nil, badRequest("%s: invalid date %q", key, v)
	}
	return &d, nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("%s: expected a non-negative integer", key)
	}
	return n, nil
}

func queryFloat(r *http.Request, key string) (float64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, badRequest("%s: expected a non-negative number", key)
	}
	return f, nil
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

func queryType(r *http.Request) (*core.TxType, error) {
	v := strings.TrimSpace(r.URL.Query().Get("type"))
	if v == "" || strings.EqualFold(v, "all") {
		return nil, nil
	}
	t, err := core.ParseTxType(v)
	if err != nil {
		return nil, badRequest("type: %v", err)
	}
	return &t, nil
}

// pathParam returns an unescaped route parameter, so categories such as
// "Rent/Mortgage" can be sent as "Rent%2FMortgage".
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
