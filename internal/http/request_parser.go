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

	"fambudget/internal/core"
	"fambudget/internal/services"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("empty request body")
		case errors.As(err, &maxErr):
			return errors.New("request body too large")
		default:
			return fmt.Errorf("malformed JSON: %v", err)
		}
	}
	if dec.More() {
		return errors.New("request body must hold a single JSON object")
	}
	return nil
}

// queryInt parses an optional integer parameter; 0 when absent.
func queryInt(q url.Values, key string) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.Invalid(fmt.Errorf("%s must be a number", key))
	}
	return n, nil
}

// queryDate parses an optional YYYY-MM-DD parameter.
func queryDate(q url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.Invalid(fmt.Errorf("%s: %v", key, err))
	}
	return d, nil
}

// ParseListOptions reads limit, order (asc|desc), month and year.
func ParseListOptions(q url.Values) (services.ListOptions, error) {
	var opts services.ListOptions
	var err error
	if opts.Limit, err = queryInt(q, "limit"); err != nil {
		return opts, err
	}
	if opts.Limit < 0 {
		return opts, core.Invalid(errors.New("limit must not be negative"))
	}
	switch strings.ToLower(strings.TrimSpace(q.Get("order"))) {
	case "", "desc":
	case "asc":
		opts.Ascending = true
	default:
		return opts, core.Invalid(errors.New("order must be asc or desc"))
	}
	if opts.Month, err = queryInt(q, "month"); err != nil {
		return opts, err
	}
	if opts.Year, err = queryInt(q, "year"); err != nil {
		return opts, err
	}
	return opts, nil
}

// ParsePeriod reads either date or month and year.
func ParsePeriod(q url.Values) (services.Period, error) {
	var p services.Period
	var err error
	if p.Date, err = queryDate(q, "date"); err != nil {
		return p, err
	}
	if p.Month, err = queryInt(q, "month"); err != nil {
		return p, err
	}
	if p.Year, err = queryInt(q, "year"); err != nil {
		return p, err
	}
	return p, nil
}

// ParseKind reads a required movement kind.
func ParseKind(q url.Values) (core.Kind, error) {
	k, err := core.ParseKind(strings.TrimSpace(q.Get("kind")))
	if err != nil {
		return "", core.Invalid(err)
	}
	return k, nil
}

// ParseBalanceQuery reads start, end and scope (user|family, default user).
func ParseBalanceQuery(q url.Values, userID string) (services.BalanceQuery, error) {
	bq := services.BalanceQuery{UserID: userID}
	var err error
	if bq.Start, err = queryDate(q, "start"); err != nil {
		return bq, err
	}
	if bq.End, err = queryDate(q, "end"); err != nil {
		return bq, err
	}
	switch scope := core.Scope(strings.ToLower(strings.TrimSpace(q.Get("scope")))); scope {
	case "", core.ScopeUser:
		bq.Scope = core.ScopeUser
	case core.ScopeFamily:
		bq.Scope = scope
	default:
		return bq, core.Invalid(fmt.Errorf("unknown scope %q", scope))
	}
	return bq, nil
}
