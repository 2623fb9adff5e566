package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aire-xalapa/aire/internal/region"
)

var validate = newValidator()

// newValidator reports fields by their json name, which for query structs
// is the query parameter name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	return v
}

// Accepted query timestamp layouts. Layouts without an offset are read in
// the region's local time.
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, region.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// intParam reads an integer query parameter, returning def when absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

// timeParam reads an optional timestamp query parameter.
func timeParam(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &t, nil
}

// readingsQuery holds the parameters of GET /api/air-quality. Start and
// End are zero unless both bounds were given.
type readingsQuery struct {
	Start  time.Time `json:"start_time"`
	End    time.Time `json:"end_time" validate:"omitempty,gtefield=Start"`
	Limit  int       `json:"limit" validate:"gte=1,lte=1000"`
	Offset int       `json:"offset" validate:"gte=0"`
	Source string    `json:"source" validate:"omitempty,max=32"`
}

// Ranged reports whether both bounds were given.
func (q readingsQuery) Ranged() bool {
	return !q.Start.IsZero() && !q.End.IsZero()
}

func bindReadingsQuery(r *http.Request) (readingsQuery, error) {
	var q readingsQuery

	start, err := timeParam(r, "start_time")
	if err != nil {
		return q, err
	}
	end, err := timeParam(r, "end_time")
	if err != nil {
		return q, err
	}
	if start != nil && end != nil {
		q.Start, q.End = *start, *end
	}
	if q.Limit, err = intParam(r, "limit", 10); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(r, "offset", 0); err != nil {
		return q, err
	}
	q.Source = strings.TrimSpace(r.URL.Query().Get("source"))

	return q, validateStruct(q)
}

// historyQuery holds the parameters of GET /api/air-quality/history.
type historyQuery struct {
	Start time.Time `json:"start_time" validate:"required"`
	End   time.Time `json:"end_time" validate:"required,gtefield=Start"`
}

func bindHistoryQuery(r *http.Request) (historyQuery, error) {
	var q historyQuery

	start, err := timeParam(r, "start_time")
	if err != nil {
		return q, err
	}
	end, err := timeParam(r, "end_time")
	if err != nil {
		return q, err
	}
	if start == nil || end == nil {
		return q, errors.New("start_time and end_time are required")
	}
	q.Start, q.End = *start, *end
	return q, validateStruct(q)
}

// dailyQuery holds the parameters of GET /api/air-quality/history/daily.
type dailyQuery struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Limit  int    `json:"limit" validate:"gte=1,lte=1000"`
	Offset int    `json:"offset" validate:"gte=0"`
}

// Bounds returns the first and last instant of the day in the region's
// local time.
func (q dailyQuery) Bounds() (time.Time, time.Time) {
	day, _ := time.ParseInLocation("2006-01-02", q.Date, region.Location())
	return day, day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func bindDailyQuery(r *http.Request) (dailyQuery, error) {
	q := dailyQuery{Date: strings.TrimSpace(r.URL.Query().Get("date"))}
	var err error

	if q.Limit, err = intParam(r, "limit", 100); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(r, "offset", 0); err != nil {
		return q, err
	}
	return q, validateStruct(q)
}

// predictionsQuery holds the parameters of GET /api/predictions.
type predictionsQuery struct {
	QuadrantName string `json:"quadrant_name" validate:"omitempty,max=32"`
	Limit        int    `json:"limit" validate:"gte=1,lte=100"`
}

func bindPredictionsQuery(r *http.Request) (predictionsQuery, error) {
	q := predictionsQuery{QuadrantName: strings.TrimSpace(r.URL.Query().Get("quadrant_name"))}
	var err error

	if q.Limit, err = intParam(r, "limit", 10); err != nil {
		return q, err
	}
	return q, validateStruct(q)
}

// validateStruct runs struct validation and flattens the first failure into
// a readable message.
func validateStruct(q any) error {
	err := validate.Struct(q)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Errorf("invalid %s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("invalid %s: failed %s", fe.Field(), fe.Tag())
	}
	return err
}
