package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/finals-finder/internal/models"
)

type recordingObserver struct {
	outcomes map[string]string
}

func (r *recordingObserver) ObserveUpstream(endpoint, outcome string, _ time.Duration) {
	if r.outcomes == nil {
		r.outcomes = map[string]string{}
	}
	r.outcomes[endpoint] = outcome
}

func TestEncodeSearchParamsOmitsUnsetValues(t *testing.T) {
	assert.Equal(t, "", EncodeSearchParams(models.ExamSearchParams{}))

	qs := EncodeSearchParams(models.ExamSearchParams{
		ExamFilter: models.ExamFilter{Query: "calc 9", Location: "SSC"},
		Page:       2,
	})
	assert.Equal(t, "location=SSC&page=2&q=calc+9", qs)
}

func TestFetchExamsBuildsQueryAndDecodes(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"subject":"MATH","course_number":"009B","section":"020","crn":"33515","course_name":"FIRST-YEAR CALCULUS","start_time":"2025-12-08T08:00:00","end_time":"2025-12-08T11:00:00","location":"BRNHL A125","term_code":"202540"}],"pagination":{"page":1,"limit":20,"total":1,"hasMore":false}}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := NewExamsClient(srv.URL+"/api/", srv.Client(), obs, zap.NewNop())

	resp, err := c.FetchExams(context.Background(), models.ExamSearchParams{
		ExamFilter: models.ExamFilter{Date: "2025-12-08"},
		Page:       1,
		Limit:      20,
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/exams", gotPath)
	assert.Equal(t, "date=2025-12-08&limit=20&page=1", gotQuery)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "33515", resp.Data[0].CRN)
	assert.Equal(t, models.Pagination{Page: 1, Limit: 20, Total: 1, HasMore: false}, resp.Pagination)
	assert.Equal(t, "ok", obs.outcomes[EndpointExams])
}

func TestFetchExamsWithoutParamsHasNoQueryString(t *testing.T) {
	var rawURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawURL = r.URL.String()
		_, _ = w.Write([]byte(`{"data":[],"pagination":{"page":1,"limit":20,"total":0,"hasMore":false}}`))
	}))
	defer srv.Close()

	c := NewExamsClient(srv.URL, srv.Client(), nil, nil)
	resp, err := c.FetchExams(context.Background(), models.ExamSearchParams{})
	require.NoError(t, err)
	assert.Equal(t, "/exams", rawURL)
	assert.Empty(t, resp.Data)
}

func TestFetchErrorCarriesStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := NewExamsClient(srv.URL, srv.Client(), obs, nil)

	for name, call := range map[string]func() error{
		EndpointExams: func() error {
			_, err := c.FetchExams(context.Background(), models.ExamSearchParams{})
			return err
		},
		EndpointDates: func() error {
			_, err := c.FetchDates(context.Background())
			return err
		},
		EndpointLocations: func() error {
			_, err := c.FetchLocations(context.Background())
			return err
		},
	} {
		err := call()
		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr), name)
		assert.Equal(t, name, fetchErr.Endpoint)
		assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
		assert.Equal(t, "Service Unavailable", fetchErr.Status)
		assert.Contains(t, err.Error(), "Service Unavailable")
		assert.Equal(t, "status_503", obs.outcomes[name])
	}
}

func TestFetchDatesTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := NewExamsClient(srv.URL, &http.Client{Timeout: time.Second}, nil, nil)
	_, err := c.FetchDates(context.Background())

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, fetchErr.Status)
	assert.NotNil(t, fetchErr.Unwrap())
}

func TestFetchLocationsDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/filters/locations", r.URL.Path)
		assert.Equal(t, "req-42", r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{"data":[{"building":"BRNHL","rooms":["BRNHL A125"]},{"building":"SSC","rooms":["SSC 235","SSC 335"]}]}`))
	}))
	defer srv.Close()

	c := NewExamsClient(srv.URL, srv.Client(), nil, nil)
	resp, err := c.FetchLocations(WithRequestID(context.Background(), "req-42"))
	require.NoError(t, err)
	assert.Equal(t, []string{"BRNHL", "SSC"}, resp.Buildings())
}
