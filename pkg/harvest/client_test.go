package harvest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logging.NewNop()
	return NewClient(Config{
		BaseURL:   server.URL + "/v2/",
		Auth:      "Bearer token",
		AccountID: "42",
		UserAgent: "fern-test",
	}, httpclient.NewClient(httpclient.DefaultConfig("harvest"), logger), logger)
}

func TestClient_TimeEntries_WalksPages(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var pages []string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/time_entries", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "42", r.Header.Get("Harvest-Account-ID"))
		assert.Equal(t, "fern-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "false", r.URL.Query().Get("is_running"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		assert.Equal(t, "2024-03-01T00:00:00Z", r.URL.Query().Get("updated_since"))

		page := r.URL.Query().Get("page")
		pages = append(pages, page)

		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "1":
			fmt.Fprint(w, `{"time_entries":[{"id":1,"spent_date":"2024-03-04","hours":2.5,"billable":true,"billable_rate":150.0,
				"user":{"id":10,"name":"Ada Lovelace"},"client":{"id":20,"name":"Acme"},
				"project":{"id":30,"name":"Engine","code":"ENG"},"task":{"id":40,"name":"Build"},
				"created_at":"2024-03-04T10:00:00Z","updated_at":"2024-03-04T11:00:00Z"}],
				"page":1,"total_pages":2,"next_page":2}`)
		case "2":
			fmt.Fprint(w, `{"time_entries":[{"id":2,"spent_date":"2024-03-05","hours":1,"billable":false,"billable_rate":null,
				"user":{"id":10,"name":"Ada Lovelace"},"client":{"id":20,"name":"Acme"},
				"project":{"id":30,"name":"Engine","code":"ENG"},"task":{"id":40,"name":"Build"},
				"created_at":"2024-03-05T10:00:00Z","updated_at":"2024-03-05T11:00:00Z"},
				{"id":3,"hours":1}],
				"page":2,"total_pages":2,"next_page":null}`)
		default:
			t.Errorf("unexpected page %s", page)
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	batch, err := client.TimeEntries(context.Background(), since)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, pages)
	require.Len(t, batch.Records, 2)
	first := batch.Records[0]
	assert.Equal(t, int64(1), first.ID)
	assert.True(t, decimal.NewFromFloat(2.5).Equal(first.Hours))
	assert.True(t, first.BillableRate.Valid)
	assert.Equal(t, "ENG", first.Project.Code)
	assert.Equal(t, "2024-03-04", first.SpentDate.String())
	assert.False(t, batch.Records[1].BillableRate.Valid)

	require.Len(t, batch.Rejections, 1)
	assert.Equal(t, "3", batch.Rejections[0].Key)
}

func TestClient_Users_FullLoadOmitsUpdatedSince(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["updated_since"]
		assert.False(t, present)
		fmt.Fprint(w, `{"users":[{"id":7,"first_name":"Grace","last_name":"Hopper","roles":["Technology"],
			"weekly_capacity":126000,"is_active":true,"updated_at":"2024-01-01T00:00:00Z"}],"next_page":null}`)
	})

	batch, err := client.Users(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, []string{"Technology"}, batch.Records[0].Roles)
	require.NotNil(t, batch.Records[0].WeeklyCapacity)
	assert.Equal(t, int64(126000), *batch.Records[0].WeeklyCapacity)
}

func TestClient_Projects_NullClient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"projects":[{"id":5,"name":"Internal","code":null,"client":null,"budget":null,
			"starts_on":null,"updated_at":"2024-01-01T00:00:00Z"}],"next_page":null}`)
	})

	batch, err := client.Projects(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Nil(t, batch.Records[0].Client)
	assert.False(t, batch.Records[0].Budget.Valid)
	assert.True(t, batch.Records[0].StartsOn.IsZero())
}

func TestClient_AuthFailureIsFatal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_token"}`)
	})

	_, err := client.Clients(context.Background(), time.Time{})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, httperror.GetStatusCode(err))
}

func TestClient_PaginationMustAdvance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tasks":[],"next_page":1}`)
	})

	_, err := client.Tasks(context.Background(), time.Time{})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, httperror.GetStatusCode(err))
}
