package httpapi_test

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/eventstore/memengine"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/addpurchaseorder"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/createlot"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/purchasevehicle"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/sellvehicle"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/sendvehicletolot"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/updatelot"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/query/lotsummary"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/query/vehiclesummary"
	"github.com/rkamradt/vehicleevent/vehicleevent/httpapi"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/lotdirectory"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/projectionstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/publisher"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/subscription"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type api struct {
	router         *gin.Engine
	vehicleUpdates *subscription.Registry[vehiclesummary.VehicleSummary]
}

func givenAPI(t *testing.T, opts ...httpapi.Option) api {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := memengine.NewEventStore()

	pub, err := publisher.NewPublisher()
	require.NoError(t, err)
	go func() { _ = pub.Run(ctx) }()
	t.Cleanup(pub.Close)

	vehicleUpdates, err := subscription.NewRegistry[vehiclesummary.VehicleSummary]()
	require.NoError(t, err)
	t.Cleanup(vehicleUpdates.Close)

	lotUpdates, err := subscription.NewRegistry[lotsummary.LotSummary]()
	require.NoError(t, err)
	t.Cleanup(lotUpdates.Close)

	vehicles := projectionstore.NewMemoryStore(vehiclesummary.Columns())
	lots := projectionstore.NewMemoryStore(lotsummary.Columns())
	vehiclesummary.NewProjection(vehicles, vehicleUpdates).Register(pub)
	lotsummary.NewProjection(lots, lotUpdates).Register(pub)

	vehicleRuntime, err := shell.NewRuntime(log, core.ApplyVehicleEvent, core.VehicleState{},
		shell.WithPublisher[core.VehicleState](pub))
	require.NoError(t, err)

	lotRuntime, err := shell.NewRuntime(log, core.ApplyLotEvent, core.LotState{},
		shell.WithPublisher[core.LotState](pub))
	require.NoError(t, err)

	orderRuntime, err := shell.NewRuntime(log, core.ApplyPurchaseOrderEvent, core.PurchaseOrderState{},
		shell.WithPublisher[core.PurchaseOrderState](pub))
	require.NoError(t, err)

	directory := lotdirectory.NewProjectionDirectory(lots, lotsummary.NameColumn, lotsummary.ToLot)

	router := httpapi.NewRouter(httpapi.Handlers{
		PurchaseVehicle:  purchasevehicle.NewCommandHandler(vehicleRuntime),
		SendVehicleToLot: sendvehicletolot.NewCommandHandler(vehicleRuntime, directory),
		SellVehicle:      sellvehicle.NewCommandHandler(vehicleRuntime),
		CreateLot:        createlot.NewCommandHandler(lotRuntime),
		UpdateLot:        updatelot.NewCommandHandler(lotRuntime),
		AddPurchaseOrder: addpurchaseorder.NewCommandHandler(orderRuntime),
		VehicleSummary:   vehiclesummary.NewQueryHandler(vehicles),
		LotSummary:       lotsummary.NewQueryHandler(lots),
		LotList:          lotsummary.NewListHandler(lots),
		VehicleUpdates:   vehicleUpdates,
		LotUpdates:       lotUpdates,
	}, opts...)

	return api{router: router, vehicleUpdates: vehicleUpdates}
}

func (a api) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())

	return v
}

func Test_API_PurchaseVehicle_ReturnsIDAndVersion(t *testing.T) {
	// arrange
	a := givenAPI(t)

	// act
	rec := a.do(t, http.MethodPost, "/vehicle", `{"id":"v1","price":25000.00,"type":"sedan"}`)

	// assert
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":"v1","version":1}`, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get(shell.HeaderRequestID), shell.RequestIDPrefix))
}

func Test_API_PurchaseVehicle_GeneratesMissingID(t *testing.T) {
	// arrange
	a := givenAPI(t)

	// act
	rec := a.do(t, http.MethodPost, "/vehicle", `{"price":"1.00","type":"coupe"}`)

	// assert
	require.Equal(t, http.StatusCreated, rec.Code)
	response := decode[httpapi.CommandResponse](t, rec)
	assert.NotEmpty(t, response.ID)
	assert.Equal(t, eventstore.SequenceNumberUint(1), response.Version)
}

func Test_API_Errors(t *testing.T) {
	testCases := []struct {
		name        string
		method      string
		path        string
		body        string
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:   "price zero",
			method: http.MethodPost, path: "/vehicle", body: `{"id":"v2","price":0,"type":"sedan"}`,
			wantStatus: http.StatusBadRequest, wantCode: httpapi.CodeValidation, wantMessage: "amount <= 0",
		},
		{
			name:   "malformed body",
			method: http.MethodPost, path: "/vehicle", body: `{"price":`,
			wantStatus: http.StatusBadRequest, wantCode: httpapi.CodeValidation, wantMessage: "malformed request body",
		},
		{
			name:   "sold twice",
			method: http.MethodPut, path: "/vehicle/sell/v1", body: `{"price":30000.00}`,
			wantStatus: http.StatusBadRequest, wantCode: httpapi.CodeValidation, wantMessage: "vehicle already sold",
		},
		{
			name:   "unknown vehicle summary",
			method: http.MethodGet, path: "/vehicle/nope",
			wantStatus: http.StatusNotFound, wantCode: httpapi.CodeNotFound,
		},
		{
			name:   "unknown lot name",
			method: http.MethodPut, path: "/vehicle/move/v1/nowhere",
			wantStatus: http.StatusNotFound, wantCode: httpapi.CodeNotFound, wantMessage: "nowhere",
		},
		{
			name:   "update unknown lot",
			method: http.MethodPut, path: "/lot/lot-x", body: `{"name":"North","manager":"Dana"}`,
			wantStatus: http.StatusNotFound, wantCode: httpapi.CodeNotFound,
		},
		{
			name:   "duplicate purchase order",
			method: http.MethodPost, path: "/purchaseorder", body: `{"id":"po-1","price":18000.00,"type":"truck"}`,
			wantStatus: http.StatusBadRequest, wantCode: httpapi.CodeValidation, wantMessage: "purchase order already exists",
		},
	}

	a := givenAPI(t)
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/vehicle", `{"id":"v1","price":25000.00,"type":"sedan"}`).Code)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPut, "/vehicle/sell/v1", `{"price":28000.00}`).Code)
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/purchaseorder", `{"id":"po-1","price":18000.00,"type":"truck"}`).Code)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			rec := a.do(t, tc.method, tc.path, tc.body, shell.HeaderRequestID, "req-42")

			// assert
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			body := decode[httpapi.ErrorResponse](t, rec)
			assert.Equal(t, tc.wantCode, body.ErrorCode)
			assert.Contains(t, body.Message, tc.wantMessage)
			assert.Equal(t, "req-42", body.RequestID)
			assert.Equal(t, tc.path, body.Path)
			assert.NotEmpty(t, body.Timestamp)
		})
	}
}

func Test_Classify(t *testing.T) {
	testCases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{err: core.NewValidationError("x"), wantStatus: http.StatusBadRequest, wantCode: httpapi.CodeValidation},
		{err: core.NewNotFoundError("vehicle", "v1"), wantStatus: http.StatusNotFound, wantCode: httpapi.CodeNotFound},
		{err: errors.Join(shell.ErrMaxRetriesReached, eventstore.ErrConcurrencyConflict), wantStatus: http.StatusConflict, wantCode: httpapi.CodeConflict},
		{err: fmt.Errorf("%w: lot service", core.ErrUpstreamUnavailable), wantStatus: http.StatusBadGateway, wantCode: httpapi.CodeUpstreamUnavailable},
		{err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: httpapi.CodeInternal},
	}

	for _, tc := range testCases {
		t.Run(tc.wantCode, func(t *testing.T) {
			// act
			status, code := httpapi.Classify(tc.err)

			// assert
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCode, code)
		})
	}
}

func Test_API_ListLots_ValidatesPaging(t *testing.T) {
	testCases := []struct {
		query      string
		wantStatus int
	}{
		{query: "", wantStatus: http.StatusOK},
		{query: "?limit=1&offset=0", wantStatus: http.StatusOK},
		{query: "?limit=1000", wantStatus: http.StatusOK},
		{query: "?limit=0", wantStatus: http.StatusBadRequest},
		{query: "?limit=1001", wantStatus: http.StatusBadRequest},
		{query: "?limit=ten", wantStatus: http.StatusBadRequest},
		{query: "?offset=-1", wantStatus: http.StatusBadRequest},
	}

	a := givenAPI(t)

	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			// act
			rec := a.do(t, http.MethodGet, "/lot"+tc.query, "")

			// assert
			assert.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func Test_API_MoveVehicle_ResolvesLotByName(t *testing.T) {
	// arrange
	a := givenAPI(t)

	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/lot", `{"id":"lot-a","name":"a","manager":"Dana"}`).Code)
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/vehicle", `{"id":"v1","price":25000.00,"type":"sedan"}`).Code)

	require.Eventually(t, func() bool {
		lots := decode[[]lotsummary.LotSummary](t, a.do(t, http.MethodGet, "/lot?name=a", ""))
		return len(lots) == 1
	}, time.Second, 5*time.Millisecond)

	// act
	rec := a.do(t, http.MethodPut, "/vehicle/move/v1/a", "")

	// assert
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":"v1","version":2}`, rec.Body.String())

	require.Eventually(t, func() bool {
		rec := a.do(t, http.MethodGet, "/vehicle/v1", "")
		if rec.Code != http.StatusOK {
			return false
		}

		return decode[vehiclesummary.VehicleSummary](t, rec).LotID == "lot-a"
	}, time.Second, 5*time.Millisecond)
}

func Test_API_UpdateLot_UnchangedIsIdempotent(t *testing.T) {
	// arrange
	a := givenAPI(t)
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/lot", `{"id":"lot-a","name":"North","manager":"Dana"}`).Code)

	// act
	rec := a.do(t, http.MethodPut, "/lot/lot-a", `{"name":"North","manager":"Dana"}`)

	// assert
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"lot-a","version":1}`, rec.Body.String())
}

func Test_API_VehicleUpdates_StreamsSummaries(t *testing.T) {
	// arrange
	a := givenAPI(t)
	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/vehicle/v1/updates", nil)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	require.Eventually(t, func() bool {
		return a.vehicleUpdates.Count(vehiclesummary.QueryTypeName) == 1
	}, time.Second, 5*time.Millisecond)

	// act
	a.vehicleUpdates.Emit(vehiclesummary.QueryTypeName, vehiclesummary.VehicleSummary{ID: "v2", Lot: "b"})
	a.vehicleUpdates.Emit(vehiclesummary.QueryTypeName, vehiclesummary.VehicleSummary{ID: "v1", Lot: "a"})

	// assert
	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data:") {
			data = strings.TrimPrefix(line, "data:")
			break
		}
	}

	var summary vehiclesummary.VehicleSummary
	require.NoError(t, json.Unmarshal([]byte(data), &summary), data)
	assert.Equal(t, "v1", summary.ID)
	assert.Equal(t, "a", summary.Lot)
}

func Test_API_HealthAndReadiness(t *testing.T) {
	// arrange
	healthy := givenAPI(t, httpapi.WithReadinessCheck("db", func(context.Context) error { return nil }))
	unhealthy := givenAPI(t, httpapi.WithReadinessCheck("db", func(context.Context) error { return errors.New("down") }))

	// act
	health := unhealthy.do(t, http.MethodGet, "/health", "")
	ready := healthy.do(t, http.MethodGet, "/ready", "")
	notReady := unhealthy.do(t, http.MethodGet, "/ready", "")

	// assert
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.Equal(t, http.StatusServiceUnavailable, notReady.Code)
	assert.Contains(t, notReady.Body.String(), "down")
}
