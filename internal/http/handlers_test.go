package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/minjikim/nalmoa/internal/models"
	"github.com/minjikim/nalmoa/internal/service"
	"github.com/minjikim/nalmoa/internal/store"
	"github.com/minjikim/nalmoa/internal/tally"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Room{},
		&models.Participant{},
		&models.Vote{},
		&models.VoteResponse{},
	); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	rooms := service.NewRoomService(
		store.NewRoomStore(db),
		store.NewParticipantStore(db),
		store.NewVoteStore(db),
		nil,
	)
	router := gin.New()
	SetupRoutes(router, rooms)
	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func createRoomViaAPI(t *testing.T, router *gin.Engine) models.Room {
	t.Helper()
	w := doRequest(t, router, http.MethodPost, "/api/rooms", gin.H{
		"title":    "Trip",
		"nickname": "Alice",
		"memo":     "pack light",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create room: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[models.Room](t, w)
}

func TestCreateRoomAndDetail(t *testing.T) {
	router := setupRouter(t)
	room := createRoomViaAPI(t, router)

	if len(room.Code) != 12 {
		t.Fatalf("expected 12-char invite code, got %q", room.Code)
	}

	// Lowercase path segment must resolve: codes are typed by humans.
	w := doRequest(t, router, http.MethodGet, "/api/rooms/"+strings.ToLower(room.Code), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("detail: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	detail := decode[service.RoomDetail](t, w)
	if detail.Room.Code != room.Code {
		t.Errorf("detail resolved wrong room: %q", detail.Room.Code)
	}
	if len(detail.Participants) != 1 || detail.Participants[0].Nickname != "Alice" {
		t.Errorf("expected host auto-joined, got %+v", detail.Participants)
	}
}

func TestLobbyLookupByQueryParam(t *testing.T) {
	router := setupRouter(t)
	room := createRoomViaAPI(t, router)

	w := doRequest(t, router, http.MethodGet, "/api/rooms?code="+strings.ToLower(room.Code), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("lookup: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, router, http.MethodGet, "/api/rooms?code=NOSUCHROOM12", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("lookup of absent code: expected 404, got %d", w.Code)
	}
}

func TestInviteLinkRedirects(t *testing.T) {
	router := setupRouter(t)
	room := createRoomViaAPI(t, router)

	w := doRequest(t, router, http.MethodGet, "/room/"+strings.ToLower(room.Code), nil)
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/api/rooms/"+room.Code {
		t.Errorf("redirect location = %q, want normalized code path", loc)
	}
}

func TestJoinReturnsRefreshedAggregate(t *testing.T) {
	router := setupRouter(t)
	room := createRoomViaAPI(t, router)

	w := doRequest(t, router, http.MethodPost, "/api/rooms/"+room.Code+"/join", gin.H{"nickname": "Bob"})
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	detail := decode[service.RoomDetail](t, w)
	if len(detail.Participants) != 2 {
		t.Errorf("expected refreshed aggregate with 2 participants, got %+v", detail.Participants)
	}
}

func TestVoteFlow(t *testing.T) {
	router := setupRouter(t)
	room := createRoomViaAPI(t, router)

	w := doRequest(t, router, http.MethodPost, "/api/rooms/"+room.Code+"/votes", gin.H{
		"title": "Day",
		"dates": []string{"2025-06-01", "2025-06-02"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create vote: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	detail := decode[service.RoomDetail](t, w)
	if len(detail.Votes) != 1 {
		t.Fatalf("expected one vote in aggregate, got %d", len(detail.Votes))
	}
	voteID := detail.Votes[0].ID

	for nickname, picks := range map[string][]string{
		"Alice": {"2025-06-01"},
		"Bob":   {"2025-06-01", "2025-06-02"},
	} {
		w = doRequest(t, router, http.MethodPost, "/api/votes/"+voteID+"/responses", gin.H{
			"nickname":      nickname,
			"selectedDates": picks,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("submit response for %s: expected 200, got %d: %s", nickname, w.Code, w.Body.String())
		}
		// Every mutation answers with the reloaded room aggregate.
		refreshed := decode[service.RoomDetail](t, w)
		if refreshed.Room == nil || refreshed.Room.Code != room.Code {
			t.Fatalf("submit response did not return the room aggregate: %s", w.Body.String())
		}
	}

	w = doRequest(t, router, http.MethodGet, "/api/votes/"+voteID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("vote detail: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	voteDetail := decode[struct {
		Tally tally.Result `json:"tally"`
	}](t, w)
	if len(voteDetail.Tally.Leading) != 1 || voteDetail.Tally.Leading[0] != "2025-06-01" {
		t.Errorf("leading = %v, want [2025-06-01]", voteDetail.Tally.Leading)
	}

	w = doRequest(t, router, http.MethodGet, "/api/votes/"+voteID+"/share", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("vote share: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	sharePayload := decode[struct {
		RoomName  string `json:"roomName"`
		Code      string `json:"code"`
		VoteTitle string `json:"voteTitle"`
	}](t, w)
	if sharePayload.VoteTitle != "Day" || sharePayload.Code != room.Code {
		t.Errorf("unexpected vote share payload: %+v", sharePayload)
	}

	w = doRequest(t, router, http.MethodDelete, "/api/votes/"+voteID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete vote: expected 200, got %d", w.Code)
	}
	// Deleting a vote answers with the reloaded room aggregate, minus the vote.
	refreshed := decode[service.RoomDetail](t, w)
	if refreshed.Room == nil || refreshed.Room.Code != room.Code {
		t.Fatalf("delete vote did not return the room aggregate: %s", w.Body.String())
	}
	if len(refreshed.Votes) != 0 {
		t.Errorf("expected no votes in refreshed aggregate, got %d", len(refreshed.Votes))
	}
	w = doRequest(t, router, http.MethodGet, "/api/votes/"+voteID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("deleted vote detail: expected 404, got %d", w.Code)
	}
	w = doRequest(t, router, http.MethodGet, "/api/votes/"+voteID+"/share", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("deleted vote share: expected 404, got %d", w.Code)
	}
}

func TestDeleteRoom(t *testing.T) {
	router := setupRouter(t)
	room := createRoomViaAPI(t, router)

	w := doRequest(t, router, http.MethodDelete, "/api/rooms/"+room.Code, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete room: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doRequest(t, router, http.MethodGet, "/api/rooms/"+room.Code, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("detail after delete: expected 404, got %d", w.Code)
	}
}

func TestValidationRejectedBeforeStores(t *testing.T) {
	cases := []struct {
		name string
		body gin.H
	}{
		{"missing title", gin.H{"nickname": "Alice"}},
		{"title too long", gin.H{"title": strings.Repeat("x", 21), "nickname": "Alice"}},
		{"nickname too long", gin.H{"title": "Trip", "nickname": strings.Repeat("x", 11)}},
		{"memo too long", gin.H{"title": "Trip", "nickname": "Alice", "memo": strings.Repeat("x", 101)}},
	}
	for _, tc := range cases {
		// Fresh router per case so the create rate limiter never interferes.
		router := setupRouter(t)
		w := doRequest(t, router, http.MethodPost, "/api/rooms", tc.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}

	router := setupRouter(t)
	w := doRequest(t, router, http.MethodPost, "/api/rooms/SOMECODE1234/votes", gin.H{
		"title": "Day",
		"dates": []string{},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty dates: expected 400, got %d", w.Code)
	}
}

func TestRateLimiterEviction(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 1)

	// A fresh visitor has a full bucket and is safe to evict.
	limiter.GetLimiter("198.51.100.1")
	// A visitor that just spent its budget must survive eviction, or the
	// limit would reset early.
	if !limiter.GetLimiter("198.51.100.2").Allow() {
		t.Fatal("expected first request to be allowed")
	}

	limiter.EvictIdle()

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	if _, ok := limiter.visitors["198.51.100.1"]; ok {
		t.Error("idle visitor was not evicted")
	}
	if _, ok := limiter.visitors["198.51.100.2"]; !ok {
		t.Error("rate-limited visitor was evicted while still over budget")
	}
}

func TestCreateRoomRateLimited(t *testing.T) {
	router := setupRouter(t)
	createRoomViaAPI(t, router)

	// Same IP immediately again: over budget.
	w := doRequest(t, router, http.MethodPost, "/api/rooms", gin.H{
		"title":    "Another",
		"nickname": "Alice",
	})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on immediate second create, got %d", w.Code)
	}
}
