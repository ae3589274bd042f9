package http

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/minjikim/nalmoa/internal/invite"
	"github.com/minjikim/nalmoa/internal/service"
)

// --- Configuration Constants ---
const (
	rateLimitRPS   = 1.0 / 3.0 // 1 room creation every 3 seconds per IP
	rateLimitBurst = 1
)

// --- Structs for request binding ---
type CreateRoomInput struct {
	Title    string `json:"title" binding:"required,min=1,max=20"`
	Nickname string `json:"nickname" binding:"required,min=1,max=10"`
	Memo     string `json:"memo" binding:"max=100"`
}
type JoinRoomInput struct {
	Nickname string `json:"nickname" binding:"required,min=1,max=10"`
}
type CreateVoteInput struct {
	Title string   `json:"title" binding:"required,min=1,max=30"`
	Dates []string `json:"dates" binding:"required,min=1"`
}
type SubmitResponseInput struct {
	Nickname      string   `json:"nickname" binding:"required,min=1,max=10"`
	SelectedDates []string `json:"selectedDates"`
}

// --- Rate Limiter ---
type IPRateLimiter struct {
	visitors map[string]*rate.Limiter
	mu       sync.RWMutex
	rps      rate.Limit
	burst    int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*rate.Limiter),
		mu:       sync.RWMutex{},
		rps:      r,
		burst:    b,
	}
}
func (rl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, exists := rl.visitors[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.visitors[ip] = limiter
	}
	return limiter
}

// EvictIdle drops visitors whose limiter has fully refilled. They get a
// fresh limiter on their next request, so eviction never loosens the limit.
func (rl *IPRateLimiter) EvictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, limiter := range rl.visitors {
		if limiter.Tokens() >= float64(rl.burst) {
			delete(rl.visitors, ip)
		}
	}
}
func RateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.GetLimiter(ip).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please wait."})
			return
		}
		c.Next()
	}
}

// --- Handlers ---
type Env struct {
	Rooms *service.RoomService
}

// codeParam normalizes an invite code from the path or the ?code= query.
// Codes are typed by humans, so lowercase input is accepted everywhere.
func codeParam(c *gin.Context) string {
	code := c.Param("code")
	if code == "" {
		code = c.Query("code")
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

func (e *Env) CreateRoom(c *gin.Context) {
	var input CreateRoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	room, err := e.Rooms.CreateRoom(c.Request.Context(), input.Title, input.Nickname, input.Memo)
	if err != nil {
		if errors.Is(err, invite.ErrCodeSpaceExhausted) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not generate an invite code. Please try again."})
			return
		}
		log.Printf("Error creating room: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}
	c.JSON(http.StatusCreated, room)
}

// LookupRoom serves the lobby's join form: GET /api/rooms?code=X.
func (e *Env) LookupRoom(c *gin.Context) {
	code := codeParam(c)
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invite code is required"})
		return
	}
	detail, err := e.Rooms.Detail(c.Request.Context(), code)
	if err != nil {
		e.renderDetailError(c, code, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (e *Env) GetRoomDetail(c *gin.Context) {
	code := codeParam(c)
	detail, err := e.Rooms.Detail(c.Request.Context(), code)
	if err != nil {
		e.renderDetailError(c, code, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (e *Env) JoinRoom(c *gin.Context) {
	var input JoinRoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	code := codeParam(c)
	if _, err := e.Rooms.JoinRoom(c.Request.Context(), code, input.Nickname); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "That invite code does not exist"})
			return
		}
		log.Printf("Error joining room %s: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join room"})
		return
	}
	e.refreshDetail(c, code)
}

func (e *Env) DeleteRoom(c *gin.Context) {
	code := codeParam(c)
	if err := e.Rooms.DeleteRoom(c.Request.Context(), code); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		log.Printf("Error deleting room %s: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Room deleted"})
}

func (e *Env) CreateVote(c *gin.Context) {
	var input CreateVoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	code := codeParam(c)
	if _, err := e.Rooms.CreateVote(c.Request.Context(), code, input.Title, input.Dates); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		log.Printf("Error creating vote in room %s: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create vote"})
		return
	}
	e.refreshDetail(c, code)
}

func (e *Env) GetVoteDetail(c *gin.Context) {
	voteID := c.Param("id")
	detail, err := e.Rooms.VoteDetail(c.Request.Context(), voteID)
	if err != nil {
		if errors.Is(err, service.ErrVoteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vote not found"})
			return
		}
		log.Printf("Error fetching vote %s: %v", voteID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load vote"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (e *Env) DeleteVote(c *gin.Context) {
	voteID := c.Param("id")
	code, err := e.Rooms.DeleteVote(c.Request.Context(), voteID)
	if err != nil {
		if errors.Is(err, service.ErrVoteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vote not found"})
			return
		}
		log.Printf("Error deleting vote %s: %v", voteID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete vote"})
		return
	}
	e.refreshDetail(c, code)
}

func (e *Env) SubmitResponse(c *gin.Context) {
	var input SubmitResponseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	voteID := c.Param("id")
	_, code, err := e.Rooms.SubmitResponse(c.Request.Context(), voteID, input.Nickname, input.SelectedDates)
	if err != nil {
		if errors.Is(err, service.ErrVoteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vote not found"})
			return
		}
		log.Printf("Error submitting response to vote %s: %v", voteID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit response"})
		return
	}
	e.refreshDetail(c, code)
}

func (e *Env) ShareRoom(c *gin.Context) {
	code := codeParam(c)
	payload, err := e.Rooms.SharePayload(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		log.Printf("Error building share payload for room %s: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to share room"})
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (e *Env) ShareVote(c *gin.Context) {
	voteID := c.Param("id")
	payload, err := e.Rooms.VoteSharePayload(c.Request.Context(), voteID)
	if err != nil {
		if errors.Is(err, service.ErrVoteNotFound) || errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vote not found"})
			return
		}
		log.Printf("Error building share payload for vote %s: %v", voteID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to share vote"})
		return
	}
	c.JSON(http.StatusOK, payload)
}

// InviteLink resolves /room/<code> links to the detail API so a pasted
// invite URL lands on live data.
func (e *Env) InviteLink(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, "/api/rooms/"+codeParam(c))
}

// refreshDetail re-fetches and renders the full aggregate after a mutation.
// No optimistic patching: every mutation pays a full reload.
func (e *Env) refreshDetail(c *gin.Context, code string) {
	detail, err := e.Rooms.Detail(c.Request.Context(), code)
	if err != nil {
		e.renderDetailError(c, code, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (e *Env) renderDetailError(c *gin.Context, code string, err error) {
	if errors.Is(err, service.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "That room does not exist"})
		return
	}
	log.Printf("Error loading room %s: %v", code, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load room data"})
}
