// mock_server.go
//
// A standalone in-memory Pokéchat backend for exercising the console without
// the real server. Run with: go run mock_server.go
//
// Tokens expire after a short interval so the console's transparent renewal
// path gets exercised during normal use.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const tokenLifetime = 60 * time.Second

type user struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	password string
}

type conversation struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
	ownerID      int64
}

type message struct {
	ID          int64     `json:"id"`
	Content     string    `json:"content"`
	IsBot       bool      `json:"is_bot"`
	Timestamp   time.Time `json:"timestamp"`
	PokemonData any       `json:"pokemon_data,omitempty"`
}

type token struct {
	userID    int64
	expiresAt time.Time
}

type server struct {
	mu            sync.Mutex
	users         map[string]*user
	tokens        map[string]token
	conversations map[int64]*conversation
	messages      map[int64][]message
	nextUserID    int64
	nextConvID    int64
	nextMsgID     int64
}

func newServer() *server {
	return &server{
		users:         make(map[string]*user),
		tokens:        make(map[string]token),
		conversations: make(map[int64]*conversation),
		messages:      make(map[int64][]message),
	}
}

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	flag.Parse()

	s := newServer()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/auth/me", s.handleMe)
	mux.HandleFunc("/api/auth/refresh", s.handleRefresh)
	mux.HandleFunc("/api/conversations/", s.handleConversations)
	mux.HandleFunc("/api/chat/message", s.handleChatMessage)
	mux.HandleFunc("/api/chat/history", s.handleChatHistory)

	log.Printf("Mock Pokéchat server listening on %s (tokens expire after %v)", *addr, tokenLifetime)
	log.Fatal(http.ListenAndServe(*addr, logRequests(mux)))
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "Mock Pokéchat Server"})
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" || body.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[body.Username]; exists {
		writeDetail(w, http.StatusBadRequest, "Username already registered")
		return
	}
	s.nextUserID++
	u := &user{ID: s.nextUserID, Username: body.Username, Email: body.Email, password: body.Password}
	s.users[body.Username] = u

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User created successfully",
		"user":    u,
	})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[body.Username]
	if !exists || u.password != body.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.issueTokenLocked(u.ID),
		"token_type":   "bearer",
		"user":         u,
	})
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.authenticateLocked(r)
	if u == nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleRefresh accepts the stale bearer token, even an expired one, and
// issues a fresh token for the same user.
func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := bearerToken(r)
	tok, exists := s.tokens[raw]
	if !exists {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	delete(s.tokens, raw)

	var owner *user
	for _, u := range s.users {
		if u.ID == tok.userID {
			owner = u
			break
		}
	}
	if owner == nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.issueTokenLocked(owner.ID),
		"token_type":   "bearer",
		"user":         owner,
	})
}

func (s *server) handleConversations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.authenticateLocked(r)
	if u == nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	suffix := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	if suffix != "" {
		id, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "Conversation not found")
			return
		}
		s.handleConversationByIDLocked(w, r, u, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		list := make([]*conversation, 0)
		for _, conv := range s.conversations {
			if conv.ownerID == u.ID {
				list = append(list, conv)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversations": list, "total": len(list)})

	case http.MethodPost:
		var body struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
			writeDetail(w, http.StatusUnprocessableEntity, "title is required")
			return
		}
		s.nextConvID++
		conv := &conversation{ID: s.nextConvID, Title: body.Title, UpdatedAt: time.Now().UTC(), ownerID: u.ID}
		s.conversations[conv.ID] = conv
		writeJSON(w, http.StatusOK, conv)

	default:
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (s *server) handleConversationByIDLocked(w http.ResponseWriter, r *http.Request, u *user, id int64) {
	conv, exists := s.conversations[id]
	if !exists || conv.ownerID != u.ID {
		writeDetail(w, http.StatusNotFound, "Conversation not found")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var body struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
			writeDetail(w, http.StatusUnprocessableEntity, "title is required")
			return
		}
		conv.Title = body.Title
		conv.UpdatedAt = time.Now().UTC()
		writeJSON(w, http.StatusOK, conv)

	case http.MethodDelete:
		delete(s.conversations, id)
		delete(s.messages, id)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted"})

	default:
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (s *server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.authenticateLocked(r)
	if u == nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var body struct {
		Message        string `json:"message"`
		ConversationID int64  `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Message) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "message is required")
		return
	}

	conv := s.conversations[body.ConversationID]
	if conv == nil || conv.ownerID != u.ID {
		// No conversation given: drop the message into a fresh one, like the
		// real backend does.
		s.nextConvID++
		conv = &conversation{ID: s.nextConvID, Title: "New Conversation", UpdatedAt: time.Now().UTC(), ownerID: u.ID}
		s.conversations[conv.ID] = conv
	}

	now := time.Now().UTC()
	s.nextMsgID++
	userMsg := message{ID: s.nextMsgID, Content: body.Message, Timestamp: now}
	s.nextMsgID++
	botMsg := message{ID: s.nextMsgID, Content: botReply(body.Message), IsBot: true, Timestamp: now}
	if data := pokemonFor(body.Message); data != nil {
		botMsg.PokemonData = data
	}

	s.messages[conv.ID] = append(s.messages[conv.ID], userMsg, botMsg)
	conv.MessageCount += 2
	conv.UpdatedAt = now

	writeJSON(w, http.StatusOK, map[string]any{
		"user_message":    userMsg,
		"bot_response":    botMsg,
		"conversation_id": conv.ID,
	})
}

func (s *server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.authenticateLocked(r)
	if u == nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	id, _ := strconv.ParseInt(r.URL.Query().Get("conversation_id"), 10, 64)
	conv := s.conversations[id]
	if conv == nil || conv.ownerID != u.ID {
		writeDetail(w, http.StatusNotFound, "Conversation not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		msgs := s.messages[id]
		if msgs == nil {
			msgs = []message{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversation_id": id, "messages": msgs})

	case http.MethodDelete:
		delete(s.messages, id)
		conv.MessageCount = 0
		writeJSON(w, http.StatusOK, map[string]string{"message": "History cleared"})

	default:
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (s *server) issueTokenLocked(userID int64) string {
	raw := fmt.Sprintf("mock-token-%d-%d", userID, rand.Int63())
	s.tokens[raw] = token{userID: userID, expiresAt: time.Now().Add(tokenLifetime)}
	return raw
}

func (s *server) authenticateLocked(r *http.Request) *user {
	tok, exists := s.tokens[bearerToken(r)]
	if !exists || time.Now().After(tok.expiresAt) {
		return nil
	}
	for _, u := range s.users {
		if u.ID == tok.userID {
			return u
		}
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	return strings.TrimPrefix(header, "Bearer ")
}

// botReply produces a canned Pokédex-flavored answer.
func botReply(question string) string {
	lower := strings.ToLower(question)
	for name := range pokedex {
		if strings.Contains(lower, name) {
			return fmt.Sprintf("Here is what I know about %s%s.", strings.ToUpper(name[:1]), name[1:])
		}
	}
	replies := []string{
		"Interesting question, trainer! Ask me about a specific Pokémon for details.",
		"My sensors detect no Pokémon in that query. Try naming one!",
		"The Pokédex hums quietly. Perhaps ask about Pikachu, Charizard or Snorlax?",
	}
	return replies[rand.Intn(len(replies))]
}

// pokemonFor returns structured Pokémon data when the message names one.
func pokemonFor(question string) any {
	lower := strings.ToLower(question)
	for name, data := range pokedex {
		if strings.Contains(lower, name) {
			return data
		}
	}
	return nil
}

var pokedex = map[string]map[string]any{
	"pikachu": {
		"name": "pikachu", "types": []string{"electric"},
		"height": 0.4, "weight": 6.0,
		"abilities": []string{"static", "lightning-rod"},
		"stats":     map[string]int{"hp": 35, "attack": 55, "defense": 40, "speed": 90},
	},
	"charizard": {
		"name": "charizard", "types": []string{"fire", "flying"},
		"height": 1.7, "weight": 90.5,
		"abilities": []string{"blaze", "solar-power"},
		"stats":     map[string]int{"hp": 78, "attack": 84, "defense": 78, "speed": 100},
	},
	"snorlax": {
		"name": "snorlax", "types": []string{"normal"},
		"height": 2.1, "weight": 460.0,
		"abilities": []string{"immunity", "thick-fat"},
		"stats":     map[string]int{"hp": 160, "attack": 110, "defense": 65, "speed": 30},
	},
	"mewtwo": {
		"name": "mewtwo", "types": []string{"psychic"},
		"height": 2.0, "weight": 122.0,
		"abilities": []string{"pressure", "unnerve"},
		"stats":     map[string]int{"hp": 106, "attack": 110, "defense": 90, "speed": 130},
	},
}
