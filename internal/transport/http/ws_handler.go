// Package http adapts front-end command surfaces (chat bots, reaction
// listeners, dashboards) onto the tracker use cases over a websocket.
// The adapter carries no domain logic: it parses payloads, supplies the
// caller's privilege flag, and forwards results.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"assignment-tracker-service/internal/app"
	"assignment-tracker-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.TrackerService
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewWSHandler(service *app.TrackerService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueAt       string `json:"dueAt"`
	BasePoints  int    `json:"basePoints"`
}

type renamePayload struct {
	OldTitle    string `json:"oldTitle"`
	NewTitle    string `json:"newTitle"`
	Description string `json:"description"`
	DueAt       string `json:"dueAt"`
}

type titlePayload struct {
	Title string `json:"title"`
}

type assignmentView struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueAt       string   `json:"dueAt"`
	BasePoints  int      `json:"basePoints"`
	TotalPoints int      `json:"totalPoints"`
	CompletedBy []string `json:"completedBy"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func viewOf(a domain.Assignment) assignmentView {
	users := make([]string, 0, len(a.Completions))
	for _, c := range a.Completions {
		users = append(users, c.User)
	}
	return assignmentView{
		Title:       a.Title,
		Description: a.Description,
		DueAt:       domain.FormatDueDate(a.DueAt),
		BasePoints:  a.BasePoints,
		TotalPoints: a.TotalPoints,
		CompletedBy: users,
	}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// tracker use cases. The user identity and the privileged flag come
// from the connecting adapter; the core does not do role resolution.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		http.Error(w, "missing user", http.StatusBadRequest)
		return
	}
	privileged := r.URL.Query().Get("admin") == "1"

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.service.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// push reports false once the writer is gone so senders unwind the
	// connection instead of blocking on a full buffer forever.
	push := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if !push(outboundMessage[any]{Type: "leaderboard", Payload: update}) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !h.dispatch(r.Context(), push, user, privileged, inbound) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch handles one inbound command. It reports false only when the
// writer has died and the connection should be torn down.
func (h *WSHandler) dispatch(ctx context.Context, push func(outboundMessage[any]) bool, user string, privileged bool, inbound inboundMessage) bool {
	fail := func(msg string) bool {
		return push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}})
	}

	switch inbound.Type {
	case "create":
		if !privileged {
			return fail("only admins can create assignments")
		}
		var payload createPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fail("invalid create payload")
		}
		dueAt, err := domain.ParseDueDate(payload.DueAt)
		if err != nil {
			return fail(err.Error())
		}
		a, err := h.service.CreateAssignment(ctx, payload.Title, payload.Description, dueAt, payload.BasePoints)
		if err != nil {
			return fail(err.Error())
		}
		return push(outboundMessage[any]{Type: "assignment", Payload: viewOf(a)})

	case "rename":
		if !privileged {
			return fail("only admins can edit assignments")
		}
		var payload renamePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fail("invalid rename payload")
		}
		dueAt, err := domain.ParseDueDate(payload.DueAt)
		if err != nil {
			return fail(err.Error())
		}
		a, err := h.service.RenameAssignment(ctx, payload.OldTitle, payload.NewTitle, payload.Description, dueAt)
		if err != nil {
			return fail(err.Error())
		}
		return push(outboundMessage[any]{Type: "assignment", Payload: viewOf(a)})

	case "delete":
		if !privileged {
			return fail("only admins can delete assignments")
		}
		var payload titlePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fail("invalid delete payload")
		}
		if err := h.service.DeleteAssignment(ctx, payload.Title); err != nil {
			return fail(err.Error())
		}
		return push(outboundMessage[any]{Type: "deleted", Payload: payload})

	case "complete":
		var payload titlePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fail("invalid complete payload")
		}
		result, err := h.service.CompleteAssignment(ctx, payload.Title, user, h.now())
		if err != nil && !errors.Is(err, domain.ErrAlreadyCompleted) {
			return fail(err.Error())
		}
		return push(outboundMessage[any]{Type: "completionResult", Payload: result})

	case "list":
		assignments := h.service.ListAssignments()
		views := make([]assignmentView, 0, len(assignments))
		for _, a := range assignments {
			views = append(views, viewOf(a))
		}
		return push(outboundMessage[any]{Type: "assignments", Payload: views})

	case "leaderboard":
		return push(outboundMessage[any]{Type: "leaderboard", Payload: h.service.Leaderboard()})

	case "detailedLeaderboard":
		return push(outboundMessage[any]{Type: "detailedLeaderboard", Payload: h.service.DetailedLeaderboard()})

	case "progress":
		return push(outboundMessage[any]{Type: "progressSeries", Payload: h.service.ProgressSeries()})

	case "myProgress":
		return push(outboundMessage[any]{Type: "userProgress", Payload: h.service.UserProgress(user)})

	default:
		return fail("unsupported message type")
	}
}
