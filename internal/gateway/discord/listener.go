package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/thejerf/suture/v4"

	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
)

// Опкоды gateway.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11
)

// Интенты: GUILDS | GUILD_MEMBERS | GUILD_MESSAGES | MESSAGE_CONTENT.
const intents = 1<<0 | 1<<1 | 1<<9 | 1<<15

var errReconnect = errors.New("gateway requested reconnect")

// Коды закрытия, после которых переподключение бессмысленно: неверный токен,
// шардинг, версия API, интенты.
var fatalCloseCodes = map[int]bool{
	4004: true,
	4010: true,
	4011: true,
	4012: true,
	4013: true,
	4014: true,
}

// fatalClose сообщает, закрыл ли Discord соединение с неисправимой ошибкой.
func fatalClose(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) && fatalCloseCodes[closeErr.Code]
}

type frame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

type outFrame struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

type hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type identify struct {
	Token      string            `json:"token"`
	Intents    int               `json:"intents"`
	Properties map[string]string `json:"properties"`
}

// Author автор сообщения.
type Author struct {
	ID  string `json:"id"`
	Bot bool   `json:"bot"`
}

// Message событие MESSAGE_CREATE.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Content   string `json:"content"`
	Author    Author `json:"author"`
}

// MessageHandler обрабатывает входящие сообщения.
type MessageHandler func(ctx context.Context, msg Message)

// Listener держит соединение с gateway и передаёт MESSAGE_CREATE обработчику.
// Реализует suture.Service.
type Listener struct {
	url     string
	token   string
	handler MessageHandler
	log     *slog.Logger

	dialer       websocket.Dialer
	minReconnect time.Duration
	maxReconnect time.Duration

	writeMu sync.Mutex
}

// NewListener создаёт слушателя gateway.
func NewListener(gatewayURL, token string, handler MessageHandler, log *slog.Logger) *Listener {
	return &Listener{
		url:          gatewayURL,
		token:        token,
		handler:      handler,
		log:          log,
		dialer:       websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		minReconnect: time.Second,
		maxReconnect: 32 * time.Second,
	}
}

// Serve подключается и переподключается до отмены ctx.
func (l *Listener) Serve(ctx context.Context) error {
	delay := l.minReconnect
	for {
		connected, err := l.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if fatalClose(err) {
			l.log.Error("discord gateway rejected the session, not reconnecting", sl.Err(err))
			return fmt.Errorf("discord gateway: %w: %w", suture.ErrDoNotRestart, err)
		}
		if connected {
			delay = l.minReconnect
		}
		l.log.Warn("discord gateway disconnected, reconnecting",
			slog.Duration("delay", delay), sl.Err(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if !connected {
			delay *= 2
			if delay > l.maxReconnect {
				delay = l.maxReconnect
			}
		}
	}
}

func (l *Listener) String() string {
	return "discord-gateway"
}

// session одно соединение: HELLO, IDENTIFY, heartbeat и чтение событий.
// connected=true, если рукопожатие прошло успешно.
func (l *Listener) session(ctx context.Context) (connected bool, err error) {
	const op = "discord.Listener.session"

	conn, resp, err := l.dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return false, fmt.Errorf("%s: dial: %w", op, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	// закрываем соединение при отмене, чтобы прервать ReadMessage
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			l.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			l.writeMu.Unlock()
			_ = conn.Close()
		case <-stop:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	var first frame
	if err := conn.ReadJSON(&first); err != nil {
		return false, fmt.Errorf("%s: read hello: %w", op, err)
	}
	if first.Op != opHello {
		return false, fmt.Errorf("%s: expected hello, got op %d", op, first.Op)
	}
	var h hello
	if err := json.Unmarshal(first.D, &h); err != nil {
		return false, fmt.Errorf("%s: parse hello: %w", op, err)
	}
	interval := time.Duration(h.HeartbeatInterval) * time.Millisecond
	if interval <= 0 {
		interval = 40 * time.Second
	}

	if err := l.write(conn, outFrame{Op: opIdentify, D: identify{
		Token:   l.token,
		Intents: intents,
		Properties: map[string]string{
			"os":      "linux",
			"browser": "membership-bot",
			"device":  "membership-bot",
		},
	}}); err != nil {
		return false, fmt.Errorf("%s: identify: %w", op, err)
	}
	l.log.Info("discord gateway connected", slog.Duration("heartbeat", interval))

	var (
		seqMu sync.Mutex
		seq   *int64
	)
	lastSeq := func() *int64 {
		seqMu.Lock()
		defer seqMu.Unlock()
		return seq
	}

	hbErr := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := l.write(conn, outFrame{Op: opHeartbeat, D: lastSeq()}); err != nil {
					hbErr <- err
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * interval))
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			select {
			case herr := <-hbErr:
				return true, fmt.Errorf("%s: heartbeat: %w", op, herr)
			default:
			}
			return true, fmt.Errorf("%s: read: %w", op, err)
		}
		if f.S != nil {
			seqMu.Lock()
			seq = f.S
			seqMu.Unlock()
		}

		switch f.Op {
		case opDispatch:
			l.dispatch(ctx, f)
		case opHeartbeat:
			if err := l.write(conn, outFrame{Op: opHeartbeat, D: lastSeq()}); err != nil {
				return true, fmt.Errorf("%s: heartbeat: %w", op, err)
			}
		case opReconnect, opInvalidSession:
			return true, fmt.Errorf("%s: op %d: %w", op, f.Op, errReconnect)
		case opHeartbeatACK:
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, f frame) {
	switch f.T {
	case "READY":
		l.log.Info("discord gateway ready")
	case "MESSAGE_CREATE":
		var msg Message
		if err := json.Unmarshal(f.D, &msg); err != nil {
			l.log.Warn("failed to parse discord message", sl.Err(err))
			return
		}
		if l.handler != nil {
			l.handler(ctx, msg)
		}
	}
}

func (l *Listener) write(conn *websocket.Conn, v any) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}
