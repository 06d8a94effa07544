package server

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"sketchbook/internal/cache"
	"sketchbook/internal/config"
	"sketchbook/internal/game"
)

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

func testCatalog(cards int, overrides map[int]string) *game.MemoryCatalog {
	var prompts []game.Prompt
	id := uint(1)
	for card := 1; card <= cards; card++ {
		for order := 1; order <= 6; order++ {
			word := fmt.Sprintf("card%d word%d", card, order)
			if w, ok := overrides[order]; ok {
				word = w
			}
			prompts = append(prompts, game.Prompt{ID: id, CardNum: card, Order: order, Word: word})
			id++
		}
	}
	return game.NewMemoryCatalog(prompts)
}

// newTestApp serves a manager backed by in-memory stores. The die always
// shows face.
func newTestApp(t *testing.T, cfg config.Config, catalog game.Catalog, face int) (*Server, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	manager := game.NewManager(
		cache.NewRepository(cache.NewMemoryStore(nil), cache.DefaultTTLs()),
		game.NewMemoryBooks(),
		catalog,
		game.WithBroadcaster(hub),
		game.WithJournal(game.NewMemoryJournal()),
		game.WithDice(game.DiceFunc(func() int { return face })),
		game.WithPromptSelection(cfg.PromptSelection),
	)
	srv := New(manager, hub, cfg)
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.RateLimitPerSecond = 0
	return cfg
}

func testPNG(tag string) string {
	data := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, []byte(tag)...)
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}
