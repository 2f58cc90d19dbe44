package skybox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wfunc/gamebot/logger"
)

const defaultAPIBase = "https://backend.blockadelabs.com/api/v1"

// Config carries the Blockade Labs credentials. The push key and
// cluster come from the Blockade account's Pusher app.
type Config struct {
	APIKey        string
	PusherKey     string
	PusherCluster string
}

// Style is one Blockade skybox style.
type Style struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	MaxChar   string `json:"max-char"`
	SortOrder int    `json:"sort_order"`
}

// generation is the imagine request created by a POST /skybox.
type generation struct {
	ID            int    `json:"id"`
	Status        string `json:"status"`
	PusherChannel string `json:"pusher_channel"`
	PusherEvent   string `json:"pusher_event"`
	FileURL       string `json:"file_url"`
	ErrorMessage  string `json:"error_message"`
}

// Generator renders skybox backdrops through the Blockade Labs API and
// waits for completion on the account's push channel.
type Generator struct {
	cfg        Config
	apiBase    string
	pusherURL  string
	httpClient *http.Client
}

func NewGenerator(cfg Config) *Generator {
	return &Generator{
		cfg:        cfg,
		apiBase:    defaultAPIBase,
		pusherURL:  pusherEndpoint(cfg.PusherCluster, cfg.PusherKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Generate submits a prompt and blocks until the skybox finishes
// rendering, returning the image URL. Pending imagines are cancelled
// first because the push channel is account global and a stale request
// would complete on it too.
func (g *Generator) Generate(ctx context.Context, prompt string, styleID int) (string, error) {
	if err := g.CancelAll(ctx); err != nil {
		logger.Log.Warnf("Skybox: cancelling pending imagines failed: %v", err)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"prompt":          prompt,
		"skybox_style_id": styleID,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.apiBase+"/skybox?api_key="+g.cfg.APIKey, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var gen generation
	if err := g.do(req, &gen); err != nil {
		return "", fmt.Errorf("requesting skybox: %w", err)
	}
	if gen.ErrorMessage != "" {
		return "", fmt.Errorf("requesting skybox: %s", gen.ErrorMessage)
	}
	if gen.PusherChannel == "" || gen.PusherEvent == "" {
		return "", fmt.Errorf("skybox response %d has no push channel", gen.ID)
	}

	logger.Log.Infof("Skybox %d queued, waiting on %s", gen.ID, gen.PusherChannel)
	return g.awaitCompletion(ctx, gen.PusherChannel, gen.PusherEvent)
}

// CancelAll drops every pending imagine request for the account.
func (g *Generator) CancelAll(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		g.apiBase+"/imagine/requests/pending?api_key="+g.cfg.APIKey, nil)
	if err != nil {
		return err
	}
	return g.do(req, nil)
}

// Styles fetches the available skybox styles.
func (g *Generator) Styles(ctx context.Context) ([]Style, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.apiBase+"/skybox/styles?api_key="+g.cfg.APIKey, nil)
	if err != nil {
		return nil, err
	}
	var styles []Style
	if err := g.do(req, &styles); err != nil {
		return nil, fmt.Errorf("fetching skybox styles: %w", err)
	}
	return styles, nil
}

func (g *Generator) do(req *http.Request, out interface{}) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
