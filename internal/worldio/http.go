package worldio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"towerkeep.ai/internal/protocol"
	"towerkeep.ai/internal/sim/templates"
	"towerkeep.ai/internal/sim/terrain"
)

const heightmapType = "MOTION_BLOCKING_NO_LEAVES"

// HTTPClient talks to a GDMC-HTTP style world server.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
	// Materials also fetches the surface block of every column.
	Materials bool
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *HTTPClient) BuildArea(ctx context.Context) (BuildArea, error) {
	var wire protocol.BuildArea
	if err := c.do(ctx, http.MethodGet, "/buildarea", nil, nil, &wire); err != nil {
		return BuildArea{}, err
	}
	area := areaFromWire(wire)
	if area.Empty() {
		return BuildArea{}, &FatalError{Op: "GET /buildarea", Err: fmt.Errorf("empty build area %s", area)}
	}
	return area, nil
}

func (c *HTTPClient) HeightMap(ctx context.Context, area BuildArea) (*terrain.HeightMap, error) {
	r := area.Rect()
	q := url.Values{}
	q.Set("x", strconv.Itoa(r.X))
	q.Set("z", strconv.Itoa(r.Z))
	q.Set("dx", strconv.Itoa(r.DX))
	q.Set("dz", strconv.Itoa(r.DZ))
	q.Set("type", heightmapType)
	var grid [][]int // [x][z], first free y above the surface
	if err := c.do(ctx, http.MethodGet, "/heightmap", q, nil, &grid); err != nil {
		return nil, err
	}
	if len(grid) != r.DX {
		return nil, &FatalError{Op: "GET /heightmap", Err: fmt.Errorf("got %d columns, want %d", len(grid), r.DX)}
	}
	heights := make([]int, r.DX*r.DZ)
	lo, hi := int(^uint(0)>>1), -int(^uint(0)>>1)-1
	for x, col := range grid {
		if len(col) != r.DZ {
			return nil, &FatalError{Op: "GET /heightmap", Err: fmt.Errorf("column %d has %d cells, want %d", x, len(col), r.DZ)}
		}
		for z, y := range col {
			h := y - 1
			heights[z*r.DX+x] = h
			lo, hi = min(lo, h), max(hi, h)
		}
	}
	var materials []string
	if c.Materials {
		var err error
		if materials, err = c.surface(ctx, area, heights, lo, hi); err != nil {
			return nil, err
		}
	}
	return terrain.NewHeightMap(r, heights, materials)
}

// surface reads the block at each column's height with one ranged request.
func (c *HTTPClient) surface(ctx context.Context, area BuildArea, heights []int, lo, hi int) ([]string, error) {
	r := area.Rect()
	q := url.Values{}
	for k, v := range map[string]int{"x": r.X, "y": lo, "z": r.Z, "dx": r.DX, "dy": hi - lo + 1, "dz": r.DZ} {
		q.Set(k, strconv.Itoa(v))
	}
	var blocks []protocol.Block
	if err := c.do(ctx, http.MethodGet, "/blocks", q, nil, &blocks); err != nil {
		return nil, err
	}
	materials := make([]string, len(heights))
	for _, b := range blocks {
		x, z := b.X-r.X, b.Z-r.Z
		if x < 0 || z < 0 || x >= r.DX || z >= r.DZ {
			continue
		}
		if i := z*r.DX + x; heights[i] == b.Y {
			materials[i] = b.ID
		}
	}
	return materials, nil
}

func (c *HTTPClient) SubmitEdits(ctx context.Context, edits []templates.Edit) error {
	blocks := ToBlocks(edits)
	if len(blocks) == 0 {
		return nil
	}
	var results []protocol.BlockResult
	if err := c.do(ctx, http.MethodPut, "/blocks", nil, blocks, &results); err != nil {
		return err
	}
	for i, res := range results {
		if res.Message != "" {
			b := blocks[min(i, len(blocks)-1)]
			return &FatalError{Op: "PUT /blocks", Err: fmt.Errorf("block %d,%d,%d %s: %s", b.X, b.Y, b.Z, b.ID, res.Message)}
		}
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	op := method + " " + path
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &FatalError{Op: op, Err: err}
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return &FatalError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientError{Op: op, Err: err}
	}
	switch {
	case resp.StatusCode >= 500:
		return &TransientError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, snippet(raw))}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &TransientError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return &FatalError{Op: op, Status: resp.StatusCode, Err: errors.New(snippet(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &FatalError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
