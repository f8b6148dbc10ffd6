// Package planarchive stores a planned build (elements plus compacted
// edits) so it can be inspected or re-emitted without re-reading the world.
package planarchive

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"towerkeep.ai/internal/sim/layout"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/templates"
)

const Version = 1

type Header struct {
	Version   int    `json:"version"`
	RunID     string `json:"run_id"`
	Seed      int64  `json:"seed"`
	CreatedAt string `json:"created_at"`
}

type PlanV1 struct {
	Header Header `json:"header"`

	Area          [6]int   `json:"area"` // origin xyz, size xyz
	TuningJSON    []byte   `json:"tuning_json"`
	PaletteDigest string   `json:"palette_digest"`
	GroundDigest  string   `json:"ground_digest"`
	Ground        GroundV1 `json:"ground"`
	PlanDigest    string   `json:"plan_digest"`

	Deck       int      `json:"deck"`
	RoofY      int      `json:"roof_y"`
	EntranceID string   `json:"entrance_id"`
	CastleID   string   `json:"castle_id"`
	Warnings   []string `json:"warnings,omitempty"`

	Elements []ElementV1 `json:"elements"`
	Edits    []EditV1    `json:"edits"`
}

type ElementV1 struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Footprint string   `json:"footprint"`
	Base      int      `json:"base"`
	Height    int      `json:"height"`
	Rotation  int      `json:"rotation"`
	Connects  []string `json:"connects,omitempty"`
}

type EditV1 struct {
	X, Y, Z int
	Span    int
	ID      string
	State   string
	Data    string
}

// New captures a layout and its edits. Edits are compacted before storing.
func New(h Header, area geom.Box, l *layout.Layout, edits iter.Seq[templates.Edit]) PlanV1 {
	h.Version = Version
	p := PlanV1{
		Header:     h,
		Area:       [6]int{area.Origin.X, area.Origin.Y, area.Origin.Z, area.Size.X, area.Size.Y, area.Size.Z},
		PlanDigest: templates.Digest(edits),
		Deck:       l.Deck,
		RoofY:      l.RoofY,
		EntranceID: l.EntranceID,
		CastleID:   l.CastleID,
		Warnings:   append([]string(nil), l.Warnings...),
	}
	for _, el := range l.Elements {
		p.Elements = append(p.Elements, ElementV1{
			ID:        el.ID,
			Kind:      el.Kind.String(),
			Footprint: el.Footprint.String(),
			Base:      el.Base,
			Height:    el.Height,
			Rotation:  el.Rotation,
			Connects:  append([]string(nil), el.Connects...),
		})
	}
	for e := range templates.Compact(edits) {
		p.Edits = append(p.Edits, EditV1{X: e.Pos.X, Y: e.Pos.Y, Z: e.Pos.Z, Span: e.Len(), ID: e.Block.ID, State: e.Block.State, Data: e.Block.Data})
	}
	return p
}

func (p PlanV1) BuildArea() geom.Box {
	a := p.Area
	return geom.Box{Origin: geom.V(a[0], a[1], a[2]), Size: geom.V(a[3], a[4], a[5])}
}

// EditSeq replays the stored edits in order.
func (p PlanV1) EditSeq() iter.Seq[templates.Edit] {
	return func(yield func(templates.Edit) bool) {
		for _, e := range p.Edits {
			ed := templates.Edit{Pos: geom.V(e.X, e.Y, e.Z), Block: templates.Block{ID: e.ID, State: e.State, Data: e.Data}, Span: e.Span}
			if !yield(ed) {
				return
			}
		}
	}
}

// Path is where a run's archive lives under dataDir.
func Path(dataDir, runID string) string {
	return filepath.Join(dataDir, "runs", runID, "plan.zst")
}

func Write(path string, p PlanV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, _ := json.Marshal(p.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&p); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

// ReadHeader decodes only the leading JSON line.
func ReadHeader(path string) (Header, error) {
	var h Header
	err := open(path, func(br *bufio.Reader) error {
		line, err := br.ReadBytes('\n')
		if err != nil {
			return err
		}
		return json.Unmarshal(line, &h)
	})
	return h, err
}

func Read(path string) (PlanV1, error) {
	var p PlanV1
	err := open(path, func(br *bufio.Reader) error {
		// the gob body repeats the header
		if _, err := br.ReadBytes('\n'); err != nil {
			return err
		}
		if err := gob.NewDecoder(br).Decode(&p); err != nil {
			return fmt.Errorf("gob decode: %w", err)
		}
		return nil
	})
	if err == nil && p.Header.Version != Version {
		return p, fmt.Errorf("plan archive %s: unsupported version %d", path, p.Header.Version)
	}
	return p, err
}

func open(path string, fn func(*bufio.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	return fn(bufio.NewReaderSize(dec, 256*1024))
}
