package tables

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/geom"
	"gridreplay.ai/internal/replay"
)

const Version = 1

const (
	globalFile  = "global.tbl.zst"
	actionFile  = "action.tbl.zst"
	unitFile    = "unit.tbl.zst"
	terrainFile = "terrain.zst"
	metaFile    = "meta.json"
)

// Header is the JSON line in front of every table body.
type Header struct {
	Version  int    `json:"version"`
	ReplayID int64  `json:"replay_id"`
	Kind     string `json:"kind"`
	Rows     int    `json:"rows"`
}

// Meta summarises a stored replay without decoding its tables.
type Meta struct {
	Version   int            `json:"version"`
	ReplayID  int64          `json:"replay_id"`
	GridSize  int            `json:"grid_size"`
	Rounds    int            `json:"rounds"`
	Actions   int            `json:"actions"`
	Snapshots int            `json:"snapshots"`
	UnitRows  int            `json:"unit_rows"`
	Outcome   replay.Outcome `json:"outcome"`
	Source    string         `json:"source,omitempty"`
	WrittenAt string         `json:"written_at"`
}

// actionRecord is the stored form of replay.ActionRow. gob drops pointers to zero values, so
// optional fields carry explicit presence flags.
type actionRecord struct {
	Round, Index int
	Player       int
	Code         int
	Description  string
	Params       []int
	HasCoins     bool
	Coins        int
	UnitID       int
	HasTarget    bool
	Target       geom.Point
}

type globalRecord struct {
	Round, Index   int
	Soldiers       [][]int
	Owners         [][]int
	Coins          []int
	RemainingMoves []int
	TechLevels     [][]int
	WeaponCDs      []int
}

type unitRecord struct {
	Round, Index int
	Unit         game.Unit
}

// Dir is the directory holding replay id under root.
func Dir(root string, id int64) string {
	return filepath.Join(root, strconv.FormatInt(id, 10))
}

// Exists reports whether a complete table set for id is stored under root.
func Exists(root string, id int64) bool {
	_, err := os.Stat(filepath.Join(Dir(root, id), metaFile))
	return err == nil
}

// Write stores t under root. Files are written into a temporary directory that replaces the
// replay's directory only once every file is complete.
func Write(root string, t *replay.Tables, source string) (Meta, error) {
	meta := Meta{
		Version:   Version,
		ReplayID:  t.ReplayID,
		GridSize:  t.GridSize,
		Rounds:    t.Rounds(),
		Actions:   len(t.Actions),
		Snapshots: len(t.Global),
		UnitRows:  len(t.Units),
		Outcome:   t.Outcome,
		Source:    source,
		WrittenAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return meta, err
	}
	tmp, err := os.MkdirTemp(root, fmt.Sprintf(".%d-*", t.ReplayID))
	if err != nil {
		return meta, err
	}
	defer os.RemoveAll(tmp)

	globals := make([]globalRecord, len(t.Global))
	for i, g := range t.Global {
		globals[i] = globalRecord{
			Round:          g.Round,
			Index:          g.Index,
			Soldiers:       g.Soldiers,
			Owners:         g.Owners,
			Coins:          g.Coins,
			RemainingMoves: g.RemainingMoves,
			TechLevels:     g.TechLevels,
			WeaponCDs:      g.WeaponCDs,
		}
	}
	actions := make([]actionRecord, len(t.Actions))
	for i, a := range t.Actions {
		r := actionRecord{
			Round:       a.Round,
			Index:       a.Index,
			Player:      a.Player,
			Code:        int(a.Code),
			Description: a.Description,
			Params:      a.Params,
			UnitID:      a.UnitID,
		}
		if a.RemainCoins != nil {
			r.HasCoins, r.Coins = true, *a.RemainCoins
		}
		if a.Target != nil {
			r.HasTarget, r.Target = true, *a.Target
		}
		actions[i] = r
	}
	units := make([]unitRecord, len(t.Units))
	for i, u := range t.Units {
		units[i] = unitRecord{Round: u.Round, Index: u.Index, Unit: u.Unit}
	}

	if err := writeTable(filepath.Join(tmp, globalFile), Header{Version, t.ReplayID, "global", len(globals)}, globals); err != nil {
		return meta, err
	}
	if err := writeTable(filepath.Join(tmp, actionFile), Header{Version, t.ReplayID, "action", len(actions)}, actions); err != nil {
		return meta, err
	}
	if err := writeTable(filepath.Join(tmp, unitFile), Header{Version, t.ReplayID, "unit", len(units)}, units); err != nil {
		return meta, err
	}
	if err := writeCompressed(filepath.Join(tmp, terrainFile), []byte(t.Terrain)); err != nil {
		return meta, err
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return meta, err
	}
	if err := os.WriteFile(filepath.Join(tmp, metaFile), b, 0o644); err != nil {
		return meta, err
	}

	dst := Dir(root, t.ReplayID)
	if err := os.RemoveAll(dst); err != nil {
		return meta, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return meta, err
	}
	return meta, nil
}

// ReadMeta loads meta.json of a stored replay.
func ReadMeta(root string, id int64) (Meta, error) {
	var meta Meta
	b, err := os.ReadFile(filepath.Join(Dir(root, id), metaFile))
	if err != nil {
		return meta, fmt.Errorf("%w: %v", replay.ErrMalformedTables, err)
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return meta, fmt.Errorf("%w: meta.json: %v", replay.ErrMalformedTables, err)
	}
	return meta, nil
}

// Read loads the stored tables of replay id. Missing or garbled files are reported as
// replay.ErrMalformedTables.
func Read(root string, id int64) (*replay.Tables, error) {
	meta, err := ReadMeta(root, id)
	if err != nil {
		return nil, err
	}
	dir := Dir(root, id)

	var globals []globalRecord
	if err := readTable(filepath.Join(dir, globalFile), id, "global", &globals); err != nil {
		return nil, err
	}
	var actions []actionRecord
	if err := readTable(filepath.Join(dir, actionFile), id, "action", &actions); err != nil {
		return nil, err
	}
	var units []unitRecord
	if err := readTable(filepath.Join(dir, unitFile), id, "unit", &units); err != nil {
		return nil, err
	}
	terrain, err := readCompressed(filepath.Join(dir, terrainFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", replay.ErrMalformedTables, terrainFile, err)
	}

	t := &replay.Tables{
		ReplayID: id,
		GridSize: meta.GridSize,
		Terrain:  string(terrain),
		Outcome:  meta.Outcome,
		Global:   make([]replay.GlobalRow, len(globals)),
		Actions:  make([]replay.ActionRow, len(actions)),
		Units:    make([]replay.UnitRow, len(units)),
	}
	for i, g := range globals {
		t.Global[i] = replay.GlobalRow{
			Key:            replay.Key{Round: g.Round, Index: g.Index},
			Soldiers:       g.Soldiers,
			Owners:         g.Owners,
			Coins:          g.Coins,
			RemainingMoves: g.RemainingMoves,
			TechLevels:     g.TechLevels,
			WeaponCDs:      g.WeaponCDs,
		}
	}
	for i, a := range actions {
		row := replay.ActionRow{
			Key:         replay.Key{Round: a.Round, Index: a.Index},
			Player:      a.Player,
			Code:        game.ActionCode(a.Code),
			Description: a.Description,
			Params:      a.Params,
			UnitID:      a.UnitID,
		}
		if a.HasCoins {
			coins := a.Coins
			row.RemainCoins = &coins
		}
		if a.HasTarget {
			target := a.Target
			row.Target = &target
		}
		t.Actions[i] = row
	}
	for i, u := range units {
		t.Units[i] = replay.UnitRow{Key: replay.Key{Round: u.Round, Index: u.Index}, Unit: u.Unit}
	}
	return t, nil
}

func writeTable[T any](path string, h Header, rows []T) error {
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

	hb, _ := json.Marshal(h)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(rows); err != nil {
		return fmt.Errorf("gob encode %s: %w", h.Kind, err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func readTable[T any](path string, id int64, kind string, rows *[]T) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", replay.ErrMalformedTables, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", replay.ErrMalformedTables, filepath.Base(path), err)
	}
	defer dec.Close()
	br := bufio.NewReaderSize(dec, 256*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("%w: %s header: %v", replay.ErrMalformedTables, filepath.Base(path), err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return fmt.Errorf("%w: %s header: %v", replay.ErrMalformedTables, filepath.Base(path), err)
	}
	if h.Version != Version || h.ReplayID != id || h.Kind != kind {
		return fmt.Errorf("%w: %s header %+v", replay.ErrMalformedTables, filepath.Base(path), h)
	}
	if err := gob.NewDecoder(br).Decode(rows); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %v", replay.ErrMalformedTables, filepath.Base(path), err)
	}
	if len(*rows) != h.Rows {
		return fmt.Errorf("%w: %s has %d rows, header says %d", replay.ErrMalformedTables, filepath.Base(path), len(*rows), h.Rows)
	}
	return nil
}

func writeCompressed(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	if _, err := enc.Write(b); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func readCompressed(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
