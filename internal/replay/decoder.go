package replay

import (
	"fmt"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/geom"
	"gridreplay.ai/internal/replaylog"
)

// Decode produces the action-table row for rec and applies the action's bookkeeping to the
// movement budgets held by acc. Levels in descriptions are read from rec, which already
// reflects the action's own upgrade.
func Decode(rec replaylog.Record, act replaylog.Action, acc *Accumulator) (ActionRow, error) {
	row := ActionRow{
		Player: rec.Player,
		Code:   act.Code(),
		Params: append([]int(nil), rec.Params()...),
		UnitID: -1,
	}
	if rec.Player != game.SystemPlayer && act.Code() != game.ActionGameEnd {
		if rec.Player < 0 || rec.Player >= len(rec.Coins) {
			return row, fmt.Errorf("%w: no coin entry for player %d", ErrCorruptLog, rec.Player)
		}
		coins := rec.Coins[rec.Player]
		row.RemainCoins = &coins
	}

	switch a := act.(type) {
	case replaylog.MoveSoldiers:
		dest := a.Dest()
		row.Description = fmt.Sprintf("Move %d soldiers to %v", a.Amount, dest)
		row.Target = &dest
		if err := acc.spendPlayerMove(rec.Player); err != nil {
			return row, err
		}

	case replaylog.MoveGeneral:
		g, name, err := lookupUnit(rec, a.UnitID)
		if err != nil {
			return row, err
		}
		row.UnitID = g.ID
		row.Description = fmt.Sprintf("Move %s to %v", name, a.Dest)
		dest := a.Dest
		row.Target = &dest
		// One decrement per record even when a single move crosses several cells.
		if err := acc.spendUnitMove(g.ID); err != nil {
			return row, err
		}

	case replaylog.UpgradeGeneral:
		g, name, err := lookupUnit(rec, a.UnitID)
		if err != nil {
			return row, err
		}
		lv, ok := g.QualityLevel(a.Quality)
		if !ok {
			return row, fmt.Errorf("%w: unit %d has no level for quality %d", ErrCorruptLog, g.ID, a.Quality)
		}
		quality, _ := a.Quality.Name()
		pos := g.Pos()
		row.UnitID = g.ID
		row.Target = &pos
		row.Description = fmt.Sprintf("Upgrade %s%v: %s%d", name, pos, quality, lv)

	case replaylog.UseSkill:
		g, _, err := lookupUnit(rec, a.UnitID)
		if err != nil {
			return row, err
		}
		skill, _ := a.Skill.Name()
		target := g.Pos()
		if a.Target != nil {
			target = *a.Target
		}
		row.UnitID = g.ID
		row.Target = &target
		row.Description = fmt.Sprintf("%s %v", skill, target)

	case replaylog.UpgradeTech:
		if rec.Player < 0 || rec.Player >= len(rec.TechLevel) || a.Tech.Index() >= len(rec.TechLevel[rec.Player]) {
			return row, fmt.Errorf("%w: no tech level %d for player %d", ErrCorruptLog, a.Tech, rec.Player)
		}
		tech, _ := a.Tech.Name()
		row.Description = fmt.Sprintf("Upgrade %s to %d", tech, rec.TechLevel[rec.Player][a.Tech.Index()])

	case replaylog.UseSuperWeapon:
		weapon, _ := a.Weapon.Name()
		target := a.Target
		row.Target = &target
		row.Description = fmt.Sprintf("%s at %v", weapon, target)

	case replaylog.RecruitGeneral:
		if len(rec.Generals) == 0 {
			return row, fmt.Errorf("%w: recruit record lists no units", ErrUnknownUnit)
		}
		// The recruit is the last unit of the record and may move in the round it appears.
		recruit := rec.Generals[len(rec.Generals)-1]
		acc.setUnitMoves(recruit.ID, 1)
		at := a.At
		row.UnitID = recruit.ID
		row.Target = &at
		row.Description = fmt.Sprintf("Recruit at %v", at)

	case replaylog.RoundSettlement:
		row.Description = "System: Round Settlement"

	case replaylog.GameEnd:
		row.Description = fmt.Sprintf("System: Player %d wins: %s", rec.Player, rec.Content)

	default:
		return row, fmt.Errorf("%w: unhandled action %T", ErrCorruptLog, act)
	}
	return row, nil
}

func lookupUnit(rec replaylog.Record, id int) (replaylog.General, string, error) {
	g, ok := rec.FindGeneral(id)
	if !ok {
		return g, "", fmt.Errorf("%w: id %d", ErrUnknownUnit, id)
	}
	name, ok := g.UnitType().Name()
	if !ok {
		return g, "", fmt.Errorf("%w: unit %d has unknown type %d", ErrCorruptLog, id, g.Type)
	}
	return g, name, nil
}

// Affected returns the position the action points at, if any. Renderers use it to highlight
// cells instead of parsing descriptions.
func (r ActionRow) Affected() (geom.Point, bool) {
	if r.Target == nil {
		return geom.Point{}, false
	}
	return *r.Target, true
}
