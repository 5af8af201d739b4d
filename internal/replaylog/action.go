package replaylog

import (
	"errors"
	"fmt"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/geom"
)

// ErrBadAction marks an action array that cannot be decoded: unknown code, unknown enum value
// or too few parameters.
var ErrBadAction = errors.New("bad action")

// Action is the decoded form of a record's Action array. Exactly one concrete type exists per
// action code.
type Action interface {
	Code() game.ActionCode
}

type MoveSoldiers struct {
	From   geom.Point
	Dir    geom.Direction
	Amount int
}

// Dest is the cell the soldiers move into.
func (a MoveSoldiers) Dest() geom.Point {
	d, _ := a.Dir.Delta()
	return a.From.Add(d)
}

type MoveGeneral struct {
	UnitID int
	Dest   geom.Point
}

type UpgradeGeneral struct {
	UnitID  int
	Quality game.Quality
}

type UseSkill struct {
	UnitID int
	Skill  game.Skill
	// Target is set only for targeted skills.
	Target *geom.Point
}

type UpgradeTech struct {
	Tech game.Tech
}

type UseSuperWeapon struct {
	Weapon game.Weapon
	Target geom.Point
}

type RecruitGeneral struct {
	At geom.Point
}

type RoundSettlement struct{}

type GameEnd struct{}

func (MoveSoldiers) Code() game.ActionCode    { return game.ActionMoveSoldiers }
func (MoveGeneral) Code() game.ActionCode     { return game.ActionMoveGeneral }
func (UpgradeGeneral) Code() game.ActionCode  { return game.ActionUpgradeGeneral }
func (UseSkill) Code() game.ActionCode        { return game.ActionUseSkill }
func (UpgradeTech) Code() game.ActionCode     { return game.ActionUpgradeTech }
func (UseSuperWeapon) Code() game.ActionCode  { return game.ActionUseSuperWeapon }
func (RecruitGeneral) Code() game.ActionCode  { return game.ActionRecruitGeneral }
func (RoundSettlement) Code() game.ActionCode { return game.ActionRoundSettlement }
func (GameEnd) Code() game.ActionCode         { return game.ActionGameEnd }

// DecodeAction turns a raw Action array ([code, params...]) into its typed form.
func DecodeAction(raw []int) (Action, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty action", ErrBadAction)
	}
	code := game.ActionCode(raw[0])
	p := raw[1:]
	need := func(n int) error {
		if len(p) < n {
			return fmt.Errorf("%w: code %d wants %d params, got %d", ErrBadAction, code, n, len(p))
		}
		return nil
	}

	switch code {
	case game.ActionMoveSoldiers:
		if err := need(4); err != nil {
			return nil, err
		}
		dir := geom.Direction(p[2])
		if _, err := dir.Delta(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadAction, err)
		}
		return MoveSoldiers{From: geom.P(p[0], p[1]), Dir: dir, Amount: p[3]}, nil

	case game.ActionMoveGeneral:
		if err := need(3); err != nil {
			return nil, err
		}
		return MoveGeneral{UnitID: p[0], Dest: geom.P(p[1], p[2])}, nil

	case game.ActionUpgradeGeneral:
		if err := need(2); err != nil {
			return nil, err
		}
		q := game.Quality(p[1])
		if _, ok := q.Name(); !ok {
			return nil, fmt.Errorf("%w: unknown quality type %d", ErrBadAction, p[1])
		}
		return UpgradeGeneral{UnitID: p[0], Quality: q}, nil

	case game.ActionUseSkill:
		if err := need(2); err != nil {
			return nil, err
		}
		s := game.Skill(p[1])
		if _, ok := s.Name(); !ok {
			return nil, fmt.Errorf("%w: unknown skill %d", ErrBadAction, p[1])
		}
		a := UseSkill{UnitID: p[0], Skill: s}
		if s.Targeted() {
			if err := need(4); err != nil {
				return nil, err
			}
			t := geom.P(p[2], p[3])
			a.Target = &t
		}
		return a, nil

	case game.ActionUpgradeTech:
		if err := need(1); err != nil {
			return nil, err
		}
		t := game.Tech(p[0])
		if _, ok := t.Name(); !ok {
			return nil, fmt.Errorf("%w: unknown tech %d", ErrBadAction, p[0])
		}
		return UpgradeTech{Tech: t}, nil

	case game.ActionUseSuperWeapon:
		if err := need(3); err != nil {
			return nil, err
		}
		w := game.Weapon(p[0])
		if _, ok := w.Name(); !ok {
			return nil, fmt.Errorf("%w: unknown weapon %d", ErrBadAction, p[0])
		}
		return UseSuperWeapon{Weapon: w, Target: geom.P(p[1], p[2])}, nil

	case game.ActionRecruitGeneral:
		if err := need(2); err != nil {
			return nil, err
		}
		return RecruitGeneral{At: geom.P(p[0], p[1])}, nil

	case game.ActionRoundSettlement:
		return RoundSettlement{}, nil

	case game.ActionGameEnd:
		return GameEnd{}, nil
	}
	return nil, fmt.Errorf("%w: unknown action code %d", ErrBadAction, int(code))
}
